package shipment

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	domainErr "github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/domain/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// DocumentInfo is one uploaded document. The file itself lives at ExternalURL.
type DocumentInfo struct {
	ID               uuid.UUID        `json:"id"`
	Type             DocumentType     `json:"type"`
	EvaluationStatus EvaluationStatus `json:"evaluationStatus"`
	UploadedBy       common.Address   `json:"uploadedBy"`
	ExternalURL      string           `json:"externalUrl"`
	UploadedAt       time.Time        `json:"uploadedAt"`
}

// Terms are the numeric shipment terms. Price is the amount locked in escrow, in token base units.
type Terms struct {
	ShipmentDate time.Time `json:"shipmentDate"`
	DeliveryDate time.Time `json:"deliveryDate"`
	Quantity     uint64    `json:"quantity"`
	Weight       uint64    `json:"weight"`
	Price        *big.Int  `json:"price"`
}

// Shipment is the persisted state. Phase is deliberately absent: see DerivePhase.
type Shipment struct {
	ID           uint64                          `json:"id"`
	Supplier     common.Address                  `json:"supplier"`
	Commissioner common.Address                  `json:"commissioner"`
	Token        common.Address                  `json:"token"`
	Documents    map[DocumentType][]DocumentInfo `json:"documents"`

	SampleRequired          bool             `json:"sampleRequired"`
	SampleEvaluationStatus  EvaluationStatus `json:"sampleEvaluationStatus"`
	DetailsEvaluationStatus EvaluationStatus `json:"detailsEvaluationStatus"`
	QualityEvaluationStatus EvaluationStatus `json:"qualityEvaluationStatus"`

	FundsStatus   FundsStatus     `json:"fundsStatus"`
	EscrowAddress *common.Address `json:"escrowAddress,omitempty"`

	Terms      Terms `json:"terms"`
	DetailsSet bool  `json:"detailsSet"`

	// Version is the optimistic concurrency counter; stores compare-and-swap on it.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// New builds a shipment in its initial state.
func New(supplier, commissioner, token common.Address, sampleRequired bool, terms Terms, now time.Time) *Shipment {
	return &Shipment{
		Supplier:       supplier,
		Commissioner:   commissioner,
		Token:          token,
		Documents:      make(map[DocumentType][]DocumentInfo),
		SampleRequired: sampleRequired,
		Terms:          terms,
		CreatedAt:      now.UTC(),
		UpdatedAt:      now.UTC(),
	}
}

// IsParty reports whether addr is the supplier or the commissioner.
func (s *Shipment) IsParty(addr common.Address) bool {
	return addr == s.Supplier || addr == s.Commissioner
}

// RequiredAmount is what must be locked in escrow. Nil price means nothing was agreed yet.
func (s *Shipment) RequiredAmount() *big.Int {
	if s.Terms.Price == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(s.Terms.Price)
}

// DocumentApproved reports whether any record of type t is approved.
func (s *Shipment) DocumentApproved(t DocumentType) bool {
	for _, d := range s.Documents[t] {
		if d.EvaluationStatus == Approved {
			return true
		}
	}
	return false
}

// FindDocument returns a pointer into the documents map so callers can update in place.
func (s *Shipment) FindDocument(id uuid.UUID) (*DocumentInfo, error) {
	for t := range s.Documents {
		docs := s.Documents[t]
		for i := range docs {
			if docs[i].ID == id {
				return &docs[i], nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s", domainErr.ErrDocumentNotFound, id)
}

// PutDocument applies the upload rule. A non-GENERIC type holds at most one live record:
// uploading again before approval replaces it, uploading after approval is rejected.
// GENERIC documents accumulate.
func (s *Shipment) PutDocument(doc DocumentInfo) error {
	if s.Documents == nil {
		s.Documents = make(map[DocumentType][]DocumentInfo)
	}
	if doc.Type == DocGeneric {
		s.Documents[doc.Type] = append(s.Documents[doc.Type], doc)
		return nil
	}
	if s.DocumentApproved(doc.Type) {
		return fmt.Errorf("%w: %s already approved, cannot replace", domainErr.ErrAlreadyApproved, doc.Type)
	}
	s.Documents[doc.Type] = []DocumentInfo{doc}
	return nil
}

// Clone returns a deep copy. Stores hand out clones so callers never alias stored state.
func (s *Shipment) Clone() *Shipment {
	b, err := json.Marshal(s)
	if err != nil {
		panic(fmt.Sprintf("shipment: clone marshal: %v", err))
	}
	var out Shipment
	if err := json.Unmarshal(b, &out); err != nil {
		panic(fmt.Sprintf("shipment: clone unmarshal: %v", err))
	}
	if out.Documents == nil {
		out.Documents = make(map[DocumentType][]DocumentInfo)
	}
	return &out
}

// View is the read projection: the stored shipment plus its derived phase.
type View struct {
	*Shipment
	Phase Phase `json:"phase"`
}

func (s *Shipment) View() View {
	return View{Shipment: s, Phase: DerivePhase(s)}
}
