package shipment

import (
	"math/big"
	"time"

	domain "github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/domain/shipment"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// CreateShipmentInput is what the commissioner agrees on up front.
type CreateShipmentInput struct {
	Supplier       common.Address `json:"supplier"`
	Token          common.Address `json:"token"`
	SampleRequired bool           `json:"sampleRequired"`
	Price          *big.Int       `json:"price"`
	Quantity       uint64         `json:"quantity"`
}

// Details are the logistics terms the supplier fills in during PHASE_2.
type Details struct {
	ShipmentDate time.Time `json:"shipmentDate"`
	DeliveryDate time.Time `json:"deliveryDate"`
	Quantity     uint64    `json:"quantity"`
	Weight       uint64    `json:"weight"`
}

type AddDocumentInput struct {
	Type        domain.DocumentType `json:"type"`
	ExternalURL string              `json:"externalUrl"`
}

// Event payloads.

type PhaseChange struct {
	From domain.Phase `json:"from"`
	To   domain.Phase `json:"to"`
}

type DocumentEvent struct {
	DocumentID uuid.UUID               `json:"documentId"`
	Type       domain.DocumentType     `json:"type"`
	Status     domain.EvaluationStatus `json:"status"`
	By         common.Address          `json:"by"`
}

type EvaluationEvent struct {
	Subject string                  `json:"subject"`
	Status  domain.EvaluationStatus `json:"status"`
}

type FundsEvent struct {
	Escrow common.Address `json:"escrow"`
	Amount *big.Int       `json:"amount"`
}

// Notification is queued for the email collaborator; it resolves recipients to addresses itself.
type Notification struct {
	Recipients []common.Address `json:"recipients"`
	ShipmentID uint64           `json:"shipmentId"`
	Event      string           `json:"event"`
	OccurredAt time.Time        `json:"occurredAt"`
}
