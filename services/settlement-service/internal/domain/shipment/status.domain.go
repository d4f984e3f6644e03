package shipment

import (
	"fmt"
	"strings"
)

// EvaluationStatus is the outcome of one review (sample, details, quality or a document).
type EvaluationStatus int

const (
	NotEvaluated EvaluationStatus = iota
	Approved
	Rejected
)

var evaluationNames = map[EvaluationStatus]string{
	NotEvaluated: "NOT_EVALUATED",
	Approved:     "APPROVED",
	Rejected:     "REJECTED",
}

func (e EvaluationStatus) String() string {
	if n, ok := evaluationNames[e]; ok {
		return n
	}
	return fmt.Sprintf("EvaluationStatus(%d)", int(e))
}

func ParseEvaluationStatus(s string) (EvaluationStatus, error) {
	for k, v := range evaluationNames {
		if strings.EqualFold(v, strings.TrimSpace(s)) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown evaluation status %q", s)
}

func (e EvaluationStatus) MarshalText() ([]byte, error) { return []byte(e.String()), nil }

func (e *EvaluationStatus) UnmarshalText(b []byte) error {
	v, err := ParseEvaluationStatus(string(b))
	if err != nil {
		return err
	}
	*e = v
	return nil
}

// FundsStatus only ever moves forward: NOT_LOCKED -> LOCKED -> RELEASED.
type FundsStatus int

const (
	FundsNotLocked FundsStatus = iota
	FundsLocked
	FundsReleased
)

var fundsNames = map[FundsStatus]string{
	FundsNotLocked: "NOT_LOCKED",
	FundsLocked:    "LOCKED",
	FundsReleased:  "RELEASED",
}

func (f FundsStatus) String() string {
	if n, ok := fundsNames[f]; ok {
		return n
	}
	return fmt.Sprintf("FundsStatus(%d)", int(f))
}

func (f FundsStatus) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

func (f *FundsStatus) UnmarshalText(b []byte) error {
	for k, v := range fundsNames {
		if v == string(b) {
			*f = k
			return nil
		}
	}
	return fmt.Errorf("unknown funds status %q", b)
}

// CanAdvanceTo reports whether next is strictly after f.
func (f FundsStatus) CanAdvanceTo(next FundsStatus) bool {
	return next == f+1
}

// DocumentType identifies the trade document a DocumentInfo carries.
type DocumentType string

const (
	DocPreShipmentSample    DocumentType = "PRE_SHIPMENT_SAMPLE"
	DocShippingInstructions DocumentType = "SHIPPING_INSTRUCTIONS"
	DocShippingNote         DocumentType = "SHIPPING_NOTE"
	DocBookingConfirmation  DocumentType = "BOOKING_CONFIRMATION"
	DocPhytosanitary        DocumentType = "PHYTOSANITARY_CERTIFICATE"
	DocBillOfLading         DocumentType = "BILL_OF_LADING"
	DocOriginCertificate    DocumentType = "ORIGIN_CERTIFICATE"
	DocGeneric              DocumentType = "GENERIC"
)

var documentTypes = []DocumentType{
	DocPreShipmentSample,
	DocShippingInstructions,
	DocShippingNote,
	DocBookingConfirmation,
	DocPhytosanitary,
	DocBillOfLading,
	DocOriginCertificate,
	DocGeneric,
}

func ParseDocumentType(s string) (DocumentType, error) {
	for _, t := range documentTypes {
		if strings.EqualFold(string(t), strings.TrimSpace(s)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown document type %q", s)
}

// Phase is the workflow stage. It is always computed by DerivePhase, never stored.
type Phase int

const (
	Phase1 Phase = iota + 1
	Phase2
	Phase3
	Phase4
	Phase5
	PhaseConfirmed
	PhaseArbitration
)

var phaseNames = map[Phase]string{
	Phase1:           "PHASE_1",
	Phase2:           "PHASE_2",
	Phase3:           "PHASE_3",
	Phase4:           "PHASE_4",
	Phase5:           "PHASE_5",
	PhaseConfirmed:   "CONFIRMED",
	PhaseArbitration: "ARBITRATION",
}

func (p Phase) String() string {
	if n, ok := phaseNames[p]; ok {
		return n
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// Terminal phases accept no further mutation.
func (p Phase) Terminal() bool {
	return p == PhaseConfirmed || p == PhaseArbitration
}
