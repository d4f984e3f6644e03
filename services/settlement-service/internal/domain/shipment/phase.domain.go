package shipment

import (
	"fmt"

	domainErr "github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/domain/errors"
)

// DerivePhase computes the phase from documents, evaluations and funds state.
// It is total and pure: every shipment maps to exactly one phase, and the
// result only depends on the fields it reads.
func DerivePhase(s *Shipment) Phase {
	if !phaseOneComplete(s) {
		return Phase1
	}
	if !phaseTwoComplete(s) {
		return Phase2
	}
	if !phaseThreeComplete(s) {
		return Phase3
	}
	if !phaseFourComplete(s) {
		return Phase4
	}
	switch s.QualityEvaluationStatus {
	case Approved:
		return PhaseConfirmed
	case Rejected:
		return PhaseArbitration
	default:
		return Phase5
	}
}

func phaseOneComplete(s *Shipment) bool {
	if !s.DocumentApproved(DocPreShipmentSample) {
		return false
	}
	return !s.SampleRequired || s.SampleEvaluationStatus == Approved
}

func phaseTwoComplete(s *Shipment) bool {
	return shippingDocumentsApproved(s) && s.DetailsEvaluationStatus == Approved
}

func phaseThreeComplete(s *Shipment) bool {
	return s.DocumentApproved(DocBookingConfirmation) && s.FundsStatus != FundsNotLocked
}

func phaseFourComplete(s *Shipment) bool {
	return s.DocumentApproved(DocPhytosanitary) &&
		s.DocumentApproved(DocBillOfLading) &&
		s.DocumentApproved(DocOriginCertificate)
}

func shippingDocumentsApproved(s *Shipment) bool {
	return s.DocumentApproved(DocShippingInstructions) && s.DocumentApproved(DocShippingNote)
}

func wrongPhase(op string, want, got Phase) error {
	return fmt.Errorf("%w: %s requires %s, shipment is in %s", domainErr.ErrWrongPhase, op, want, got)
}

// CanSetDetails: only in PHASE_2 and only while details are not approved.
func CanSetDetails(s *Shipment) error {
	if p := DerivePhase(s); p != Phase2 {
		return wrongPhase("setShipmentDetails", Phase2, p)
	}
	if s.DetailsEvaluationStatus == Approved {
		return fmt.Errorf("%w: shipment details", domainErr.ErrAlreadyApproved)
	}
	return nil
}

// CanEvaluateSample: only in PHASE_1, once.
func CanEvaluateSample(s *Shipment) error {
	if p := DerivePhase(s); p != Phase1 {
		return wrongPhase("evaluateSample", Phase1, p)
	}
	if s.SampleEvaluationStatus == Approved {
		return fmt.Errorf("%w: sample", domainErr.ErrAlreadyApproved)
	}
	return nil
}

// CanEvaluateDetails: only in PHASE_2 once the shipping instructions and the
// shipping note are approved, and only if details were set.
func CanEvaluateDetails(s *Shipment) error {
	p := DerivePhase(s)
	if p != Phase2 {
		return wrongPhase("evaluateShipmentDetails", Phase2, p)
	}
	if !shippingDocumentsApproved(s) {
		return fmt.Errorf("%w: evaluateShipmentDetails requires approved shipping instructions and shipping note", domainErr.ErrWrongPhase)
	}
	if !s.DetailsSet {
		return domainErr.ErrDetailsNotSet
	}
	if s.DetailsEvaluationStatus == Approved {
		return fmt.Errorf("%w: shipment details", domainErr.ErrAlreadyApproved)
	}
	return nil
}

// CanEvaluateQuality: only in PHASE_5. Once evaluated the shipment leaves PHASE_5,
// so the phase check also enforces "once".
func CanEvaluateQuality(s *Shipment) error {
	if p := DerivePhase(s); p != Phase5 {
		return wrongPhase("evaluateQuality", Phase5, p)
	}
	return nil
}

// CanUploadDocument rejects uploads into a finished shipment.
func CanUploadDocument(s *Shipment) error {
	if p := DerivePhase(s); p.Terminal() {
		return fmt.Errorf("%w: shipment is %s", domainErr.ErrWrongPhase, p)
	}
	return nil
}

// CanEvaluateDocument: approved documents are final.
func CanEvaluateDocument(s *Shipment, doc *DocumentInfo) error {
	if p := DerivePhase(s); p.Terminal() {
		return fmt.Errorf("%w: shipment is %s", domainErr.ErrWrongPhase, p)
	}
	if doc.EvaluationStatus == Approved {
		return fmt.Errorf("%w: document %s", domainErr.ErrAlreadyApproved, doc.ID)
	}
	return nil
}

// CanLockFunds: funds are locked once, during PHASE_3.
func CanLockFunds(s *Shipment) error {
	if s.FundsStatus != FundsNotLocked {
		return domainErr.ErrFundsAlreadyLocked
	}
	if p := DerivePhase(s); p != Phase3 {
		return wrongPhase("lockFunds", Phase3, p)
	}
	return nil
}

// CanReleaseFunds: only locked funds can be released.
func CanReleaseFunds(s *Shipment) error {
	if !s.FundsStatus.CanAdvanceTo(FundsReleased) {
		return fmt.Errorf("%w: funds are %s", domainErr.ErrFundsNotLocked, s.FundsStatus)
	}
	return nil
}
