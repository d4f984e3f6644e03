package shipment

import (
	"context"
	"fmt"

	domainErr "github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/domain/errors"
	"github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/domain/roleproof"
	domain "github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/domain/shipment"
	"github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/ports/events"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// CreateShipment stores a new shipment with the caller's organization as commissioner and
// registers its escrow. If registration fails the stored shipment is removed again.
func (s *Service) CreateShipment(ctx context.Context, caller string, in CreateShipmentInput) (domain.View, error) {
	org, err := s.auth.RequireAtLeast(ctx, caller, roleproof.RoleSigner)
	if err != nil {
		return domain.View{}, err
	}
	// 1. Input validation
	if in.Supplier == (common.Address{}) || in.Supplier == org {
		return domain.View{}, fmt.Errorf("%w: supplier must be another organization", domainErr.ErrInvalidInput)
	}
	if in.Token == (common.Address{}) {
		return domain.View{}, fmt.Errorf("%w: token address is required", domainErr.ErrInvalidInput)
	}
	if in.Price == nil || in.Price.Sign() <= 0 {
		return domain.View{}, fmt.Errorf("%w: price must be positive", domainErr.ErrInvalidInput)
	}

	// 2. Persist first: the store assigns the id the escrow is keyed by.
	now := s.now()
	sh := domain.New(in.Supplier, org, in.Token, in.SampleRequired, domain.Terms{Price: in.Price, Quantity: in.Quantity}, now)
	if err := s.store.CreateShipment(ctx, sh); err != nil {
		return domain.View{}, fmt.Errorf("create shipment: %w", err)
	}
	log := s.log.WithFields(logrus.Fields{"shipment_id": sh.ID, "caller": caller})

	// 3. Register the escrow, compensating on failure.
	if _, err := s.escrow.CreateEscrow(ctx, sh.ID, sh.Supplier, s.escrowDuration, sh.Token); err != nil {
		if delErr := s.store.DeleteShipment(ctx, sh.ID); delErr != nil {
			log.WithError(delErr).Error("failed to remove shipment after escrow registration failure")
		}
		return domain.View{}, err
	}

	log.Info("shipment created")
	s.publish(ctx, sh, []events.Event{events.NewEvent(events.ShipmentCreated, sh.ID, now, sh.View())})
	return sh.View(), nil
}

// GetShipment returns the projection with its derived phase. Only parties may read it.
func (s *Service) GetShipment(ctx context.Context, caller string, id uint64) (domain.View, error) {
	org, err := s.auth.RequireAtLeast(ctx, caller, roleproof.RoleViewer)
	if err != nil {
		return domain.View{}, err
	}
	sh, err := s.store.GetShipment(ctx, id)
	if err != nil {
		return domain.View{}, err
	}
	if err := requireParty(sh, org); err != nil {
		return domain.View{}, err
	}
	return sh.View(), nil
}

// ListShipments returns every shipment the caller's organization is a party of.
func (s *Service) ListShipments(ctx context.Context, caller string) ([]domain.View, error) {
	org, err := s.auth.RequireAtLeast(ctx, caller, roleproof.RoleViewer)
	if err != nil {
		return nil, err
	}
	list, err := s.store.ListShipments(ctx, org)
	if err != nil {
		return nil, fmt.Errorf("list shipments: %w", err)
	}
	views := make([]domain.View, 0, len(list))
	for _, sh := range list {
		views = append(views, sh.View())
	}
	return views, nil
}

// SetShipmentDetails lets the supplier fill in the logistics terms during PHASE_2.
// Setting details again after a rejection puts them back up for evaluation.
func (s *Service) SetShipmentDetails(ctx context.Context, caller string, id uint64, d Details) (domain.View, error) {
	org, err := s.auth.RequireAtLeast(ctx, caller, roleproof.RoleEditor)
	if err != nil {
		return domain.View{}, err
	}
	if !d.DeliveryDate.IsZero() && d.DeliveryDate.Before(d.ShipmentDate) {
		return domain.View{}, fmt.Errorf("%w: delivery date before shipment date", domainErr.ErrInvalidInput)
	}
	sh, err := s.mutate(ctx, id, func(sh *domain.Shipment, emit emitFunc) error {
		if err := requireSupplier(sh, org); err != nil {
			return err
		}
		if err := domain.CanSetDetails(sh); err != nil {
			return err
		}
		sh.Terms.ShipmentDate = d.ShipmentDate.UTC()
		sh.Terms.DeliveryDate = d.DeliveryDate.UTC()
		sh.Terms.Quantity = d.Quantity
		sh.Terms.Weight = d.Weight
		sh.DetailsSet = true
		if sh.DetailsEvaluationStatus == domain.Rejected {
			sh.DetailsEvaluationStatus = domain.NotEvaluated
		}
		return nil
	})
	if err != nil {
		return domain.View{}, err
	}
	return sh.View(), nil
}

// EvaluateSample is the commissioner's verdict on the pre-shipment sample.
func (s *Service) EvaluateSample(ctx context.Context, caller string, id uint64, status domain.EvaluationStatus) (domain.View, error) {
	return s.evaluate(ctx, caller, id, status, "sample", domain.CanEvaluateSample, func(sh *domain.Shipment) {
		sh.SampleEvaluationStatus = status
	})
}

// EvaluateShipmentDetails is the commissioner's verdict on the supplier's details.
func (s *Service) EvaluateShipmentDetails(ctx context.Context, caller string, id uint64, status domain.EvaluationStatus) (domain.View, error) {
	return s.evaluate(ctx, caller, id, status, "details", domain.CanEvaluateDetails, func(sh *domain.Shipment) {
		sh.DetailsEvaluationStatus = status
	})
}

// EvaluateQuality closes the shipment: approval confirms it, rejection sends it to arbitration.
func (s *Service) EvaluateQuality(ctx context.Context, caller string, id uint64, status domain.EvaluationStatus) (domain.View, error) {
	return s.evaluate(ctx, caller, id, status, "quality", domain.CanEvaluateQuality, func(sh *domain.Shipment) {
		sh.QualityEvaluationStatus = status
	})
}

func (s *Service) evaluate(ctx context.Context, caller string, id uint64, status domain.EvaluationStatus, subject string,
	guard func(*domain.Shipment) error, apply func(*domain.Shipment)) (domain.View, error) {
	org, err := s.auth.RequireAtLeast(ctx, caller, roleproof.RoleSigner)
	if err != nil {
		return domain.View{}, err
	}
	if err := decisive(status); err != nil {
		return domain.View{}, err
	}
	sh, err := s.mutate(ctx, id, func(sh *domain.Shipment, emit emitFunc) error {
		if err := requireCommissioner(sh, org); err != nil {
			return err
		}
		if err := guard(sh); err != nil {
			return err
		}
		apply(sh)
		emit(events.ShipmentEvaluated, EvaluationEvent{Subject: subject, Status: status})
		return nil
	})
	if err != nil {
		return domain.View{}, err
	}
	return sh.View(), nil
}

// AddDocument uploads a document reference on behalf of the caller's organization.
func (s *Service) AddDocument(ctx context.Context, caller string, id uint64, in AddDocumentInput) (domain.View, uuid.UUID, error) {
	org, err := s.auth.RequireAtLeast(ctx, caller, roleproof.RoleEditor)
	if err != nil {
		return domain.View{}, uuid.Nil, err
	}
	if _, err := domain.ParseDocumentType(string(in.Type)); err != nil {
		return domain.View{}, uuid.Nil, fmt.Errorf("%w: %v", domainErr.ErrInvalidInput, err)
	}
	if in.ExternalURL == "" {
		return domain.View{}, uuid.Nil, fmt.Errorf("%w: externalUrl is required", domainErr.ErrInvalidInput)
	}

	docID := uuid.New()
	sh, err := s.mutate(ctx, id, func(sh *domain.Shipment, emit emitFunc) error {
		if err := requireParty(sh, org); err != nil {
			return err
		}
		if err := domain.CanUploadDocument(sh); err != nil {
			return err
		}
		doc := domain.DocumentInfo{
			ID:               docID,
			Type:             in.Type,
			EvaluationStatus: domain.NotEvaluated,
			UploadedBy:       org,
			ExternalURL:      in.ExternalURL,
			UploadedAt:       s.now().UTC(),
		}
		if err := sh.PutDocument(doc); err != nil {
			return err
		}
		emit(events.ShipmentDocumentAdded, DocumentEvent{DocumentID: docID, Type: doc.Type, Status: doc.EvaluationStatus, By: org})
		return nil
	})
	if err != nil {
		return domain.View{}, uuid.Nil, err
	}
	return sh.View(), docID, nil
}

// EvaluateDocument records the counterparty's verdict on a document. When an approval moves the
// shipment into PHASE_5 with funds locked, the funds are released in the same call; if that
// transaction fails nothing is committed.
func (s *Service) EvaluateDocument(ctx context.Context, caller string, id uint64, docID uuid.UUID, status domain.EvaluationStatus) (domain.View, error) {
	org, err := s.auth.RequireAtLeast(ctx, caller, roleproof.RoleSigner)
	if err != nil {
		return domain.View{}, err
	}
	if err := decisive(status); err != nil {
		return domain.View{}, err
	}
	sh, err := s.mutate(ctx, id, func(sh *domain.Shipment, emit emitFunc) error {
		if err := requireParty(sh, org); err != nil {
			return err
		}
		doc, err := sh.FindDocument(docID)
		if err != nil {
			return err
		}
		if doc.UploadedBy == org {
			return fmt.Errorf("%w: documents are evaluated by the counterparty", domainErr.ErrNotAuthorized)
		}
		if err := domain.CanEvaluateDocument(sh, doc); err != nil {
			return err
		}
		doc.EvaluationStatus = status
		emit(events.ShipmentDocumentRated, DocumentEvent{DocumentID: doc.ID, Type: doc.Type, Status: status, By: org})

		if status == domain.Approved && domain.DerivePhase(sh) == domain.Phase5 && sh.FundsStatus == domain.FundsLocked {
			if _, err := s.escrow.ReleaseFunds(ctx, sh); err != nil {
				return fmt.Errorf("release funds after approval: %w", err)
			}
			emit(events.ShipmentFundsReleased, s.fundsEvent(sh))
		}
		return nil
	})
	if err != nil {
		return domain.View{}, err
	}
	return sh.View(), nil
}

// LockFunds locks the price in escrow during PHASE_3. The bool is false when the escrow does not
// hold enough unlocked deposit yet; the shipment is then left as it was.
func (s *Service) LockFunds(ctx context.Context, caller string, id uint64) (domain.View, bool, error) {
	org, err := s.auth.RequireAtLeast(ctx, caller, roleproof.RoleSigner)
	if err != nil {
		return domain.View{}, false, err
	}
	var locked bool
	sh, err := s.mutate(ctx, id, func(sh *domain.Shipment, emit emitFunc) error {
		if err := requireCommissioner(sh, org); err != nil {
			return err
		}
		if err := domain.CanLockFunds(sh); err != nil {
			return err
		}
		var err error
		if _, locked, err = s.escrow.LockFunds(ctx, sh); err != nil {
			return err
		}
		if !locked {
			return errUnchanged
		}
		emit(events.ShipmentFundsLocked, s.fundsEvent(sh))
		return nil
	})
	if err != nil {
		return domain.View{}, false, err
	}
	return sh.View(), locked, nil
}

// ReleaseFunds pays out locked funds on the commissioner's request.
func (s *Service) ReleaseFunds(ctx context.Context, caller string, id uint64) (domain.View, error) {
	org, err := s.auth.RequireAtLeast(ctx, caller, roleproof.RoleSigner)
	if err != nil {
		return domain.View{}, err
	}
	sh, err := s.mutate(ctx, id, func(sh *domain.Shipment, emit emitFunc) error {
		if err := requireCommissioner(sh, org); err != nil {
			return err
		}
		if err := domain.CanReleaseFunds(sh); err != nil {
			return err
		}
		if _, err := s.escrow.ReleaseFunds(ctx, sh); err != nil {
			return err
		}
		emit(events.ShipmentFundsReleased, s.fundsEvent(sh))
		return nil
	})
	if err != nil {
		return domain.View{}, err
	}
	return sh.View(), nil
}

func (s *Service) fundsEvent(sh *domain.Shipment) FundsEvent {
	ev := FundsEvent{Amount: sh.RequiredAmount()}
	if sh.EscrowAddress != nil {
		ev.Escrow = *sh.EscrowAddress
	}
	return ev
}
