// services/settlement-service/internal/app/shipment/service.go
package shipment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/app/txsigner"
	domainErr "github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/domain/errors"
	"github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/domain/roleproof"
	domain "github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/domain/shipment"
	"github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/ports/events"
	"github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/ports/repository"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// Authorizer is the session boundary: it returns the organization the caller acts for.
type Authorizer interface {
	RequireAtLeast(ctx context.Context, caller string, min roleproof.Role) (common.Address, error)
}

// Escrow is the escrow coordinator.
type Escrow interface {
	CreateEscrow(ctx context.Context, shipmentID uint64, supplier common.Address, duration time.Duration, token common.Address) (*txsigner.Receipt, error)
	LockFunds(ctx context.Context, sh *domain.Shipment) (*domain.Shipment, bool, error)
	ReleaseFunds(ctx context.Context, sh *domain.Shipment) (*domain.Shipment, error)
}

// Service holds the gated shipment mutators. Every mutation of one shipment runs under that
// shipment's lock, including any escrow transaction, and is committed with a version CAS.
type Service struct {
	auth           Authorizer
	store          repository.ShipmentStore
	escrow         Escrow
	escrowDuration time.Duration
	events         events.Publisher
	notifier       events.Notifier
	now            func() time.Time
	locks          *keyedMutex
	log            logrus.FieldLogger
}

type Option func(*Service)

func WithEventPublisher(p events.Publisher) Option { return func(s *Service) { s.events = p } }
func WithNotifier(n events.Notifier) Option        { return func(s *Service) { s.notifier = n } }
func WithClock(now func() time.Time) Option        { return func(s *Service) { s.now = now } }

func NewService(auth Authorizer, store repository.ShipmentStore, escrow Escrow, escrowDuration time.Duration, log logrus.FieldLogger, opts ...Option) *Service {
	s := &Service{
		auth:           auth,
		store:          store,
		escrow:         escrow,
		escrowDuration: escrowDuration,
		now:            time.Now,
		locks:          newKeyedMutex(),
		log:            log.WithField("component", "shipments"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// errUnchanged lets a change func finish without committing.
var errUnchanged = errors.New("unchanged")

type emitFunc func(name string, payload interface{})

// mutate loads a fresh copy of the shipment under its lock, applies change and commits with CAS.
// Events emitted by change are published only after the commit.
func (s *Service) mutate(ctx context.Context, id uint64, change func(sh *domain.Shipment, emit emitFunc) error) (*domain.Shipment, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	sh, err := s.store.GetShipment(ctx, id)
	if err != nil {
		return nil, err
	}
	before := domain.DerivePhase(sh)
	now := s.now()

	var pending []events.Event
	emit := func(name string, payload interface{}) {
		pending = append(pending, events.NewEvent(name, id, now, payload))
	}

	if err := change(sh, emit); err != nil {
		if errors.Is(err, errUnchanged) {
			return sh, nil
		}
		return nil, err
	}

	sh.UpdatedAt = now.UTC()
	if err := s.store.UpdateShipment(ctx, sh); err != nil {
		if len(pending) > 0 {
			s.log.WithError(err).WithField("shipment_id", id).Error("commit failed after side effects")
		}
		return nil, fmt.Errorf("save shipment %d: %w", id, err)
	}

	if after := domain.DerivePhase(sh); after != before {
		emit(events.ShipmentPhaseChanged, PhaseChange{From: before, To: after})
		s.log.WithFields(logrus.Fields{"shipment_id": id, "from": before, "to": after}).Info("phase advanced")
	}
	s.publish(ctx, sh, pending)
	return sh, nil
}

// publish is best effort: the state is already committed, delivery failures are only logged.
func (s *Service) publish(ctx context.Context, sh *domain.Shipment, evs []events.Event) {
	for _, ev := range evs {
		if s.events != nil {
			if err := s.events.Publish(ctx, strconv.FormatUint(sh.ID, 10), ev); err != nil {
				s.log.WithError(err).WithFields(logrus.Fields{"shipment_id": sh.ID, "event": ev.Event}).Warn("event not published")
			}
		}
		if s.notifier != nil {
			n := Notification{
				Recipients: []common.Address{sh.Supplier, sh.Commissioner},
				ShipmentID: sh.ID,
				Event:      ev.Event,
				OccurredAt: ev.OccurredAt,
			}
			if err := s.notifier.Notify(ctx, n); err != nil {
				s.log.WithError(err).WithFields(logrus.Fields{"shipment_id": sh.ID, "event": ev.Event}).Warn("notification not queued")
			}
		}
	}
}

// requireParty checks that org is a party of the shipment.
func requireParty(sh *domain.Shipment, org common.Address) error {
	if !sh.IsParty(org) {
		return fmt.Errorf("%w: %s is not a party of shipment %d", domainErr.ErrNotAuthorized, org.Hex(), sh.ID)
	}
	return nil
}

func requireCommissioner(sh *domain.Shipment, org common.Address) error {
	if org != sh.Commissioner {
		return fmt.Errorf("%w: only the commissioner of shipment %d", domainErr.ErrNotAuthorized, sh.ID)
	}
	return nil
}

func requireSupplier(sh *domain.Shipment, org common.Address) error {
	if org != sh.Supplier {
		return fmt.Errorf("%w: only the supplier of shipment %d", domainErr.ErrNotAuthorized, sh.ID)
	}
	return nil
}

// decisive rejects evaluations that do not decide anything.
func decisive(status domain.EvaluationStatus) error {
	if status != domain.Approved && status != domain.Rejected {
		return fmt.Errorf("%w: evaluation must be APPROVED or REJECTED", domainErr.ErrInvalidInput)
	}
	return nil
}
