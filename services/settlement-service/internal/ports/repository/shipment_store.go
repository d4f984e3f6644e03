//services/settlement-service/internal/ports/repository/shipment_store.go

package repository

import (
	"context"

	"github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/domain/shipment"
	"github.com/ethereum/go-ethereum/common"
)

type ShipmentStore interface {
	// CreateShipment assigns the next id, sets Version to 1 and stores the shipment.
	CreateShipment(ctx context.Context, s *shipment.Shipment) error
	// GetShipment returns errors.ErrShipmentNotFound for unknown ids.
	GetShipment(ctx context.Context, id uint64) (*shipment.Shipment, error)
	// ListShipments returns the shipments where party is supplier or commissioner, ordered by id.
	ListShipments(ctx context.Context, party common.Address) ([]*shipment.Shipment, error)
	// UpdateShipment is a compare-and-swap on Version: it succeeds only if the stored
	// version equals s.Version, then increments s.Version. Otherwise errors.ErrVersionConflict.
	UpdateShipment(ctx context.Context, s *shipment.Shipment) error
	// DeleteShipment removes a shipment; used to undo a creation whose escrow registration failed.
	DeleteShipment(ctx context.Context, id uint64) error
}
