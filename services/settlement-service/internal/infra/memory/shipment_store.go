package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	domainErr "github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/domain/errors"
	"github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/domain/shipment"
	"github.com/ethereum/go-ethereum/common"
)

// ShipmentStore keeps shipments in process memory. It stores and hands out clones,
// so nothing outside the store aliases its state.
type ShipmentStore struct {
	mu        sync.RWMutex
	nextID    uint64
	shipments map[uint64]*shipment.Shipment
}

func NewShipmentStore() *ShipmentStore {
	return &ShipmentStore{nextID: 1, shipments: make(map[uint64]*shipment.Shipment)}
}

func (m *ShipmentStore) CreateShipment(ctx context.Context, s *shipment.Shipment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = m.nextID
	s.Version = 1
	m.nextID++
	m.shipments[s.ID] = s.Clone()
	return nil
}

func (m *ShipmentStore) GetShipment(ctx context.Context, id uint64) (*shipment.Shipment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.shipments[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", domainErr.ErrShipmentNotFound, id)
	}
	return s.Clone(), nil
}

func (m *ShipmentStore) ListShipments(ctx context.Context, party common.Address) ([]*shipment.Shipment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*shipment.Shipment
	for _, s := range m.shipments {
		if s.IsParty(party) {
			out = append(out, s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *ShipmentStore) UpdateShipment(ctx context.Context, s *shipment.Shipment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.shipments[s.ID]
	if !ok {
		return fmt.Errorf("%w: %d", domainErr.ErrShipmentNotFound, s.ID)
	}
	if cur.Version != s.Version {
		return fmt.Errorf("%w: shipment %d at version %d, update based on %d", domainErr.ErrVersionConflict, s.ID, cur.Version, s.Version)
	}
	s.Version++
	m.shipments[s.ID] = s.Clone()
	return nil
}

func (m *ShipmentStore) DeleteShipment(ctx context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.shipments[id]; !ok {
		return fmt.Errorf("%w: %d", domainErr.ErrShipmentNotFound, id)
	}
	delete(m.shipments, id)
	return nil
}
