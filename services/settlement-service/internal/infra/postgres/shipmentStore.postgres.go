package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	domainErr "github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/domain/errors"
	"github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/domain/shipment"
	"github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/ports/repository"
	"github.com/ethereum/go-ethereum/common"
)

var _ repository.ShipmentStore = (*PostgresShipmentStore)(nil)

// PostgresShipmentStore keeps the shipment document as JSONB. id and version live in their
// own columns and always win over the copies inside the document.
type PostgresShipmentStore struct {
	db *sql.DB
}

func NewPostgresShipmentStore(db *sql.DB) *PostgresShipmentStore {
	return &PostgresShipmentStore{db: db}
}

func (s *PostgresShipmentStore) CreateShipment(ctx context.Context, sh *shipment.Shipment) error {
	data, err := json.Marshal(sh)
	if err != nil {
		return fmt.Errorf("encode shipment: %w", err)
	}
	var id int64
	err = s.db.QueryRowContext(ctx, `
        INSERT INTO settlement_shipments (supplier, commissioner, version, data)
        VALUES ($1, $2, 1, $3)
        RETURNING id`,
		sh.Supplier.Hex(), sh.Commissioner.Hex(), data,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("insert shipment: %w", err)
	}
	sh.ID = uint64(id)
	sh.Version = 1
	return nil
}

func (s *PostgresShipmentStore) GetShipment(ctx context.Context, id uint64) (*shipment.Shipment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, version, data FROM settlement_shipments WHERE id = $1`, int64(id))
	sh, err := scanShipment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", domainErr.ErrShipmentNotFound, id)
	}
	return sh, err
}

func (s *PostgresShipmentStore) ListShipments(ctx context.Context, party common.Address) ([]*shipment.Shipment, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, version, data FROM settlement_shipments
        WHERE supplier = $1 OR commissioner = $1
        ORDER BY id`, party.Hex())
	if err != nil {
		return nil, fmt.Errorf("select shipments: %w", err)
	}
	defer rows.Close()

	var out []*shipment.Shipment
	for rows.Next() {
		sh, err := scanShipment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sh)
	}
	return out, rows.Err()
}

// UpdateShipment writes only if the stored version still equals sh.Version ("Compare-and-Swap").
func (s *PostgresShipmentStore) UpdateShipment(ctx context.Context, sh *shipment.Shipment) error {
	data, err := json.Marshal(sh)
	if err != nil {
		return fmt.Errorf("encode shipment: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
        UPDATE settlement_shipments
        SET data = $1, version = version + 1, updated_at = now()
        WHERE id = $2 AND version = $3`,
		data, int64(sh.ID), sh.Version)
	if err != nil {
		return fmt.Errorf("update shipment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM settlement_shipments WHERE id = $1)`, int64(sh.ID),
		).Scan(&exists); err != nil {
			return fmt.Errorf("check shipment: %w", err)
		}
		if !exists {
			return fmt.Errorf("%w: %d", domainErr.ErrShipmentNotFound, sh.ID)
		}
		return fmt.Errorf("%w: shipment %d, update based on version %d", domainErr.ErrVersionConflict, sh.ID, sh.Version)
	}
	sh.Version++
	return nil
}

func (s *PostgresShipmentStore) DeleteShipment(ctx context.Context, id uint64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM settlement_shipments WHERE id = $1`, int64(id))
	if err != nil {
		return fmt.Errorf("delete shipment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", domainErr.ErrShipmentNotFound, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanShipment(row rowScanner) (*shipment.Shipment, error) {
	var (
		id      int64
		version int64
		data    []byte
	)
	if err := row.Scan(&id, &version, &data); err != nil {
		return nil, err
	}
	var sh shipment.Shipment
	if err := json.Unmarshal(data, &sh); err != nil {
		return nil, fmt.Errorf("decode shipment %d: %w", id, err)
	}
	if sh.Documents == nil {
		sh.Documents = make(map[shipment.DocumentType][]shipment.DocumentInfo)
	}
	sh.ID = uint64(id)
	sh.Version = version
	return &sh, nil
}
