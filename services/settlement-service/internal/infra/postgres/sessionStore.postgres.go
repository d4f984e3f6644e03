package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	domainErr "github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/domain/errors"
	"github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/domain/session"
	"github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/ports/repository"
)

// Ensure PostgresSessionStore implements the interface at compile time
var _ repository.SessionStore = (*PostgresSessionStore)(nil)

type PostgresSessionStore struct {
	db *sql.DB
}

func NewPostgresSessionStore(db *sql.DB) *PostgresSessionStore {
	return &PostgresSessionStore{db: db}
}

func (s *PostgresSessionStore) GetSession(ctx context.Context, identity string) (*session.Session, error) {
	var (
		raw  []byte
		sess session.Session
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT role_proof, expiration FROM settlement_sessions WHERE identity = $1`, identity,
	).Scan(&raw, &sess.Expiration)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domainErr.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select session: %w", err)
	}
	if err := json.Unmarshal(raw, &sess.RoleProof); err != nil {
		return nil, fmt.Errorf("decode role proof: %w", err)
	}
	return &sess, nil
}

func (s *PostgresSessionStore) PutSession(ctx context.Context, identity string, sess *session.Session) error {
	raw, err := json.Marshal(sess.RoleProof)
	if err != nil {
		return fmt.Errorf("encode role proof: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO settlement_sessions (identity, role_proof, expiration)
        VALUES ($1, $2, $3)
        ON CONFLICT (identity) DO UPDATE
        SET role_proof = EXCLUDED.role_proof, expiration = EXCLUDED.expiration`,
		identity, raw, sess.Expiration)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

func (s *PostgresSessionStore) DeleteSession(ctx context.Context, identity string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM settlement_sessions WHERE identity = $1`, identity)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domainErr.ErrSessionNotFound
	}
	return nil
}
