//services/settlement-service/internal/ports/repository/session_store.go

package repository

import (
	"context"

	"github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/domain/session"
)

// SessionStore persists sessions keyed by caller identity. Single-key writes only.
type SessionStore interface {
	// GetSession returns errors.ErrSessionNotFound when the identity has no session.
	GetSession(ctx context.Context, identity string) (*session.Session, error)
	// PutSession upserts, overwriting any prior session of the identity.
	PutSession(ctx context.Context, identity string, s *session.Session) error
	// DeleteSession returns errors.ErrSessionNotFound when there is nothing to delete.
	DeleteSession(ctx context.Context, identity string) error
}
