// services/settlement-service/internal/app/auth/session_service.go
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainErr "github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/domain/errors"
	"github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/domain/roleproof"
	"github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/domain/session"
	"github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/ports/repository"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// ProofVerifier is what the session service needs from DelegationVerifier.
type ProofVerifier interface {
	Verify(ctx context.Context, proof roleproof.RoleProof, caller string) (bool, error)
}

// SessionService is the session store: authenticate, logout and the authorization checks.
type SessionService struct {
	verifier ProofVerifier
	sessions repository.SessionStore
	duration time.Duration
	now      func() time.Time
	log      logrus.FieldLogger
}

func NewSessionService(verifier ProofVerifier, sessions repository.SessionStore, duration time.Duration, now func() time.Time, log logrus.FieldLogger) *SessionService {
	if now == nil {
		now = time.Now
	}
	return &SessionService{
		verifier: verifier,
		sessions: sessions,
		duration: duration,
		now:      now,
		log:      log.WithField("component", "sessions"),
	}
}

// Authenticate verifies the proof and upserts the caller's session.
// Re-authentication overwrites the previous session.
func (s *SessionService) Authenticate(ctx context.Context, caller string, proof roleproof.RoleProof) error {
	if _, err := roleproof.ParseRole(proof.Role); err != nil {
		return domainErr.ErrInvalidCredential
	}
	ok, err := s.verifier.Verify(ctx, proof, caller)
	if err != nil {
		return fmt.Errorf("verify role proof: %w", err)
	}
	if !ok {
		return domainErr.ErrInvalidCredential
	}
	sess := &session.Session{
		RoleProof:  proof,
		Expiration: s.now().Add(s.duration).UTC(),
	}
	if err := s.sessions.PutSession(ctx, caller, sess); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	s.log.WithFields(logrus.Fields{
		"caller":    caller,
		"role":      proof.Role,
		"delegator": proof.MembershipProof.DelegatorAddress.Hex(),
	}).Info("caller authenticated")
	return nil
}

// Logout removes the caller's session. It fails without an existing session.
func (s *SessionService) Logout(ctx context.Context, caller string) error {
	err := s.sessions.DeleteSession(ctx, caller)
	if errors.Is(err, domainErr.ErrSessionNotFound) {
		return domainErr.ErrNotAuthenticated
	}
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	s.log.WithField("caller", caller).Info("caller logged out")
	return nil
}

// validSession returns the caller's unexpired session or ErrNotAuthenticated.
func (s *SessionService) validSession(ctx context.Context, caller string) (*session.Session, error) {
	sess, err := s.sessions.GetSession(ctx, caller)
	if errors.Is(err, domainErr.ErrSessionNotFound) {
		return nil, domainErr.ErrNotAuthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !sess.ValidAt(s.now()) {
		return nil, domainErr.ErrNotAuthenticated
	}
	return sess, nil
}

func (s *SessionService) IsAuthenticated(ctx context.Context, caller string) (bool, error) {
	_, err := s.validSession(ctx, caller)
	if errors.Is(err, domainErr.ErrNotAuthenticated) {
		return false, nil
	}
	return err == nil, err
}

// IsAtLeast reports whether the caller has a valid session whose role ranks at least min.
func (s *SessionService) IsAtLeast(ctx context.Context, caller string, min roleproof.Role) (bool, error) {
	sess, err := s.validSession(ctx, caller)
	if errors.Is(err, domainErr.ErrNotAuthenticated) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	role, err := roleproof.ParseRole(sess.RoleProof.Role)
	if err != nil {
		return false, nil
	}
	return role.AtLeast(min), nil
}

// Role returns the role of the caller's valid session.
func (s *SessionService) Role(ctx context.Context, caller string) (roleproof.Role, error) {
	sess, err := s.validSession(ctx, caller)
	if err != nil {
		return 0, err
	}
	return roleproof.ParseRole(sess.RoleProof.Role)
}

// DelegatorAddress is the organization address the caller acts for.
func (s *SessionService) DelegatorAddress(ctx context.Context, caller string) (common.Address, error) {
	sess, err := s.validSession(ctx, caller)
	if err != nil {
		return common.Address{}, err
	}
	return sess.RoleProof.MembershipProof.DelegatorAddress, nil
}

// RequireAtLeast is the authorization boundary: it turns the boolean checks into typed
// errors and returns the organization the caller acts for.
func (s *SessionService) RequireAtLeast(ctx context.Context, caller string, min roleproof.Role) (common.Address, error) {
	sess, err := s.validSession(ctx, caller)
	if err != nil {
		return common.Address{}, err
	}
	role, err := roleproof.ParseRole(sess.RoleProof.Role)
	if err != nil || !role.AtLeast(min) {
		return common.Address{}, fmt.Errorf("%w: requires %s", domainErr.ErrNotAuthorized, min)
	}
	return sess.RoleProof.MembershipProof.DelegatorAddress, nil
}
