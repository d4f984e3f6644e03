package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	domainErr "github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/domain/errors"
	"github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/domain/roleproof"
)

type stubVerifier struct {
	ok    bool
	err   error
	calls int
}

func (s *stubVerifier) Verify(ctx context.Context, proof roleproof.RoleProof, caller string) (bool, error) {
	s.calls++
	return s.ok, s.err
}

type manualClock struct{ t time.Time }

func (c *manualClock) Now() time.Time          { return c.t }
func (c *manualClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestSessions(v ProofVerifier) (*SessionService, *manualClock) {
	clock := &manualClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	return NewSessionService(v, newMockSessionStore(), time.Hour, clock.Now, quietLogger()), clock
}

func proofWithRole(role string) roleproof.RoleProof {
	return roleproof.RoleProof{Role: role}
}

func TestAuthenticate_ExpiresWithClock(t *testing.T) {
	svc, clock := newTestSessions(&stubVerifier{ok: true})
	ctx := context.Background()

	if err := svc.Authenticate(ctx, "alice", proofWithRole("Editor")); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	ok, err := svc.IsAuthenticated(ctx, "alice")
	if err != nil || !ok {
		t.Fatalf("expected authenticated, got ok=%v err=%v", ok, err)
	}

	clock.Advance(59 * time.Minute)
	if ok, _ := svc.IsAuthenticated(ctx, "alice"); !ok {
		t.Fatal("session expired early")
	}
	clock.Advance(time.Minute)
	if ok, _ := svc.IsAuthenticated(ctx, "alice"); ok {
		t.Fatal("session valid at its expiration instant")
	}
	if _, err := svc.Role(ctx, "alice"); !errors.Is(err, domainErr.ErrNotAuthenticated) {
		t.Fatalf("Role on expired session: want ErrNotAuthenticated, got %v", err)
	}
}

func TestAuthenticate_Failures(t *testing.T) {
	tests := []struct {
		name     string
		verifier *stubVerifier
		role     string
		wantErr  error
		verified bool
	}{
		{"verification fails", &stubVerifier{ok: false}, "Signer", domainErr.ErrInvalidCredential, true},
		{"unknown role", &stubVerifier{ok: true}, "Admin", domainErr.ErrInvalidCredential, false},
		{"resolver unavailable", &stubVerifier{err: errors.New("dial tcp: refused")}, "Signer", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestSessions(tt.verifier)
			err := svc.Authenticate(context.Background(), "bob", proofWithRole(tt.role))
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("want %v, got %v", tt.wantErr, err)
			}
			if !errors.Is(err, domainErr.ErrAuthentication) && tt.wantErr != nil {
				t.Fatalf("credential failures belong to the authentication category: %v", err)
			}
			if (tt.verifier.calls > 0) != tt.verified {
				t.Fatalf("verifier called %d times", tt.verifier.calls)
			}
			if ok, _ := svc.IsAuthenticated(context.Background(), "bob"); ok {
				t.Fatal("failed authentication stored a session")
			}
		})
	}
}

func TestAuthenticate_ReloginOverwritesSession(t *testing.T) {
	svc, clock := newTestSessions(&stubVerifier{ok: true})
	ctx := context.Background()

	_ = svc.Authenticate(ctx, "carol", proofWithRole("Viewer"))
	clock.Advance(50 * time.Minute)
	if err := svc.Authenticate(ctx, "carol", proofWithRole("Signer")); err != nil {
		t.Fatal(err)
	}
	clock.Advance(30 * time.Minute)

	role, err := svc.Role(ctx, "carol")
	if err != nil {
		t.Fatalf("second login should have extended the session: %v", err)
	}
	if role != roleproof.RoleSigner {
		t.Fatalf("want Signer, got %s", role)
	}
}

func TestLogout(t *testing.T) {
	svc, _ := newTestSessions(&stubVerifier{ok: true})
	ctx := context.Background()

	if err := svc.Logout(ctx, "dave"); !errors.Is(err, domainErr.ErrNotAuthenticated) {
		t.Fatalf("logout without session: want ErrNotAuthenticated, got %v", err)
	}
	_ = svc.Authenticate(ctx, "dave", proofWithRole("Viewer"))
	if err := svc.Logout(ctx, "dave"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if ok, _ := svc.IsAuthenticated(ctx, "dave"); ok {
		t.Fatal("still authenticated after logout")
	}
}

func TestIsAtLeast_Monotonic(t *testing.T) {
	roles := []roleproof.Role{roleproof.RoleViewer, roleproof.RoleEditor, roleproof.RoleSigner}
	ctx := context.Background()

	for _, held := range roles {
		svc, _ := newTestSessions(&stubVerifier{ok: true})
		_ = svc.Authenticate(ctx, "erin", proofWithRole(held.String()))
		for _, min := range roles {
			got, err := svc.IsAtLeast(ctx, "erin", min)
			if err != nil {
				t.Fatal(err)
			}
			if want := held >= min; got != want {
				t.Errorf("held %s, IsAtLeast(%s) = %v, want %v", held, min, got, want)
			}
		}
	}

	svc, _ := newTestSessions(&stubVerifier{ok: true})
	if ok, _ := svc.IsAtLeast(ctx, "nobody", roleproof.RoleViewer); ok {
		t.Fatal("unauthenticated caller passed IsAtLeast")
	}
}

func TestRequireAtLeast(t *testing.T) {
	f := newProofFixture(t)
	svc := NewSessionService(f.verifier(), newMockSessionStore(), time.Hour, func() time.Time { return f.now }, quietLogger())
	ctx := context.Background()

	if _, err := svc.RequireAtLeast(ctx, callerID, roleproof.RoleViewer); !errors.Is(err, domainErr.ErrNotAuthenticated) {
		t.Fatalf("want ErrNotAuthenticated, got %v", err)
	}
	if err := svc.Authenticate(ctx, callerID, f.validProof(t, "editor")); err != nil {
		t.Fatalf("authenticate with real proof: %v", err)
	}

	org, err := svc.RequireAtLeast(ctx, callerID, roleproof.RoleEditor)
	if err != nil {
		t.Fatal(err)
	}
	if org != addr(f.delegator) {
		t.Fatalf("delegator: want %s, got %s", addr(f.delegator).Hex(), org.Hex())
	}
	if _, err := svc.RequireAtLeast(ctx, callerID, roleproof.RoleSigner); !errors.Is(err, domainErr.ErrNotAuthorized) {
		t.Fatalf("want ErrNotAuthorized, got %v", err)
	}
	got, err := svc.DelegatorAddress(ctx, callerID)
	if err != nil || got != org {
		t.Fatalf("DelegatorAddress = %s, %v", got.Hex(), err)
	}
}
