package auth

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	domainErr "github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/domain/errors"
	"github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/domain/roleproof"
	"github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/domain/session"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
)

// --- MOCKS ---

type fakeResolver struct {
	addrs map[string]common.Address
	err   error
}

func (f *fakeResolver) ResolveAddress(ctx context.Context, identity string) (common.Address, error) {
	if f.err != nil {
		return common.Address{}, f.err
	}
	a, ok := f.addrs[identity]
	if !ok {
		return common.Address{}, errors.New("unknown identity")
	}
	return a, nil
}

type fakeRevocations struct {
	revoked map[string]bool
	err     error
}

func (f *fakeRevocations) IsRevoked(ctx context.Context, hash string) (bool, error) {
	return f.revoked[hash], f.err
}

type mockSessionStore struct {
	mu       sync.Mutex
	sessions map[string]session.Session
}

func newMockSessionStore() *mockSessionStore {
	return &mockSessionStore{sessions: make(map[string]session.Session)}
}

func (m *mockSessionStore) GetSession(ctx context.Context, id string) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, domainErr.ErrSessionNotFound
	}
	return &s, nil
}

func (m *mockSessionStore) PutSession(ctx context.Context, id string, s *session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = *s
	return nil
}

func (m *mockSessionStore) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return domainErr.ErrSessionNotFound
	}
	delete(m.sessions, id)
	return nil
}

// --- FIXTURE ---

const callerID = "principal-abc"

type proofFixture struct {
	issuer    *ecdsa.PrivateKey
	delegator *ecdsa.PrivateKey
	delegate  *ecdsa.PrivateKey
	now       time.Time
}

func newProofFixture(t *testing.T) *proofFixture {
	t.Helper()
	gen := func() *ecdsa.PrivateKey {
		k, err := crypto.GenerateKey()
		if err != nil {
			t.Fatalf("generate key: %v", err)
		}
		return k
	}
	return &proofFixture{
		issuer:    gen(),
		delegator: gen(),
		delegate:  gen(),
		now:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func addr(k *ecdsa.PrivateKey) common.Address { return crypto.PubkeyToAddress(k.PublicKey) }

func (f *proofFixture) resolver() *fakeResolver {
	return &fakeResolver{addrs: map[string]common.Address{callerID: addr(f.delegate)}}
}

func (f *proofFixture) verifier(opts ...VerifierOption) *DelegationVerifier {
	opts = append([]VerifierOption{WithVerifierClock(func() time.Time { return f.now })}, opts...)
	return NewDelegationVerifier(f.resolver(), addr(f.issuer), quietLogger(), opts...)
}

// signMembership signs mp with the issuer key, filling Issuer and SignedProof.
func (f *proofFixture) signMembership(t *testing.T, mp roleproof.MembershipProof) roleproof.MembershipProof {
	t.Helper()
	mp.Issuer = addr(f.issuer)
	d, err := mp.Digest()
	if err != nil {
		t.Fatal(err)
	}
	if mp.SignedProof, err = roleproof.SignPersonal(d, f.issuer); err != nil {
		t.Fatal(err)
	}
	return mp
}

// signRole signs p with the delegator key, filling Signer and SignedProof.
func (f *proofFixture) signRole(t *testing.T, p roleproof.RoleProof) roleproof.RoleProof {
	t.Helper()
	p.Signer = addr(f.delegator)
	d, err := p.Digest()
	if err != nil {
		t.Fatal(err)
	}
	if p.SignedProof, err = roleproof.SignPersonal(d, f.delegator); err != nil {
		t.Fatal(err)
	}
	return p
}

func (f *proofFixture) validProof(t *testing.T, role string) roleproof.RoleProof {
	t.Helper()
	mp := f.signMembership(t, roleproof.MembershipProof{
		DelegatorAddress:              addr(f.delegator),
		DelegatorCredentialIdHash:     "0x2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		DelegatorCredentialExpiryDate: f.now.Add(365 * 24 * time.Hour).Unix(),
	})
	return f.signRole(t, roleproof.RoleProof{
		DelegateAddress:              addr(f.delegate),
		Role:                         role,
		DelegateCredentialIdHash:     "0x486ea46224d1bb4fb680f34f7c9ad96a8f24ec88be73ea8e5a6c65260e9cb8a7",
		DelegateCredentialExpiryDate: f.now.Add(30 * 24 * time.Hour).Unix(),
		MembershipProof:              mp,
	})
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
