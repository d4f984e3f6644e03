// services/settlement-service/internal/app/auth/delegation_verifier.go
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/domain/roleproof"
	"github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/ports/chain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// RevocationChecker is the on-chain revocation lookup for credential hashes.
// The verifier skips it when none is configured.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, credentialIDHash string) (bool, error)
}

// DelegationVerifier validates the two-hop proof chain:
// trusted issuer -> (membership) -> delegator -> (role) -> delegate.
type DelegationVerifier struct {
	resolver      chain.AddressResolver
	trustedIssuer common.Address
	revocation    RevocationChecker
	now           func() time.Time
	log           logrus.FieldLogger
}

type VerifierOption func(*DelegationVerifier)

func WithVerifierClock(now func() time.Time) VerifierOption {
	return func(v *DelegationVerifier) { v.now = now }
}

func WithRevocationChecker(rc RevocationChecker) VerifierOption {
	return func(v *DelegationVerifier) { v.revocation = rc }
}

func NewDelegationVerifier(resolver chain.AddressResolver, trustedIssuer common.Address, log logrus.FieldLogger, opts ...VerifierOption) *DelegationVerifier {
	v := &DelegationVerifier{
		resolver:      resolver,
		trustedIssuer: trustedIssuer,
		now:           time.Now,
		log:           log.WithField("component", "delegation_verifier"),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify returns false for any invalid proof. The only error is an unreachable resolver,
// so the authorization boundary decides which typed error to surface.
func (v *DelegationVerifier) Verify(ctx context.Context, proof roleproof.RoleProof, caller string) (bool, error) {
	callerAddr, err := v.resolver.ResolveAddress(ctx, caller)
	if err != nil {
		return false, fmt.Errorf("resolve caller address: %w", err)
	}
	reject := func(step string) (bool, error) {
		v.log.WithFields(logrus.Fields{"caller": caller, "step": step}).Debug("role proof rejected")
		return false, nil
	}
	now := v.now().Unix()

	if callerAddr != proof.DelegateAddress {
		return reject("delegate address does not belong to caller")
	}

	// Role proof, signed by the delegator.
	roleDigest, err := proof.Digest()
	if err != nil {
		return reject("encode role proof")
	}
	delegator, err := roleproof.RecoverPersonalSigner(roleDigest, proof.SignedProof)
	if err != nil {
		return reject("recover role proof signer")
	}
	// The explicit signer field is checked against the recovered address; neither is trusted alone.
	if delegator != proof.Signer {
		return reject("role proof signer mismatch")
	}
	if proof.DelegateCredentialExpiryDate < now {
		return reject("delegate credential expired")
	}

	// Membership proof, signed by the trusted issuer.
	mp := proof.MembershipProof
	memberDigest, err := mp.Digest()
	if err != nil {
		return reject("encode membership proof")
	}
	issuer, err := roleproof.RecoverPersonalSigner(memberDigest, mp.SignedProof)
	if err != nil {
		return reject("recover membership signer")
	}
	if issuer != mp.Issuer || issuer != v.trustedIssuer {
		return reject("membership issuer not trusted")
	}
	if mp.DelegatorAddress != delegator {
		return reject("membership does not vouch for the role proof signer")
	}
	if mp.DelegatorCredentialExpiryDate < now {
		return reject("delegator credential expired")
	}

	if v.revocation != nil {
		for _, hash := range []string{proof.DelegateCredentialIdHash, mp.DelegatorCredentialIdHash} {
			revoked, err := v.revocation.IsRevoked(ctx, hash)
			if err != nil {
				v.log.WithError(err).WithField("credential", hash).Warn("revocation lookup failed")
				return reject("revocation lookup failed")
			}
			if revoked {
				return reject("credential revoked")
			}
		}
	}
	return true, nil
}
