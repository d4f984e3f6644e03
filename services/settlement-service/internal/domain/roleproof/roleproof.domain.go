// services/settlement-service/internal/domain/roleproof/roleproof.domain.go
package roleproof

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Role is the delegated authority carried by a RoleProof.
// Ranks form a total order: Viewer < Editor < Signer.
type Role int

const (
	RoleViewer Role = iota + 1
	RoleEditor
	RoleSigner
)

func (r Role) String() string {
	switch r {
	case RoleViewer:
		return "Viewer"
	case RoleEditor:
		return "Editor"
	case RoleSigner:
		return "Signer"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// ParseRole accepts the role names case-insensitively.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "viewer":
		return RoleViewer, nil
	case "editor":
		return RoleEditor, nil
	case "signer":
		return RoleSigner, nil
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

// AtLeast reports whether r ranks at or above min. Unknown roles rank below everything.
func (r Role) AtLeast(min Role) bool {
	if r < RoleViewer || r > RoleSigner {
		return false
	}
	return r >= min
}

// MembershipProof is the inner credential: the trusted issuer vouches that
// DelegatorAddress belongs to a member organization.
type MembershipProof struct {
	DelegatorAddress              common.Address `json:"delegatorAddress"`
	DelegatorCredentialIdHash     string         `json:"delegatorCredentialIdHash"`
	DelegatorCredentialExpiryDate int64          `json:"delegatorCredentialExpiryDate"`
	SignedProof                   string         `json:"signedProof"`
	Issuer                        common.Address `json:"issuer"`
}

// RoleProof is the outer credential: the delegator grants Role to DelegateAddress.
type RoleProof struct {
	DelegateAddress              common.Address  `json:"delegateAddress"`
	Role                         string          `json:"role"`
	DelegateCredentialIdHash     string          `json:"delegateCredentialIdHash"`
	DelegateCredentialExpiryDate int64           `json:"delegateCredentialExpiryDate"`
	SignedProof                  string          `json:"signedProof"`
	Signer                       common.Address  `json:"signer"`
	MembershipProof              MembershipProof `json:"membershipProof"`
}

var (
	addressTy, _ = abi.NewType("address", "", nil)
	stringTy, _  = abi.NewType("string", "", nil)
	uint256Ty, _ = abi.NewType("uint256", "", nil)

	roleArgs       = abi.Arguments{{Type: addressTy}, {Type: stringTy}, {Type: stringTy}, {Type: uint256Ty}}
	membershipArgs = abi.Arguments{{Type: stringTy}, {Type: uint256Ty}, {Type: addressTy}}
)

// Digest is keccak256 of the ABI encoding of
// (delegateAddress, role, delegateCredentialIdHash, delegateCredentialExpiryDate).
func (p RoleProof) Digest() ([]byte, error) {
	packed, err := roleArgs.Pack(
		p.DelegateAddress,
		p.Role,
		p.DelegateCredentialIdHash,
		big.NewInt(p.DelegateCredentialExpiryDate),
	)
	if err != nil {
		return nil, fmt.Errorf("encode role proof: %w", err)
	}
	return crypto.Keccak256(packed), nil
}

// Digest is keccak256 of the ABI encoding of
// (delegatorCredentialIdHash, delegatorCredentialExpiryDate, delegatorAddress).
func (m MembershipProof) Digest() ([]byte, error) {
	packed, err := membershipArgs.Pack(
		m.DelegatorCredentialIdHash,
		big.NewInt(m.DelegatorCredentialExpiryDate),
		m.DelegatorAddress,
	)
	if err != nil {
		return nil, fmt.Errorf("encode membership proof: %w", err)
	}
	return crypto.Keccak256(packed), nil
}
