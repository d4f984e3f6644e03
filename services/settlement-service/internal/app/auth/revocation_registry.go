package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/ports/chain"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

const revocationRegistryABI = `[{"type":"function","name":"isRevoked","stateMutability":"view",
"inputs":[{"name":"credentialIdHash","type":"bytes32"}],
"outputs":[{"name":"","type":"bool"}]}]`

// RegistryRevocationChecker asks the revocation registry contract through a consistent eth_call.
type RegistryRevocationChecker struct {
	rpc      chain.RPC
	registry common.Address
	abi      abi.ABI
}

func NewRegistryRevocationChecker(rpc chain.RPC, registry common.Address) (*RegistryRevocationChecker, error) {
	parsed, err := abi.JSON(strings.NewReader(revocationRegistryABI))
	if err != nil {
		return nil, fmt.Errorf("parse revocation registry abi: %w", err)
	}
	return &RegistryRevocationChecker{rpc: rpc, registry: registry, abi: parsed}, nil
}

func (r *RegistryRevocationChecker) IsRevoked(ctx context.Context, credentialIDHash string) (bool, error) {
	data, err := r.abi.Pack("isRevoked", credentialKey(credentialIDHash))
	if err != nil {
		return false, err
	}
	out, err := r.rpc.CallContract(ctx, r.registry, data)
	if err != nil {
		return false, fmt.Errorf("call isRevoked: %w", err)
	}
	values, err := r.abi.Unpack("isRevoked", out)
	if err != nil {
		return false, fmt.Errorf("decode isRevoked: %w", err)
	}
	revoked, ok := values[0].(bool)
	if !ok {
		return false, fmt.Errorf("decode isRevoked: unexpected %T", values[0])
	}
	return revoked, nil
}

// credentialKey uses the hash as-is when it is already 32 bytes of hex, otherwise keccak256 of the string.
func credentialKey(credentialIDHash string) [32]byte {
	if b, err := hexutil.Decode(credentialIDHash); err == nil && len(b) == 32 {
		return common.BytesToHash(b)
	}
	return crypto.Keccak256Hash([]byte(credentialIDHash))
}
