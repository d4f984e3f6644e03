// services/settlement-service/internal/ports/chain/chain.ports.go
package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// AddressResolver maps a caller's platform identity to its chain address.
type AddressResolver interface {
	ResolveAddress(ctx context.Context, identity string) (common.Address, error)
}

// RPC is the multi-provider JSON-RPC proxy. Every method queries all providers and
// only returns a result they agree on.
type RPC interface {
	// NonceAt is eth_getTransactionCount(addr, "pending").
	NonceAt(ctx context.Context, addr common.Address) (uint64, error)
	// SendRawTransaction is eth_sendRawTransaction; returns the transaction hash.
	SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error)
	// CallContract is eth_call(to, data) against the latest block.
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

// FeeSource provides live EIP-1559 fee data from the reference provider.
type FeeSource interface {
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	BaseFee(ctx context.Context) (*big.Int, error)
}

// DerivationPath selects the oracle key. The service uses one fixed path for all users.
type DerivationPath [][]byte

// ThresholdSigner is the distributed ECDSA signing oracle. It never exposes the private key.
type ThresholdSigner interface {
	// PublicKey returns the SEC1 public key (compressed or uncompressed) at path.
	PublicKey(ctx context.Context, path DerivationPath) ([]byte, error)
	// SignHash returns a 64-byte r||s signature over hash, without a recovery id.
	SignHash(ctx context.Context, path DerivationPath, hash common.Hash) ([]byte, error)
}
