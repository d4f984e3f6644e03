package txsigner

import (
	"fmt"
	"math/big"

	domainErr "github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/domain/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	secp256k1N     = crypto.S256().Params().N
	secp256k1HalfN = new(big.Int).Rsh(secp256k1N, 1)
)

// ResolveRecoveryID turns the oracle's 64-byte r||s into a 65-byte r||s||v signature whose
// recovered address is want. High-S values are flipped to the low half first, since
// nodes reject them; the search over v then covers the flipped parity.
func ResolveRecoveryID(hash common.Hash, rs []byte, want common.Address) ([]byte, error) {
	if len(rs) != 64 {
		return nil, fmt.Errorf("oracle returned %d-byte signature, want 64", len(rs))
	}
	sig := make([]byte, crypto.SignatureLength)
	copy(sig, rs)

	s := new(big.Int).SetBytes(sig[32:64])
	if s.Cmp(secp256k1HalfN) > 0 {
		s.Sub(secp256k1N, s)
		s.FillBytes(sig[32:64])
	}

	for v := byte(0); v <= 1; v++ {
		sig[crypto.RecoveryIDOffset] = v
		pub, err := crypto.SigToPub(hash[:], sig)
		if err != nil {
			continue
		}
		if crypto.PubkeyToAddress(*pub) == want {
			return sig, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domainErr.ErrRecoveryIDMismatch, want.Hex())
}
