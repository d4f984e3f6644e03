package oracle

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"sync"

	"github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/ports/chain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// LocalSigner stands in for the oracle in development: it derives keys from a seed and
// answers exactly like the gateway, r||s without a recovery id. Never use it in production.
type LocalSigner struct {
	seed []byte

	mu   sync.Mutex
	keys map[common.Hash]*ecdsa.PrivateKey
}

func NewLocalSigner(seed []byte) (*LocalSigner, error) {
	if len(seed) < 16 {
		return nil, fmt.Errorf("dev oracle seed must be at least 16 bytes")
	}
	return &LocalSigner{seed: seed, keys: make(map[common.Hash]*ecdsa.PrivateKey)}, nil
}

func (l *LocalSigner) key(path chain.DerivationPath) (*ecdsa.PrivateKey, error) {
	parts := append([][]byte{l.seed}, path...)
	id := crypto.Keccak256Hash(parts...)

	l.mu.Lock()
	defer l.mu.Unlock()
	if k, ok := l.keys[id]; ok {
		return k, nil
	}
	// Rehash until the digest is a valid scalar; in practice the first one is.
	d := id.Bytes()
	for i := 0; i < 8; i++ {
		k, err := crypto.ToECDSA(d)
		if err == nil {
			l.keys[id] = k
			return k, nil
		}
		d = crypto.Keccak256(d)
	}
	return nil, fmt.Errorf("could not derive key for path")
}

func (l *LocalSigner) PublicKey(ctx context.Context, path chain.DerivationPath) ([]byte, error) {
	k, err := l.key(path)
	if err != nil {
		return nil, err
	}
	return crypto.CompressPubkey(&k.PublicKey), nil
}

func (l *LocalSigner) SignHash(ctx context.Context, path chain.DerivationPath, hash common.Hash) ([]byte, error) {
	k, err := l.key(path)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(hash[:], k)
	if err != nil {
		return nil, err
	}
	return sig[:64], nil
}
