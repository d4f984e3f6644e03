package roleproof

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var ErrMalformedSignature = errors.New("malformed signature")

// DecodeSignature parses a 65-byte hex signature and normalizes v from {27,28} to {0,1}.
func DecodeSignature(sigHex string) ([]byte, error) {
	sig, err := hexutil.Decode(sigHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	if len(sig) != crypto.SignatureLength {
		return nil, fmt.Errorf("%w: length %d", ErrMalformedSignature, len(sig))
	}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	if sig[crypto.RecoveryIDOffset] > 1 {
		return nil, fmt.Errorf("%w: recovery id %d", ErrMalformedSignature, sig[crypto.RecoveryIDOffset])
	}
	return sig, nil
}

// RecoverPersonalSigner recovers the address that signed digest as an EIP-191
// personal message ("\x19Ethereum Signed Message:\n32" || digest).
func RecoverPersonalSigner(digest []byte, sigHex string) (common.Address, error) {
	sig, err := DecodeSignature(sigHex)
	if err != nil {
		return common.Address{}, err
	}
	pub, err := crypto.SigToPub(accounts.TextHash(digest), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// SignPersonal produces the hex signature RecoverPersonalSigner accepts, with v in {27,28}
// the way wallets emit it. Used by credential tooling and tests.
func SignPersonal(digest []byte, key *ecdsa.PrivateKey) (string, error) {
	sig, err := crypto.Sign(accounts.TextHash(digest), key)
	if err != nil {
		return "", err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}
