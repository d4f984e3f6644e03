// services/settlement-service/internal/app/txsigner/signer.go
package txsigner

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	domainErr "github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/domain/errors"
	"github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/ports/chain"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
)

type TxFormat string

const (
	FormatLegacy  TxFormat = "legacy"
	FormatEIP1559 TxFormat = "eip1559"
)

type Config struct {
	ChainID        *big.Int
	Format         TxFormat
	GasLimit       uint64
	GasPrice       *big.Int // legacy only
	DerivationPath chain.DerivationPath
}

// Receipt describes a broadcast transaction. Inclusion is not awaited.
type Receipt struct {
	TxHash common.Hash    `json:"txHash"`
	From   common.Address `json:"from"`
	Nonce  uint64         `json:"nonce"`
	TxType uint8          `json:"txType"`
	Raw    []byte         `json:"-"`
}

// Signer emits transactions from the oracle-controlled address. The service never holds the key:
// it hashes the transaction, asks the oracle for r||s and recovers v itself.
type Signer struct {
	oracle chain.ThresholdSigner
	rpc    chain.RPC
	fees   chain.FeeSource
	cfg    Config
	log    logrus.FieldLogger

	mu      sync.Mutex
	address *common.Address

	// sendMu is held from the nonce read until the broadcast returns. All transactions
	// leave from one address, so two submits must never observe the same pending nonce.
	sendMu sync.Mutex
}

func New(oracle chain.ThresholdSigner, rpc chain.RPC, fees chain.FeeSource, cfg Config, log logrus.FieldLogger) *Signer {
	if cfg.Format == "" {
		cfg.Format = FormatLegacy
	}
	return &Signer{
		oracle: oracle,
		rpc:    rpc,
		fees:   fees,
		cfg:    cfg,
		log:    log.WithField("component", "txsigner"),
	}
}

// Address derives the controlled address from the oracle public key. Cached after the first success.
func (s *Signer) Address(ctx context.Context) (common.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.address != nil {
		return *s.address, nil
	}
	pub, err := s.oracle.PublicKey(ctx, s.cfg.DerivationPath)
	if err != nil {
		return common.Address{}, fmt.Errorf("fetch oracle public key: %w", err)
	}
	addr, err := AddressFromPublicKey(pub)
	if err != nil {
		return common.Address{}, err
	}
	s.address = &addr
	s.log.WithField("address", addr.Hex()).Info("controlled address derived")
	return addr, nil
}

// AddressFromPublicKey accepts a 33-byte compressed or 65-byte uncompressed secp256k1 key.
func AddressFromPublicKey(pub []byte) (common.Address, error) {
	switch len(pub) {
	case 33:
		key, err := crypto.DecompressPubkey(pub)
		if err != nil {
			return common.Address{}, fmt.Errorf("decompress public key: %w", err)
		}
		return crypto.PubkeyToAddress(*key), nil
	case 65:
		key, err := crypto.UnmarshalPubkey(pub)
		if err != nil {
			return common.Address{}, fmt.Errorf("unmarshal public key: %w", err)
		}
		return crypto.PubkeyToAddress(*key), nil
	}
	return common.Address{}, fmt.Errorf("public key has %d bytes", len(pub))
}

// Submit encodes method(args...) against contract, signs it through the oracle and broadcasts it
// on every provider. Nothing is retried: any failure leaves no transaction behind.
func (s *Signer) Submit(ctx context.Context, contract common.Address, contractABI abi.ABI, method string, args ...interface{}) (*Receipt, error) {
	from, err := s.Address(ctx)
	if err != nil {
		return nil, err
	}
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", method, err)
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	nonce, err := s.rpc.NonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("nonce for %s: %w", from.Hex(), err)
	}

	tx, signer, err := s.buildTx(ctx, nonce, contract, data)
	if err != nil {
		return nil, err
	}
	hash := signer.Hash(tx)

	rs, err := s.oracle.SignHash(ctx, s.cfg.DerivationPath, hash)
	if err != nil {
		return nil, fmt.Errorf("oracle sign: %w", err)
	}
	sig, err := ResolveRecoveryID(hash, rs, from)
	if err != nil {
		return nil, err
	}
	signed, err := tx.WithSignature(signer, sig)
	if err != nil {
		return nil, fmt.Errorf("attach signature: %w", err)
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("serialize transaction: %w", err)
	}

	txHash, err := s.rpc.SendRawTransaction(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("broadcast %s: %w", method, err)
	}
	if txHash != signed.Hash() {
		return nil, fmt.Errorf("%w: providers reported %s, signed %s", domainErr.ErrProviderInconsistent, txHash.Hex(), signed.Hash().Hex())
	}

	s.log.WithFields(logrus.Fields{
		"method":  method,
		"to":      contract.Hex(),
		"nonce":   nonce,
		"tx_hash": txHash.Hex(),
		"tx_type": signed.Type(),
	}).Info("transaction broadcast")

	return &Receipt{TxHash: txHash, From: from, Nonce: nonce, TxType: signed.Type(), Raw: raw}, nil
}

func (s *Signer) buildTx(ctx context.Context, nonce uint64, to common.Address, data []byte) (*types.Transaction, types.Signer, error) {
	switch s.cfg.Format {
	case FormatLegacy:
		return types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: s.cfg.GasPrice,
			Gas:      s.cfg.GasLimit,
			To:       &to,
			Value:    new(big.Int),
			Data:     data,
		}), types.NewEIP155Signer(s.cfg.ChainID), nil

	case FormatEIP1559:
		tip, err := s.fees.SuggestGasTipCap(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("suggest gas tip: %w", err)
		}
		base, err := s.fees.BaseFee(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("latest base fee: %w", err)
		}
		feeCap := new(big.Int).Add(new(big.Int).Mul(base, big.NewInt(2)), tip)
		return types.NewTx(&types.DynamicFeeTx{
			ChainID:   s.cfg.ChainID,
			Nonce:     nonce,
			GasTipCap: tip,
			GasFeeCap: feeCap,
			Gas:       s.cfg.GasLimit,
			To:        &to,
			Value:     new(big.Int),
			Data:      data,
		}), types.NewLondonSigner(s.cfg.ChainID), nil
	}
	return nil, nil, fmt.Errorf("unknown transaction format %q", s.cfg.Format)
}

// Call runs a read-only method through a consistent eth_call and decodes the outputs.
func (s *Signer) Call(ctx context.Context, contract common.Address, contractABI abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", method, err)
	}
	out, err := s.rpc.CallContract(ctx, contract, data)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := contractABI.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", method, err)
	}
	return values, nil
}
