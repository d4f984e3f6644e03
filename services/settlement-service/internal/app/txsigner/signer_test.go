package txsigner

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	domainErr "github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/domain/errors"
	"github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/ports/chain"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
)

// --- MOCKS ---

// keyOracle behaves like the threshold oracle: it exposes a public key and returns r||s only.
// signWith, when set, signs with a different key than the one it advertises.
type keyOracle struct {
	key       *ecdsa.PrivateKey
	signWith  *ecdsa.PrivateKey
	pubCalls  int
	signCalls int
}

func (o *keyOracle) PublicKey(ctx context.Context, path chain.DerivationPath) ([]byte, error) {
	o.pubCalls++
	return crypto.CompressPubkey(&o.key.PublicKey), nil
}

func (o *keyOracle) SignHash(ctx context.Context, path chain.DerivationPath, hash common.Hash) ([]byte, error) {
	o.signCalls++
	k := o.key
	if o.signWith != nil {
		k = o.signWith
	}
	sig, err := crypto.Sign(hash[:], k)
	if err != nil {
		return nil, err
	}
	return sig[:64], nil
}

type fakeRPC struct {
	nonce    uint64
	nonceErr error
	sent     [][]byte
	sendErr  error
	callOut  []byte
}

func (f *fakeRPC) NonceAt(ctx context.Context, addr common.Address) (uint64, error) {
	return f.nonce, f.nonceErr
}

func (f *fakeRPC) SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error) {
	if f.sendErr != nil {
		return common.Hash{}, f.sendErr
	}
	f.sent = append(f.sent, raw)
	var tx types.Transaction
	if err := tx.UnmarshalBinary(raw); err != nil {
		return common.Hash{}, err
	}
	return tx.Hash(), nil
}

func (f *fakeRPC) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	return f.callOut, nil
}

type fakeFees struct{ tip, base *big.Int }

func (f fakeFees) SuggestGasTipCap(ctx context.Context) (*big.Int, error) { return f.tip, nil }
func (f fakeFees) BaseFee(ctx context.Context) (*big.Int, error)          { return f.base, nil }

// slowOracle is safe for concurrent use and holds each signature briefly, so concurrent
// submits overlap between the nonce read and the broadcast.
type slowOracle struct{ key *ecdsa.PrivateKey }

func (o slowOracle) PublicKey(ctx context.Context, path chain.DerivationPath) ([]byte, error) {
	return crypto.CompressPubkey(&o.key.PublicKey), nil
}

func (o slowOracle) SignHash(ctx context.Context, path chain.DerivationPath, hash common.Hash) ([]byte, error) {
	time.Sleep(5 * time.Millisecond)
	sig, err := crypto.Sign(hash[:], o.key)
	if err != nil {
		return nil, err
	}
	return sig[:64], nil
}

// pendingNode reports the pending nonce and rejects any transaction that does not use it.
type pendingNode struct {
	mu     sync.Mutex
	next   uint64
	nonces []uint64
}

func (n *pendingNode) NonceAt(ctx context.Context, addr common.Address) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.next, nil
}

func (n *pendingNode) SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error) {
	var tx types.Transaction
	if err := tx.UnmarshalBinary(raw); err != nil {
		return common.Hash{}, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if tx.Nonce() != n.next {
		return common.Hash{}, fmt.Errorf("nonce %d: expected %d", tx.Nonce(), n.next)
	}
	n.next++
	n.nonces = append(n.nonces, tx.Nonce())
	return tx.Hash(), nil
}

func (n *pendingNode) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	return nil, nil
}

// --- FIXTURES ---

const escrowTestABI = `[
{"type":"function","name":"lockFunds","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]},
{"type":"function","name":"getLockedAmount","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]}
]`

var (
	testChainID  = big.NewInt(11155111)
	testContract = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
)

func mustABI(t *testing.T) abi.ABI {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(escrowTestABI))
	if err != nil {
		t.Fatal(err)
	}
	return parsed
}

func mustKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	k, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	return k
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func legacyConfig() Config {
	return Config{
		ChainID:        testChainID,
		Format:         FormatLegacy,
		GasLimit:       300000,
		GasPrice:       big.NewInt(2_000_000_000),
		DerivationPath: chain.DerivationPath{[]byte("settlement")},
	}
}

// --- TESTS ---

func TestResolveRecoveryID_OwnKeyHasExactlyOneMatch(t *testing.T) {
	key := mustKey(t)
	want := crypto.PubkeyToAddress(key.PublicKey)

	for i := 0; i < 16; i++ {
		hash := crypto.Keccak256Hash([]byte{byte(i)})
		full, err := crypto.Sign(hash[:], key)
		if err != nil {
			t.Fatal(err)
		}

		matches := 0
		for v := byte(0); v <= 1; v++ {
			cand := append(append([]byte{}, full[:64]...), v)
			if pub, err := crypto.SigToPub(hash[:], cand); err == nil && crypto.PubkeyToAddress(*pub) == want {
				matches++
			}
		}
		if matches != 1 {
			t.Fatalf("hash %d: %d recovery ids match", i, matches)
		}

		sig, err := ResolveRecoveryID(hash, full[:64], want)
		if err != nil {
			t.Fatalf("hash %d: %v", i, err)
		}
		if sig[64] != full[64] {
			t.Fatalf("hash %d: resolved v=%d, signer produced v=%d", i, sig[64], full[64])
		}
	}
}

func TestResolveRecoveryID_ForeignSignature(t *testing.T) {
	ours, theirs := mustKey(t), mustKey(t)
	hash := crypto.Keccak256Hash([]byte("transfer"))
	full, _ := crypto.Sign(hash[:], theirs)

	_, err := ResolveRecoveryID(hash, full[:64], crypto.PubkeyToAddress(ours.PublicKey))
	if !errors.Is(err, domainErr.ErrRecoveryIDMismatch) {
		t.Fatalf("want ErrRecoveryIDMismatch, got %v", err)
	}
}

func TestResolveRecoveryID_NormalizesHighS(t *testing.T) {
	key := mustKey(t)
	hash := crypto.Keccak256Hash([]byte("high-s"))
	full, _ := crypto.Sign(hash[:], key)

	high := append([]byte{}, full[:64]...)
	s := new(big.Int).SetBytes(high[32:])
	new(big.Int).Sub(secp256k1N, s).FillBytes(high[32:])

	sig, err := ResolveRecoveryID(hash, high, crypto.PubkeyToAddress(key.PublicKey))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(sig[:64], full[:64]) {
		t.Fatal("high-S signature was not normalized to the canonical low-S form")
	}
}

func TestResolveRecoveryID_RejectsWrongLength(t *testing.T) {
	if _, err := ResolveRecoveryID(common.Hash{}, make([]byte, 65), common.Address{}); err == nil {
		t.Fatal("expected length error")
	}
}

func TestSubmit_LegacyRoundTrip(t *testing.T) {
	key := mustKey(t)
	oracle := &keyOracle{key: key}
	rpc := &fakeRPC{nonce: 42}
	s := New(oracle, rpc, nil, legacyConfig(), quietLogger())
	contractABI := mustABI(t)

	rec, err := s.Submit(context.Background(), testContract, contractABI, "lockFunds", big.NewInt(1000))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(rpc.sent) != 1 {
		t.Fatalf("want 1 broadcast, got %d", len(rpc.sent))
	}

	var tx types.Transaction
	if err := tx.UnmarshalBinary(rec.Raw); err != nil {
		t.Fatal(err)
	}
	from, err := types.Sender(types.NewEIP155Signer(testChainID), &tx)
	if err != nil {
		t.Fatalf("recover sender: %v", err)
	}
	if want := crypto.PubkeyToAddress(key.PublicKey); from != want || rec.From != want {
		t.Fatalf("sender %s, receipt from %s, controlled %s", from.Hex(), rec.From.Hex(), want.Hex())
	}
	if tx.Type() != types.LegacyTxType || tx.Nonce() != 42 || tx.Gas() != 300000 {
		t.Fatalf("unexpected tx fields: type=%d nonce=%d gas=%d", tx.Type(), tx.Nonce(), tx.Gas())
	}
	if tx.ChainId().Cmp(testChainID) != 0 {
		t.Fatalf("EIP-155 chain id %s", tx.ChainId())
	}
	wantData, _ := contractABI.Pack("lockFunds", big.NewInt(1000))
	if !bytes.Equal(tx.Data(), wantData) || *tx.To() != testContract {
		t.Fatal("call data or destination mangled")
	}
	if rec.TxHash != tx.Hash() {
		t.Fatal("receipt hash differs from the broadcast transaction")
	}
}

func TestSubmit_EIP1559(t *testing.T) {
	key := mustKey(t)
	cfg := legacyConfig()
	cfg.Format = FormatEIP1559
	fees := fakeFees{tip: big.NewInt(1_500_000_000), base: big.NewInt(30_000_000_000)}
	s := New(&keyOracle{key: key}, &fakeRPC{nonce: 3}, fees, cfg, quietLogger())

	rec, err := s.Submit(context.Background(), testContract, mustABI(t), "lockFunds", big.NewInt(5))
	if err != nil {
		t.Fatal(err)
	}
	var tx types.Transaction
	if err := tx.UnmarshalBinary(rec.Raw); err != nil {
		t.Fatal(err)
	}
	if tx.Type() != types.DynamicFeeTxType {
		t.Fatalf("want type 2, got %d", tx.Type())
	}
	if tx.GasFeeCap().Cmp(big.NewInt(61_500_000_000)) != 0 || tx.GasTipCap().Cmp(fees.tip) != 0 {
		t.Fatalf("fee cap %s tip %s", tx.GasFeeCap(), tx.GasTipCap())
	}
	from, err := types.Sender(types.NewLondonSigner(testChainID), &tx)
	if err != nil || from != crypto.PubkeyToAddress(key.PublicKey) {
		t.Fatalf("sender %s err %v", from.Hex(), err)
	}
}

func TestSubmit_FailuresBroadcastNothing(t *testing.T) {
	key := mustKey(t)
	tests := []struct {
		name    string
		oracle  *keyOracle
		rpc     *fakeRPC
		wantErr error
		signs   int
	}{
		{
			name:    "inconsistent nonce",
			oracle:  &keyOracle{key: key},
			rpc:     &fakeRPC{nonceErr: domainErr.ErrProviderInconsistent},
			wantErr: domainErr.ErrProviderInconsistent,
			signs:   0,
		},
		{
			name:    "oracle signs with foreign key",
			oracle:  &keyOracle{key: key, signWith: mustKey(t)},
			rpc:     &fakeRPC{},
			wantErr: domainErr.ErrRecoveryIDMismatch,
			signs:   1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.oracle, tt.rpc, nil, legacyConfig(), quietLogger())
			_, err := s.Submit(context.Background(), testContract, mustABI(t), "lockFunds", big.NewInt(1))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("want %v, got %v", tt.wantErr, err)
			}
			if len(tt.rpc.sent) != 0 {
				t.Fatal("a transaction was broadcast")
			}
			if tt.oracle.signCalls != tt.signs {
				t.Fatalf("oracle sign calls %d, want %d", tt.oracle.signCalls, tt.signs)
			}
		})
	}
}

func TestSubmit_BroadcastRejected(t *testing.T) {
	rpc := &fakeRPC{sendErr: domainErr.ErrBroadcastRejected}
	s := New(&keyOracle{key: mustKey(t)}, rpc, nil, legacyConfig(), quietLogger())
	_, err := s.Submit(context.Background(), testContract, mustABI(t), "lockFunds", big.NewInt(1))
	if !errors.Is(err, domainErr.ErrBroadcastRejected) || !errors.Is(err, domainErr.ErrTransaction) {
		t.Fatalf("want ErrBroadcastRejected, got %v", err)
	}
}

func TestAddress_CachedAfterFirstSuccess(t *testing.T) {
	oracle := &keyOracle{key: mustKey(t)}
	s := New(oracle, &fakeRPC{}, nil, legacyConfig(), quietLogger())
	for i := 0; i < 3; i++ {
		if _, err := s.Address(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if oracle.pubCalls != 1 {
		t.Fatalf("public key fetched %d times", oracle.pubCalls)
	}
}

func TestAddressFromPublicKey_BothEncodings(t *testing.T) {
	key := mustKey(t)
	want := crypto.PubkeyToAddress(key.PublicKey)
	for _, pub := range [][]byte{crypto.CompressPubkey(&key.PublicKey), crypto.FromECDSAPub(&key.PublicKey)} {
		got, err := AddressFromPublicKey(pub)
		if err != nil || got != want {
			t.Fatalf("len %d: got %s err %v", len(pub), got.Hex(), err)
		}
	}
	if _, err := AddressFromPublicKey(make([]byte, 20)); err == nil {
		t.Fatal("20-byte key accepted")
	}
}

func TestCall_DecodesOutputs(t *testing.T) {
	out := common.LeftPadBytes(big.NewInt(777).Bytes(), 32)
	s := New(&keyOracle{key: mustKey(t)}, &fakeRPC{callOut: out}, nil, legacyConfig(), quietLogger())
	values, err := s.Call(context.Background(), testContract, mustABI(t), "getLockedAmount")
	if err != nil {
		t.Fatal(err)
	}
	if got := values[0].(*big.Int); got.Int64() != 777 {
		t.Fatalf("got %s", got)
	}
}

func TestSubmit_ConcurrentCallsUseDistinctNonces(t *testing.T) {
	node := &pendingNode{}
	s := New(slowOracle{key: mustKey(t)}, node, nil, legacyConfig(), quietLogger())
	contractABI := mustABI(t)

	const submits = 8
	var wg sync.WaitGroup
	errs := make(chan error, submits)
	for i := 0; i < submits; i++ {
		wg.Add(1)
		go func(amount int64) {
			defer wg.Done()
			if _, err := s.Submit(context.Background(), testContract, contractABI, "lockFunds", big.NewInt(amount)); err != nil {
				errs <- err
			}
		}(int64(i + 1))
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("submit failed: %v", err)
	}
	if len(node.nonces) != submits {
		t.Fatalf("node accepted %d transactions, want %d", len(node.nonces), submits)
	}
	for i, n := range node.nonces {
		if n != uint64(i) {
			t.Fatalf("nonces = %v, want 0..%d in order", node.nonces, submits-1)
		}
	}
}
