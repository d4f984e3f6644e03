package evmrpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"sync"
	"testing"

	domainErr "github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/domain/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// fakeProvider answers with canned JSON results per method.
type fakeProvider struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	calls     map[string][]interface{}
}

func newFakeProvider(responses map[string]string) *fakeProvider {
	return &fakeProvider{responses: responses, errs: map[string]error{}, calls: map[string][]interface{}{}}
}

func (f *fakeProvider) CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	f.mu.Lock()
	f.calls[method] = args
	f.mu.Unlock()
	if err := f.errs[method]; err != nil {
		return err
	}
	raw, ok := f.responses[method]
	if !ok {
		return errors.New("method not found")
	}
	return json.Unmarshal([]byte(raw), result)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newMulti(ps ...*fakeProvider) *MultiProvider {
	names := []string{"alpha", "beta", "gamma"}[:len(ps)]
	m := map[string]Provider{}
	for i, p := range ps {
		m[names[i]] = p
	}
	return New(names, m, quietLogger())
}

const txHash = `"0x6b1b4b5f2b0cf4bbf5d8f4a9c1a3de5d8f1f0a4b2c3d4e5f60718293a4b5c6d7"`

func TestNonceAt(t *testing.T) {
	a := newFakeProvider(map[string]string{"eth_getTransactionCount": `"0x2a"`})
	b := newFakeProvider(map[string]string{"eth_getTransactionCount": `"0x2a"`})

	n, err := newMulti(a, b).NonceAt(context.Background(), common.Address{1})
	if err != nil || n != 42 {
		t.Fatalf("nonce %d err %v", n, err)
	}
	if args := a.calls["eth_getTransactionCount"]; args[1] != "pending" {
		t.Fatalf("nonce must be read at the pending block, got %v", args[1])
	}

	c := newFakeProvider(map[string]string{"eth_getTransactionCount": `"0x2b"`})
	if _, err := newMulti(a, b, c).NonceAt(context.Background(), common.Address{1}); !errors.Is(err, domainErr.ErrProviderInconsistent) {
		t.Fatalf("want ErrProviderInconsistent, got %v", err)
	}
}

func TestSendRawTransaction(t *testing.T) {
	ok := func() *fakeProvider { return newFakeProvider(map[string]string{"eth_sendRawTransaction": txHash}) }

	h, err := newMulti(ok(), ok()).SendRawTransaction(context.Background(), []byte{0x01})
	if err != nil || h != common.HexToHash(txHash[1:len(txHash)-1]) {
		t.Fatalf("hash %s err %v", h.Hex(), err)
	}

	rejecting := ok()
	rejecting.errs["eth_sendRawTransaction"] = errors.New("nonce too low")
	if _, err := newMulti(ok(), rejecting).SendRawTransaction(context.Background(), []byte{0x01}); !errors.Is(err, domainErr.ErrBroadcastRejected) {
		t.Fatalf("want ErrBroadcastRejected, got %v", err)
	}

	other := newFakeProvider(map[string]string{"eth_sendRawTransaction": `"0x` + "11" + txHash[5:]})
	if _, err := newMulti(ok(), other).SendRawTransaction(context.Background(), []byte{0x01}); !errors.Is(err, domainErr.ErrProviderInconsistent) {
		t.Fatalf("want ErrProviderInconsistent, got %v", err)
	}
}

func TestCallContract(t *testing.T) {
	a := newFakeProvider(map[string]string{"eth_call": `"0x00ff"`})
	b := newFakeProvider(map[string]string{"eth_call": `"0x00ff"`})
	out, err := newMulti(a, b).CallContract(context.Background(), common.Address{2}, []byte{0xaa})
	if err != nil || len(out) != 2 || out[1] != 0xff {
		t.Fatalf("out %x err %v", out, err)
	}

	c := newFakeProvider(map[string]string{"eth_call": `"0x00fe"`})
	if _, err := newMulti(a, c).CallContract(context.Background(), common.Address{2}, nil); !errors.Is(err, domainErr.ErrProviderInconsistent) {
		t.Fatalf("want ErrProviderInconsistent, got %v", err)
	}
}

func TestFeesComeFromReferenceProvider(t *testing.T) {
	ref := newFakeProvider(map[string]string{
		"eth_maxPriorityFeePerGas": `"0x59682f00"`,
		"eth_getBlockByNumber":     `{"number":"0x10","baseFeePerGas":"0x6fc23ac00"}`,
	})
	other := newFakeProvider(nil)
	m := newMulti(ref, other)

	tip, err := m.SuggestGasTipCap(context.Background())
	if err != nil || tip.Cmp(big.NewInt(1_500_000_000)) != 0 {
		t.Fatalf("tip %s err %v", tip, err)
	}
	base, err := m.BaseFee(context.Background())
	if err != nil || base.Cmp(big.NewInt(30_000_000_000)) != 0 {
		t.Fatalf("base %s err %v", base, err)
	}
	if len(other.calls) != 0 {
		t.Fatal("fee data requested from a non-reference provider")
	}

	preLondon := newFakeProvider(map[string]string{"eth_getBlockByNumber": `{"number":"0x10"}`})
	if _, err := newMulti(preLondon).BaseFee(context.Background()); err == nil {
		t.Fatal("expected error for a block without base fee")
	}
}

func TestChainID(t *testing.T) {
	a := newFakeProvider(map[string]string{"eth_chainId": `"0xaa36a7"`})
	b := newFakeProvider(map[string]string{"eth_chainId": `"0xaa36a7"`})
	id, err := newMulti(a, b).ChainID(context.Background())
	if err != nil || id.Int64() != 11155111 {
		t.Fatalf("chain id %s err %v", id, err)
	}
}
