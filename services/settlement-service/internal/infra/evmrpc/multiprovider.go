// services/settlement-service/internal/infra/evmrpc/multiprovider.go
package evmrpc

import (
	"bytes"
	"context"
	"fmt"
	"math/big"

	domainErr "github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/domain/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Provider is the part of *rpc.Client the proxy needs.
type Provider interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

type namedProvider struct {
	name string
	Provider
}

// MultiProvider sends every request to all configured providers in parallel and only
// returns a result they all agree on. The first provider is the reference for fee data.
type MultiProvider struct {
	providers []namedProvider
	log       logrus.FieldLogger
}

// Dial connects to every endpoint. Endpoint URLs are used as provider names in logs.
func Dial(ctx context.Context, endpoints []string, log logrus.FieldLogger) (*MultiProvider, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("no rpc endpoints configured")
	}
	providers := make(map[string]Provider, len(endpoints))
	order := make([]string, 0, len(endpoints))
	for _, url := range endpoints {
		c, err := rpc.DialContext(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", url, err)
		}
		providers[url] = c
		order = append(order, url)
	}
	return New(order, providers, log), nil
}

// New wraps already-connected providers; order fixes the reference provider.
func New(order []string, providers map[string]Provider, log logrus.FieldLogger) *MultiProvider {
	m := &MultiProvider{log: log.WithField("component", "evmrpc")}
	for _, name := range order {
		m.providers = append(m.providers, namedProvider{name: name, Provider: providers[name]})
	}
	return m
}

// fanOut calls method on every provider; results[i] is decoded from provider i.
// newResult allocates the decode target for one provider.
func (m *MultiProvider) fanOut(ctx context.Context, newResult func() interface{}, method string, args ...interface{}) ([]interface{}, error) {
	if len(m.providers) == 0 {
		return nil, fmt.Errorf("%s: no rpc providers", method)
	}
	results := make([]interface{}, len(m.providers))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range m.providers {
		i, p := i, p
		results[i] = newResult()
		g.Go(func() error {
			if err := p.CallContext(gctx, results[i], method, args...); err != nil {
				return fmt.Errorf("%s via %s: %w", method, p.name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (m *MultiProvider) inconsistent(method string, values []string) error {
	fields := logrus.Fields{"method": method}
	for i, p := range m.providers {
		fields[p.name] = values[i]
	}
	m.log.WithFields(fields).Warn("providers disagree")
	return fmt.Errorf("%w: %s", domainErr.ErrProviderInconsistent, method)
}

// NonceAt returns the pending nonce all providers agree on.
func (m *MultiProvider) NonceAt(ctx context.Context, addr common.Address) (uint64, error) {
	results, err := m.fanOut(ctx, func() interface{} { return new(hexutil.Uint64) }, "eth_getTransactionCount", addr, "pending")
	if err != nil {
		return 0, err
	}
	values := make([]string, len(results))
	for i, r := range results {
		values[i] = r.(*hexutil.Uint64).String()
	}
	if !allEqual(values) {
		return 0, m.inconsistent("eth_getTransactionCount", values)
	}
	return uint64(*results[0].(*hexutil.Uint64)), nil
}

// SendRawTransaction broadcasts on every provider. Any rejection is ErrBroadcastRejected.
func (m *MultiProvider) SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error) {
	results, err := m.fanOut(ctx, func() interface{} { return new(common.Hash) }, "eth_sendRawTransaction", hexutil.Bytes(raw))
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %v", domainErr.ErrBroadcastRejected, err)
	}
	values := make([]string, len(results))
	for i, r := range results {
		values[i] = r.(*common.Hash).Hex()
	}
	if !allEqual(values) {
		return common.Hash{}, m.inconsistent("eth_sendRawTransaction", values)
	}
	return *results[0].(*common.Hash), nil
}

// CallContract runs eth_call against the latest block on every provider.
func (m *MultiProvider) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	msg := map[string]interface{}{"to": to, "data": hexutil.Bytes(data)}
	results, err := m.fanOut(ctx, func() interface{} { return new(hexutil.Bytes) }, "eth_call", msg, "latest")
	if err != nil {
		return nil, err
	}
	first := *results[0].(*hexutil.Bytes)
	for _, r := range results[1:] {
		if !bytes.Equal(first, *r.(*hexutil.Bytes)) {
			values := make([]string, len(results))
			for i, r := range results {
				values[i] = r.(*hexutil.Bytes).String()
			}
			return nil, m.inconsistent("eth_call", values)
		}
	}
	return first, nil
}

// ChainID returns the chain id all providers agree on.
func (m *MultiProvider) ChainID(ctx context.Context) (*big.Int, error) {
	results, err := m.fanOut(ctx, func() interface{} { return new(hexutil.Big) }, "eth_chainId")
	if err != nil {
		return nil, err
	}
	values := make([]string, len(results))
	for i, r := range results {
		values[i] = r.(*hexutil.Big).String()
	}
	if !allEqual(values) {
		return nil, m.inconsistent("eth_chainId", values)
	}
	return results[0].(*hexutil.Big).ToInt(), nil
}

// SuggestGasTipCap asks the reference provider for eth_maxPriorityFeePerGas.
func (m *MultiProvider) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	var tip hexutil.Big
	if err := m.providers[0].CallContext(ctx, &tip, "eth_maxPriorityFeePerGas"); err != nil {
		return nil, fmt.Errorf("eth_maxPriorityFeePerGas via %s: %w", m.providers[0].name, err)
	}
	return tip.ToInt(), nil
}

// BaseFee reads baseFeePerGas of the reference provider's latest block.
func (m *MultiProvider) BaseFee(ctx context.Context) (*big.Int, error) {
	var head struct {
		BaseFee *hexutil.Big `json:"baseFeePerGas"`
	}
	if err := m.providers[0].CallContext(ctx, &head, "eth_getBlockByNumber", "latest", false); err != nil {
		return nil, fmt.Errorf("eth_getBlockByNumber via %s: %w", m.providers[0].name, err)
	}
	if head.BaseFee == nil {
		return nil, fmt.Errorf("latest block has no base fee; use the legacy transaction format")
	}
	return head.BaseFee.ToInt(), nil
}

// Close closes providers that own a connection.
func (m *MultiProvider) Close() {
	for _, p := range m.providers {
		if c, ok := p.Provider.(*rpc.Client); ok {
			c.Close()
		}
	}
}

func allEqual(values []string) bool {
	if len(values) == 0 {
		return true
	}
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}
