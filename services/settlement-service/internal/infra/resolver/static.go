package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// StaticResolver maps caller identities to chain addresses from a configured table.
// Lookups are case-insensitive on the identity.
type StaticResolver struct {
	addrs map[string]common.Address
}

func NewStaticResolver(table map[string]string) (*StaticResolver, error) {
	addrs := make(map[string]common.Address, len(table))
	for identity, hex := range table {
		if !common.IsHexAddress(hex) {
			return nil, fmt.Errorf("identity %q: invalid address %q", identity, hex)
		}
		addrs[strings.ToLower(identity)] = common.HexToAddress(hex)
	}
	return &StaticResolver{addrs: addrs}, nil
}

func (r *StaticResolver) ResolveAddress(ctx context.Context, identity string) (common.Address, error) {
	addr, ok := r.addrs[strings.ToLower(identity)]
	if !ok {
		return common.Address{}, fmt.Errorf("no address registered for identity %q", identity)
	}
	return addr, nil
}
