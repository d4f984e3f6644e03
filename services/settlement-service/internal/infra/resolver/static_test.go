package resolver

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestStaticResolver(t *testing.T) {
	r, err := NewStaticResolver(map[string]string{"Alice@Org": "0x00000000000000000000000000000000000000a1"})
	if err != nil {
		t.Fatal(err)
	}
	got, err := r.ResolveAddress(context.Background(), "alice@org")
	if err != nil || got != common.HexToAddress("0xa1") {
		t.Fatalf("got %s err %v", got.Hex(), err)
	}
	if _, err := r.ResolveAddress(context.Background(), "bob"); err == nil {
		t.Fatal("unknown identity resolved")
	}
	if _, err := NewStaticResolver(map[string]string{"x": "not-an-address"}); err == nil {
		t.Fatal("invalid address accepted")
	}
}
