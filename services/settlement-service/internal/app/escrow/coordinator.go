// services/settlement-service/internal/app/escrow/coordinator.go
package escrow

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/app/txsigner"
	domainErr "github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/domain/errors"
	"github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/domain/shipment"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// TxSubmitter is the transaction pipeline as seen by the coordinator.
type TxSubmitter interface {
	Submit(ctx context.Context, contract common.Address, contractABI abi.ABI, method string, args ...interface{}) (*txsigner.Receipt, error)
	Call(ctx context.Context, contract common.Address, contractABI abi.ABI, method string, args ...interface{}) ([]interface{}, error)
}

// Coordinator drives the per-shipment escrow contracts through the escrow manager.
// It mutates the shipment it is given; persisting the result is the caller's job.
type Coordinator struct {
	tx         TxSubmitter
	manager    common.Address
	managerABI abi.ABI
	escrowABI  abi.ABI
	lookups    singleflight.Group
	resolved   sync.Map // shipment id -> common.Address, non-zero only
	log        logrus.FieldLogger
}

// lookupTimeout bounds a shared getEscrow lookup, which outlives the caller that started it.
const lookupTimeout = 30 * time.Second

func NewCoordinator(tx TxSubmitter, manager common.Address, log logrus.FieldLogger) (*Coordinator, error) {
	managerABI, err := abi.JSON(strings.NewReader(escrowManagerABI))
	if err != nil {
		return nil, fmt.Errorf("parse escrow manager abi: %w", err)
	}
	escABI, err := abi.JSON(strings.NewReader(escrowABI))
	if err != nil {
		return nil, fmt.Errorf("parse escrow abi: %w", err)
	}
	return &Coordinator{
		tx:         tx,
		manager:    manager,
		managerABI: managerABI,
		escrowABI:  escABI,
		log:        log.WithField("component", "escrow"),
	}, nil
}

// CreateEscrow registers the escrow for a new shipment on the escrow manager.
func (c *Coordinator) CreateEscrow(ctx context.Context, shipmentID uint64, supplier common.Address, duration time.Duration, token common.Address) (*txsigner.Receipt, error) {
	rec, err := c.tx.Submit(ctx, c.manager, c.managerABI, "registerEscrow",
		new(big.Int).SetUint64(shipmentID), supplier, big.NewInt(int64(duration/time.Second)), token)
	if err != nil {
		return nil, fmt.Errorf("register escrow for shipment %d: %w", shipmentID, err)
	}
	c.log.WithFields(logrus.Fields{"shipment_id": shipmentID, "tx_hash": rec.TxHash.Hex()}).Info("escrow registered")
	return rec, nil
}

// ResolveEscrowAddress returns the shipment's escrow contract, asking the manager once per
// shipment and caching the answer on the shipment and in the coordinator. Concurrent lookups for
// one id share a call; a caller that gives up does not cancel it for the others.
func (c *Coordinator) ResolveEscrowAddress(ctx context.Context, sh *shipment.Shipment) (common.Address, error) {
	if sh.EscrowAddress != nil {
		return *sh.EscrowAddress, nil
	}
	if v, ok := c.resolved.Load(sh.ID); ok {
		addr := v.(common.Address)
		sh.EscrowAddress = &addr
		return addr, nil
	}

	flight := c.lookups.DoChan(strconv.FormatUint(sh.ID, 10), func() (interface{}, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()
		values, err := c.tx.Call(lookupCtx, c.manager, c.managerABI, "getEscrow", new(big.Int).SetUint64(sh.ID))
		if err != nil {
			return nil, err
		}
		addr, ok := values[0].(common.Address)
		if !ok {
			return nil, fmt.Errorf("decode getEscrow: unexpected %T", values[0])
		}
		if addr != (common.Address{}) {
			c.resolved.Store(sh.ID, addr)
		}
		return addr, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return common.Address{}, fmt.Errorf("resolve escrow of shipment %d: %w", sh.ID, ctx.Err())
	case res = <-flight:
	}
	if res.Err != nil {
		return common.Address{}, fmt.Errorf("resolve escrow of shipment %d: %w", sh.ID, res.Err)
	}
	addr := res.Val.(common.Address)
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: shipment %d", domainErr.ErrEscrowAddressNotFound, sh.ID)
	}
	sh.EscrowAddress = &addr
	return addr, nil
}

// LockFunds locks the shipment price in its escrow. When the escrow does not hold enough
// unlocked deposit the call is a no-op and reports false; no transaction is sent.
func (c *Coordinator) LockFunds(ctx context.Context, sh *shipment.Shipment) (*shipment.Shipment, bool, error) {
	if sh.FundsStatus != shipment.FundsNotLocked {
		return sh, false, fmt.Errorf("%w: shipment %d is %s", domainErr.ErrFundsAlreadyLocked, sh.ID, sh.FundsStatus)
	}
	escrowAddr, err := c.ResolveEscrowAddress(ctx, sh)
	if err != nil {
		return sh, false, err
	}
	deposited, err := c.amount(ctx, escrowAddr, "getDepositedAmount")
	if err != nil {
		return sh, false, err
	}
	locked, err := c.amount(ctx, escrowAddr, "getLockedAmount")
	if err != nil {
		return sh, false, err
	}
	required := sh.RequiredAmount()

	log := c.log.WithFields(logrus.Fields{
		"shipment_id": sh.ID,
		"escrow":      escrowAddr.Hex(),
		"deposited":   deposited.String(),
		"locked":      locked.String(),
		"required":    required.String(),
	})
	if new(big.Int).Add(locked, required).Cmp(deposited) > 0 {
		log.Info("insufficient unlocked deposit, funds not locked")
		return sh, false, nil
	}

	rec, err := c.tx.Submit(ctx, escrowAddr, c.escrowABI, "lockFunds", required)
	if err != nil {
		return sh, false, fmt.Errorf("lock funds of shipment %d: %w", sh.ID, err)
	}
	sh.FundsStatus = shipment.FundsLocked
	log.WithField("tx_hash", rec.TxHash.Hex()).Info("funds locked")
	return sh, true, nil
}

// ReleaseFunds pays the locked price out to the supplier.
func (c *Coordinator) ReleaseFunds(ctx context.Context, sh *shipment.Shipment) (*shipment.Shipment, error) {
	if sh.FundsStatus != shipment.FundsLocked {
		return sh, fmt.Errorf("%w: shipment %d is %s", domainErr.ErrFundsNotLocked, sh.ID, sh.FundsStatus)
	}
	escrowAddr, err := c.ResolveEscrowAddress(ctx, sh)
	if err != nil {
		return sh, err
	}
	rec, err := c.tx.Submit(ctx, escrowAddr, c.escrowABI, "releaseFunds", sh.RequiredAmount())
	if err != nil {
		return sh, fmt.Errorf("release funds of shipment %d: %w", sh.ID, err)
	}
	sh.FundsStatus = shipment.FundsReleased
	c.log.WithFields(logrus.Fields{
		"shipment_id": sh.ID,
		"escrow":      escrowAddr.Hex(),
		"tx_hash":     rec.TxHash.Hex(),
	}).Info("funds released")
	return sh, nil
}

func (c *Coordinator) amount(ctx context.Context, escrowAddr common.Address, method string) (*big.Int, error) {
	values, err := c.tx.Call(ctx, escrowAddr, c.escrowABI, method)
	if err != nil {
		return nil, fmt.Errorf("%s on %s: %w", method, escrowAddr.Hex(), err)
	}
	v, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("decode %s: unexpected %T", method, values[0])
	}
	return v, nil
}
