// services/settlement-service/internal/domain/errors/errors.domain.go
package errors

import (
	"errors"
	"fmt"
)

// Standard Sentinel Errors
// Every kind wraps its category, so callers can match either one with errors.Is:
// errors.Is(err, ErrWrongPhase) or errors.Is(err, ErrShipmentState).
// The transport layer maps them to status codes in app/auth.MapError.

var (
	ErrAuthentication = errors.New("authentication error")
	ErrShipmentState  = errors.New("shipment state error")
	ErrTransaction    = errors.New("transaction error")
)

var (
	// Authentication Errors
	ErrNotAuthenticated  = fmt.Errorf("%w: caller is not authenticated", ErrAuthentication)
	ErrNotAuthorized     = fmt.Errorf("%w: caller is not authorized", ErrAuthentication)
	ErrInvalidCredential = fmt.Errorf("%w: invalid role proof", ErrAuthentication)

	// Shipment State Errors
	ErrWrongPhase            = fmt.Errorf("%w: shipment in wrong phase", ErrShipmentState)
	ErrAlreadyApproved       = fmt.Errorf("%w: already approved", ErrShipmentState)
	ErrDetailsNotSet         = fmt.Errorf("%w: shipment details not set", ErrShipmentState)
	ErrFundsAlreadyLocked    = fmt.Errorf("%w: funds already locked", ErrShipmentState)
	ErrFundsNotLocked        = fmt.Errorf("%w: funds are not locked", ErrShipmentState)
	ErrEscrowAddressNotFound = fmt.Errorf("%w: escrow address not found", ErrShipmentState)

	// Transaction Errors. None of these are retried internally.
	ErrProviderInconsistent = fmt.Errorf("%w: rpc providers returned inconsistent results", ErrTransaction)
	ErrRecoveryIDMismatch   = fmt.Errorf("%w: no recovery id matches the controlled address", ErrTransaction)
	ErrBroadcastRejected    = fmt.Errorf("%w: raw transaction rejected", ErrTransaction)

	// Lookup / Validation Errors
	ErrShipmentNotFound = errors.New("shipment not found")
	ErrDocumentNotFound = errors.New("document not found")
	ErrSessionNotFound  = errors.New("session not found")
	ErrVersionConflict  = errors.New("shipment was modified concurrently")
	ErrInvalidInput     = errors.New("invalid input arguments")
)
