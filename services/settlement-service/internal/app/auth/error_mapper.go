package auth

import (
	stdErrors "errors"

	domainErr "github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/domain/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// MapError translates domain errors into transport-safe gRPC statuses.
// The domain never knows about status codes; transport never contains business rules.
// Invalid credentials are flattened so callers cannot probe which check failed.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case stdErrors.Is(err, domainErr.ErrInvalidCredential):
		return status.Error(codes.Unauthenticated, "invalid credential")
	case stdErrors.Is(err, domainErr.ErrNotAuthenticated):
		return status.Error(codes.Unauthenticated, "not authenticated")
	case stdErrors.Is(err, domainErr.ErrNotAuthorized):
		return status.Error(codes.PermissionDenied, err.Error())

	case stdErrors.Is(err, domainErr.ErrShipmentNotFound), stdErrors.Is(err, domainErr.ErrDocumentNotFound):
		return status.Error(codes.NotFound, err.Error())
	case stdErrors.Is(err, domainErr.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case stdErrors.Is(err, domainErr.ErrShipmentState):
		return status.Error(codes.FailedPrecondition, err.Error())
	case stdErrors.Is(err, domainErr.ErrVersionConflict):
		return status.Error(codes.Aborted, err.Error())

	// Transaction pipeline failures: nothing was committed, the caller retries the whole operation.
	case stdErrors.Is(err, domainErr.ErrProviderInconsistent), stdErrors.Is(err, domainErr.ErrBroadcastRejected):
		return status.Error(codes.Unavailable, err.Error())
	case stdErrors.Is(err, domainErr.ErrRecoveryIDMismatch):
		return status.Error(codes.Internal, "signing oracle mismatch")
	}
	//  Fallback (never leak internals)
	return status.Error(codes.Internal, "internal error")
}
