package repository

import (
	"context"
	"errors"
	"net"

	appErrors "guildhall-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

// ErrCounterUnderflow means a decrement would have taken a counter below zero.
// The stored value is left unchanged. It signals a toggle accounting bug and
// is reported, not propagated to clients.
var ErrCounterUnderflow = errors.New("counter underflow: decrement below zero refused")

// IsConditionalCheckFailed reports whether err is a failed condition expression.
func IsConditionalCheckFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

// IsUnavailable reports whether err is a throttling, capacity, transport or
// timeout failure against the store.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var (
		throughput *types.ProvisionedThroughputExceededException
		limit      *types.RequestLimitExceeded
		internal   *types.InternalServerError
	)
	if errors.As(err, &throughput) || errors.As(err, &limit) || errors.As(err, &internal) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "ServiceUnavailable", "Throttling", "RequestTimeout", "RequestLimitExceeded":
			return true
		}
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	// An OperationError that carries no API error never reached the service.
	var opErr *smithy.OperationError
	return errors.As(err, &opErr)
}

// Classify converts a store error into the application taxonomy. Caller
// cancellation stays as is; availability failures become StoreUnavailable;
// everything else is internal.
func Classify(err error, operation string) error {
	if err == nil {
		return nil
	}
	if appErrors.GetAppError(err) != nil {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if IsUnavailable(err) {
		return appErrors.NewStoreUnavailableError(operation, err)
	}
	return appErrors.NewInternalError(operation + " failed").WithCause(err)
}
