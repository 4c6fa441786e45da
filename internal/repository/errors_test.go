package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	appErrors "guildhall-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		unavailable bool
	}{
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), true},
		{"throughput", &types.ProvisionedThroughputExceededException{}, true},
		{"request limit", &types.RequestLimitExceeded{}, true},
		{"internal server", &types.InternalServerError{}, true},
		{"throttling api error", &smithy.GenericAPIError{Code: "ThrottlingException"}, true},
		{"net timeout", &smithy.OperationError{ServiceID: "DynamoDB", OperationName: "GetItem", Err: timeoutErr{}}, true},
		{"validation api error", &smithy.GenericAPIError{Code: "ValidationException"}, false},
		{"plain", errors.New("bad marshal"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Classify(tt.err, "GetItem")
			assert.Equal(t, tt.unavailable, appErrors.IsStoreUnavailable(err))
			assert.Equal(t, tt.unavailable, appErrors.IsRetryable(err))
			if !tt.unavailable {
				assert.True(t, appErrors.IsType(err, appErrors.ErrorTypeInternal))
			}
		})
	}

	t.Run("NilStaysNil", func(t *testing.T) {
		assert.NoError(t, Classify(nil, "GetItem"))
	})

	t.Run("CancellationPassesThrough", func(t *testing.T) {
		err := Classify(context.Canceled, "Query")
		assert.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, appErrors.GetAppError(err))
	})

	t.Run("AppErrorPassesThrough", func(t *testing.T) {
		original := appErrors.NewNotFoundError("guild")
		assert.Same(t, original, Classify(original, "UpdateItem"))
	})
}

func TestIsConditionalCheckFailed(t *testing.T) {
	assert.True(t, IsConditionalCheckFailed(fmt.Errorf("put: %w", &types.ConditionalCheckFailedException{})))
	assert.False(t, IsConditionalCheckFailed(errors.New("other")))
}

func TestConfig(t *testing.T) {
	cfg := NewConfig("guildhall", "GSI1")
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 3000, cfg.TimeoutMs)
	assert.Equal(t, 25, cfg.BatchSize)

	assert.Error(t, Config{}.WithDefaults().Validate())
	assert.Error(t, Config{TableName: "t", BatchSize: 30}.Validate())
}
