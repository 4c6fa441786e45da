package ddb

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"guildhall-backend/internal/repository"
	appErrors "guildhall-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// addToCounter applies delta to a numeric attribute with a single ADD. The
// item must exist. A negative delta is conditioned on the counter being at
// least |delta|, so the stored value never goes below zero.
func (s store) addToCounter(ctx context.Context, key map[string]types.AttributeValue, resource, attr string, delta int64) error {
	if delta == 0 {
		return nil
	}

	condition := "attribute_exists(PK)"
	values := map[string]types.AttributeValue{
		":delta": &types.AttributeValueMemberN{Value: strconv.FormatInt(delta, 10)},
	}
	if delta < 0 {
		condition += " AND #counter >= :abs"
		values[":abs"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(-delta, 10)}
	}

	ctx, cancel := s.config.WithTimeout(ctx)
	defer cancel()

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                           s.table(),
		Key:                                 key,
		UpdateExpression:                    aws.String("ADD #counter :delta"),
		ConditionExpression:                 aws.String(condition),
		ExpressionAttributeNames:            map[string]string{"#counter": attr},
		ExpressionAttributeValues:           values,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err == nil {
		return nil
	}

	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		if len(ccf.Item) == 0 {
			return appErrors.NewNotFoundError(resource)
		}
		s.logger.Error("Refused counter decrement below zero",
			zap.String("resource", resource),
			zap.String("counter", attr),
			zap.Int64("delta", delta),
			zap.Int64("stored", numberAttr(ccf.Item, attr)),
		)
		return fmt.Errorf("%w: %s.%s", repository.ErrCounterUnderflow, resource, attr)
	}
	return repository.Classify(err, "UpdateItem "+attr)
}

// numberAttr reads an N attribute, returning 0 when it is missing or malformed.
func numberAttr(item map[string]types.AttributeValue, name string) int64 {
	n, ok := item[name].(*types.AttributeValueMemberN)
	if !ok {
		return 0
	}
	v, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func stringKey(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}
