package ddb

import (
	"context"
	"strconv"
	"time"

	"guildhall-backend/internal/repository"
	appErrors "guildhall-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// ddbIdempotency records the result of a keyed request. TTL is the epoch
// second after which DynamoDB may expire the item.
type ddbIdempotency struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	Result     string `dynamodbav:"Result"`
	CreatedAt  string `dynamodbav:"CreatedAt"`
	TTL        int64  `dynamodbav:"TTL"`
}

// IdempotencyStore implements repository.IdempotencyStore.
type IdempotencyStore struct {
	store
	now func() time.Time
}

var _ repository.IdempotencyStore = (*IdempotencyStore)(nil)

// NewIdempotencyStore creates an idempotency store.
func NewIdempotencyStore(client DynamoDBAPI, config repository.Config, logger *zap.Logger) *IdempotencyStore {
	return &IdempotencyStore{store: newStore(client, config, logger)}
}

func (s *IdempotencyStore) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

// Get ignores items past their TTL; DynamoDB deletes them lazily.
func (s *IdempotencyStore) Get(ctx context.Context, userID, operation, key string) (string, bool, error) {
	ctx, cancel := s.config.WithTimeout(ctx)
	defer cancel()

	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      s.table(),
		Key:            stringKey(idempotencyPK(userID, operation), key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", false, repository.Classify(err, "GetItem idempotency")
	}
	if result.Item == nil {
		return "", false, nil
	}

	var item ddbIdempotency
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return "", false, appErrors.Wrap(err, "failed to unmarshal idempotency item")
	}
	if item.TTL > 0 && item.TTL < s.clock().Unix() {
		return "", false, nil
	}
	return item.Result, true, nil
}

// Store claims the key for result. An existing unexpired claim wins.
func (s *IdempotencyStore) Store(ctx context.Context, userID, operation, key, result string, ttl time.Duration) (bool, error) {
	if key == "" {
		return false, appErrors.NewValidationError("idempotency key is required")
	}

	now := s.clock()
	av, err := attributevalue.MarshalMap(ddbIdempotency{
		PK:         idempotencyPK(userID, operation),
		SK:         key,
		EntityType: entityIdempotency,
		Result:     result,
		CreatedAt:  now.UTC().Format(time.RFC3339Nano),
		TTL:        now.Add(ttl).Unix(),
	})
	if err != nil {
		return false, appErrors.Wrap(err, "failed to marshal idempotency item")
	}

	ctx, cancel := s.config.WithTimeout(ctx)
	defer cancel()

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                s.table(),
		Item:                     av,
		ConditionExpression:      aws.String("attribute_not_exists(PK) OR #ttl < :now"),
		ExpressionAttributeNames: map[string]string{"#ttl": "TTL"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
		},
	})
	if err != nil {
		if repository.IsConditionalCheckFailed(err) {
			return false, nil
		}
		return false, repository.Classify(err, "PutItem idempotency")
	}
	return true, nil
}
