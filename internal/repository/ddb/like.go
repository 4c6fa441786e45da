package ddb

import (
	"context"
	"fmt"
	"time"

	"guildhall-backend/internal/repository"
	appErrors "guildhall-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

const (
	// toggleAttempts bounds how often Toggle re-reads after losing a race.
	toggleAttempts = 3
	// batchGetLimit is the BatchGetItem key limit.
	batchGetLimit = 100
)

type ddbLike struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	GuildID    string `dynamodbav:"GuildID"`
	PostID     string `dynamodbav:"PostID"`
	UserID     string `dynamodbav:"UserID"`
	CreatedAt  string `dynamodbav:"CreatedAt"`
}

// LikeRepository implements repository.LikeRepository.
type LikeRepository struct {
	store
}

var _ repository.LikeRepository = (*LikeRepository)(nil)

// NewLikeRepository creates a like repository.
func NewLikeRepository(client DynamoDBAPI, config repository.Config, logger *zap.Logger) *LikeRepository {
	return &LikeRepository{store: newStore(client, config, logger)}
}

func likeKey(guildID, postID, userID string) map[string]types.AttributeValue {
	return stringKey(likePK(guildID, postID), likeSK(userID))
}

func (r *LikeRepository) Check(ctx context.Context, guildID, postID, userID string) (bool, error) {
	ctx, cancel := r.config.WithTimeout(ctx)
	defer cancel()

	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:            r.table(),
		Key:                  likeKey(guildID, postID, userID),
		ProjectionExpression: aws.String("PK"),
		ConsistentRead:       aws.Bool(true),
	})
	if err != nil {
		return false, repository.Classify(err, "GetItem like")
	}
	return result.Item != nil, nil
}

// Toggle flips the like row. Each write is conditional on the state that was
// just read, so one successful call always corresponds to exactly one
// transition. A lost race re-reads and tries again.
func (r *LikeRepository) Toggle(ctx context.Context, guildID, postID, userID string) (bool, error) {
	for attempt := 0; attempt < toggleAttempts; attempt++ {
		liked, err := r.Check(ctx, guildID, postID, userID)
		if err != nil {
			return false, err
		}

		var done bool
		if liked {
			done, err = r.remove(ctx, guildID, postID, userID)
		} else {
			done, err = r.put(ctx, guildID, postID, userID)
		}
		if err != nil {
			return false, err
		}
		if done {
			return !liked, nil
		}

		r.logger.Debug("Like toggle lost a race, retrying",
			zap.String("guild_id", guildID),
			zap.String("post_id", postID),
			zap.Int("attempt", attempt+1),
		)
	}
	return false, appErrors.NewConflictError("like state changed concurrently").WithCode("LIKE_CONFLICT")
}

func (r *LikeRepository) put(ctx context.Context, guildID, postID, userID string) (bool, error) {
	av, err := attributevalue.MarshalMap(ddbLike{
		PK:         likePK(guildID, postID),
		SK:         likeSK(userID),
		EntityType: entityLike,
		GuildID:    guildID,
		PostID:     postID,
		UserID:     userID,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return false, appErrors.Wrap(err, "failed to marshal like item")
	}

	ctx, cancel := r.config.WithTimeout(ctx)
	defer cancel()

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           r.table(),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		if repository.IsConditionalCheckFailed(err) {
			return false, nil
		}
		return false, repository.Classify(err, "PutItem like")
	}
	return true, nil
}

func (r *LikeRepository) remove(ctx context.Context, guildID, postID, userID string) (bool, error) {
	ctx, cancel := r.config.WithTimeout(ctx)
	defer cancel()

	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           r.table(),
		Key:                 likeKey(guildID, postID, userID),
		ConditionExpression: aws.String("attribute_exists(PK)"),
	})
	if err != nil {
		if repository.IsConditionalCheckFailed(err) {
			return false, nil
		}
		return false, repository.Classify(err, "DeleteItem like")
	}
	return true, nil
}

// LikedPostIDs batch-reads the caller's like rows for postIDs.
func (r *LikeRepository) LikedPostIDs(ctx context.Context, guildID, userID string, postIDs []string) (map[string]bool, error) {
	liked := make(map[string]bool)
	if userID == "" || len(postIDs) == 0 {
		return liked, nil
	}

	for start := 0; start < len(postIDs); start += batchGetLimit {
		end := start + batchGetLimit
		if end > len(postIDs) {
			end = len(postIDs)
		}

		keys := make([]map[string]types.AttributeValue, 0, end-start)
		seen := make(map[string]bool, end-start)
		for _, postID := range postIDs[start:end] {
			if seen[postID] {
				continue
			}
			seen[postID] = true
			keys = append(keys, likeKey(guildID, postID, userID))
		}

		if err := r.batchGet(ctx, keys, func(item map[string]types.AttributeValue) {
			if v, ok := item["PostID"].(*types.AttributeValueMemberS); ok {
				liked[v.Value] = true
			}
		}); err != nil {
			return nil, err
		}
	}
	return liked, nil
}

func (r *LikeRepository) batchGet(ctx context.Context, keys []map[string]types.AttributeValue, fn func(map[string]types.AttributeValue)) error {
	pending := map[string]types.KeysAndAttributes{
		r.config.TableName: {
			Keys:                 keys,
			ProjectionExpression: aws.String("PostID"),
		},
	}

	for attempt := 0; len(pending[r.config.TableName].Keys) > 0; attempt++ {
		if attempt > maxUnprocessedRetries {
			return appErrors.NewStoreUnavailableError("BatchGetItem likes",
				fmt.Errorf("%d keys still unprocessed", len(pending[r.config.TableName].Keys)))
		}
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt); err != nil {
				return err
			}
		}

		callCtx, cancel := r.config.WithTimeout(ctx)
		out, err := r.client.BatchGetItem(callCtx, &dynamodb.BatchGetItemInput{RequestItems: pending})
		cancel()
		if err != nil {
			return repository.Classify(err, "BatchGetItem likes")
		}
		for _, item := range out.Responses[r.config.TableName] {
			fn(item)
		}
		pending = out.UnprocessedKeys
	}
	return nil
}
