package ddb

import (
	"context"

	"guildhall-backend/internal/repository"
	appErrors "guildhall-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// Reconciler implements repository.CounterReconciler.
type Reconciler struct {
	store
}

var _ repository.CounterReconciler = (*Reconciler)(nil)

// NewReconciler creates a counter reconciler.
func NewReconciler(client DynamoDBAPI, config repository.Config, logger *zap.Logger) *Reconciler {
	return &Reconciler{store: newStore(client, config, logger)}
}

func (r *Reconciler) CountMembers(ctx context.Context, guildID string) (int64, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(guildPK(guildID))).
		And(expression.Key("SK").BeginsWith(memberSKPrefix))
	return r.count(ctx, keyCond, "Query member count")
}

func (r *Reconciler) CountPosts(ctx context.Context, guildID string) (int64, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(guildPK(guildID))).
		And(expression.Key("SK").BeginsWith(postSKPrefix))
	return r.count(ctx, keyCond, "Query post count")
}

func (r *Reconciler) CountLikes(ctx context.Context, guildID, postID string) (int64, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(likePK(guildID, postID)))
	return r.count(ctx, keyCond, "Query like count")
}

func (r *Reconciler) count(ctx context.Context, keyCond expression.KeyConditionBuilder, operation string) (int64, error) {
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return 0, appErrors.Wrap(err, "failed to build count query")
	}

	paginator := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:                 r.table(),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Select:                    types.SelectCount,
		ConsistentRead:            aws.Bool(true),
	})

	var total int64
	for paginator.HasMorePages() {
		page, err := r.nextQueryPage(ctx, paginator)
		if err != nil {
			return 0, repository.Classify(err, operation)
		}
		total += int64(page.Count)
	}
	return total, nil
}

// SetGuildCounters overwrites both guild counters if they still hold stored.
func (r *Reconciler) SetGuildCounters(ctx context.Context, guildID string, stored, actual repository.GuildCounters) (bool, error) {
	if stored == actual {
		return false, nil
	}

	update := expression.Set(expression.Name("MemberCount"), expression.Value(actual.MemberCount)).
		Set(expression.Name("PostCount"), expression.Value(actual.PostCount))
	cond := expression.AttributeExists(expression.Name("PK")).
		And(expression.Name("MemberCount").Equal(expression.Value(stored.MemberCount))).
		And(expression.Name("PostCount").Equal(expression.Value(stored.PostCount)))

	return r.compareAndSet(ctx, guildKey(guildID), update, cond, "UpdateItem guild counters")
}

// SetPostLikes overwrites Likes if it still holds stored.
func (r *Reconciler) SetPostLikes(ctx context.Context, guildID, postID string, stored, actual int64) (bool, error) {
	if stored == actual {
		return false, nil
	}

	update := expression.Set(expression.Name("Likes"), expression.Value(actual))
	cond := expression.AttributeExists(expression.Name("PK")).
		And(expression.Name("Likes").Equal(expression.Value(stored)))

	return r.compareAndSet(ctx, postKey(guildID, postID), update, cond, "UpdateItem post likes")
}

func (r *Reconciler) compareAndSet(ctx context.Context, key map[string]types.AttributeValue, update expression.UpdateBuilder, cond expression.ConditionBuilder, operation string) (bool, error) {
	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return false, appErrors.Wrap(err, "failed to build counter repair")
	}

	ctx, cancel := r.config.WithTimeout(ctx)
	defer cancel()

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 r.table(),
		Key:                       key,
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		if repository.IsConditionalCheckFailed(err) {
			// Moved since it was read, or deleted. The next pass retries.
			return false, nil
		}
		return false, repository.Classify(err, operation)
	}
	return true, nil
}

// ListGuildIDs pages through every guild id.
func (r *Reconciler) ListGuildIDs(ctx context.Context, fn func(ids []string) error) error {
	projection := expression.NamesList(expression.Name("GuildID"))
	collect := func(items []map[string]types.AttributeValue) (bool, error) {
		var page []struct {
			GuildID string `dynamodbav:"GuildID"`
		}
		if err := attributevalue.UnmarshalListOfMaps(items, &page); err != nil {
			return false, appErrors.Wrap(err, "failed to unmarshal guild ids")
		}
		if len(page) == 0 {
			return false, nil
		}
		ids := make([]string, 0, len(page))
		for _, item := range page {
			ids = append(ids, item.GuildID)
		}
		return false, fn(ids)
	}

	if r.config.IndexName != "" {
		return r.queryGuildIndex(ctx, &projection, collect)
	}
	return r.scanGuilds(ctx, &projection, collect)
}
