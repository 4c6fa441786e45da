package ddb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"guildhall-backend/internal/domain"
	"guildhall-backend/internal/repository"
	appErrors "guildhall-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxUnprocessedRetries bounds the BatchWriteItem/BatchGetItem resubmission loop.
const maxUnprocessedRetries = 5

type ddbCard struct {
	Game  string  `dynamodbav:"Game"`
	Price float64 `dynamodbav:"Price"`
}

type ddbPost struct {
	PK         string   `dynamodbav:"PK"`
	SK         string   `dynamodbav:"SK"`
	EntityType string   `dynamodbav:"EntityType"`
	GuildID    string   `dynamodbav:"GuildID"`
	PostID     string   `dynamodbav:"PostID"`
	AuthorID   string   `dynamodbav:"AuthorID"`
	AuthorName string   `dynamodbav:"AuthorName"`
	Content    string   `dynamodbav:"Content"`
	PostType   string   `dynamodbav:"PostType"`
	Card       *ddbCard `dynamodbav:"Card,omitempty"`
	Likes      int64    `dynamodbav:"Likes"`
	Comments   int64    `dynamodbav:"Comments"`
	IsPinned   bool     `dynamodbav:"IsPinned"`
	CreatedAt  string   `dynamodbav:"CreatedAt"`
}

func (p ddbPost) toDomain() domain.Post {
	createdAt, _ := time.Parse(time.RFC3339Nano, p.CreatedAt)
	post := domain.Post{
		GuildID:    p.GuildID,
		ID:         p.PostID,
		AuthorID:   p.AuthorID,
		AuthorName: p.AuthorName,
		Content:    p.Content,
		PostType:   p.PostType,
		Likes:      p.Likes,
		Comments:   p.Comments,
		IsPinned:   p.IsPinned,
		CreatedAt:  createdAt,
	}
	if p.Card != nil {
		post.Card = &domain.Card{Game: p.Card.Game, Price: p.Card.Price}
	}
	return post
}

// PostRepository implements repository.PostRepository.
type PostRepository struct {
	store
}

var _ repository.PostRepository = (*PostRepository)(nil)

// NewPostRepository creates a post repository.
func NewPostRepository(client DynamoDBAPI, config repository.Config, logger *zap.Logger) *PostRepository {
	return &PostRepository{store: newStore(client, config, logger)}
}

func postKey(guildID, postID string) map[string]types.AttributeValue {
	return stringKey(guildPK(guildID), postSK(postID))
}

// Create writes a post with zero likes under a fresh id.
func (r *PostRepository) Create(ctx context.Context, input domain.NewPost) (*domain.Post, error) {
	input.Normalize()
	if err := domain.Validate(input); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	item := ddbPost{
		PK:         guildPK(input.GuildID),
		SK:         postSK(id),
		EntityType: entityPost,
		GuildID:    input.GuildID,
		PostID:     id,
		AuthorID:   input.AuthorID,
		AuthorName: input.AuthorName,
		Content:    input.Content,
		PostType:   input.PostType,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339Nano),
	}
	if input.Card != nil {
		item.Card = &ddbCard{Game: input.Card.Game, Price: input.Card.Price}
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to marshal post item")
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
			return nil, appErrors.NewConflictError("post id collision")
		}
		return nil, repository.Classify(err, "PutItem post")
	}

	post := item.toDomain()
	return &post, nil
}

// GetByID returns nil, nil when the post does not exist.
func (r *PostRepository) GetByID(ctx context.Context, guildID, postID string) (*domain.Post, error) {
	ctx, cancel := r.config.WithTimeout(ctx)
	defer cancel()

	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      r.table(),
		Key:            postKey(guildID, postID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, repository.Classify(err, "GetItem post")
	}
	if result.Item == nil {
		return nil, nil
	}

	var item ddbPost
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, appErrors.Wrap(err, "failed to unmarshal post item")
	}
	post := item.toDomain()
	return &post, nil
}

// GetByGuild returns the guild's posts, newest first.
func (r *PostRepository) GetByGuild(ctx context.Context, guildID string) ([]domain.Post, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(guildPK(guildID))).
		And(expression.Key("SK").BeginsWith(postSKPrefix))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to build post query")
	}

	paginator := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:                 r.table(),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Limit:                     aws.Int32(int32(r.config.PageSize)),
	})

	posts := make([]domain.Post, 0)
	for paginator.HasMorePages() {
		page, err := r.nextQueryPage(ctx, paginator)
		if err != nil {
			return nil, repository.Classify(err, "Query posts")
		}
		var items []ddbPost
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, appErrors.Wrap(err, "failed to unmarshal post items")
		}
		for _, item := range items {
			posts = append(posts, item.toDomain())
		}
	}

	// Post ids are random, so SK order is not creation order.
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
	return posts, nil
}

// Delete removes the post row, then its like partition. A failed sweep is
// logged and left behind: post ids are never reused, so orphaned like rows
// are unreachable.
func (r *PostRepository) Delete(ctx context.Context, guildID, postID string) (bool, error) {
	callCtx, cancel := r.config.WithTimeout(ctx)
	result, err := r.client.DeleteItem(callCtx, &dynamodb.DeleteItemInput{
		TableName:    r.table(),
		Key:          postKey(guildID, postID),
		ReturnValues: types.ReturnValueAllOld,
	})
	cancel()
	if err != nil {
		return false, repository.Classify(err, "DeleteItem post")
	}
	if len(result.Attributes) == 0 {
		return false, nil
	}

	if err := r.sweepLikes(ctx, guildID, postID); err != nil {
		r.logger.Warn("Failed to sweep likes of deleted post",
			zap.String("guild_id", guildID),
			zap.String("post_id", postID),
			zap.Error(err),
		)
	}
	return true, nil
}

func (r *PostRepository) sweepLikes(ctx context.Context, guildID, postID string) error {
	expr, err := expression.NewBuilder().
		WithKeyCondition(expression.Key("PK").Equal(expression.Value(likePK(guildID, postID)))).
		WithProjection(expression.NamesList(expression.Name("PK"), expression.Name("SK"))).
		Build()
	if err != nil {
		return err
	}

	paginator := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:                 r.table(),
		KeyConditionExpression:    expr.KeyCondition(),
		ProjectionExpression:      expr.Projection(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Limit:                     aws.Int32(int32(r.config.PageSize)),
	})

	var requests []types.WriteRequest
	for paginator.HasMorePages() {
		page, err := r.nextQueryPage(ctx, paginator)
		if err != nil {
			return err
		}
		for _, item := range page.Items {
			requests = append(requests, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: map[string]types.AttributeValue{
					"PK": item["PK"],
					"SK": item["SK"],
				}},
			})
		}
	}

	for start := 0; start < len(requests); start += r.config.BatchSize {
		end := start + r.config.BatchSize
		if end > len(requests) {
			end = len(requests)
		}
		if err := r.batchWrite(ctx, requests[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// batchWrite submits one BatchWriteItem page and resubmits unprocessed items.
func (s store) batchWrite(ctx context.Context, requests []types.WriteRequest) error {
	pending := map[string][]types.WriteRequest{s.config.TableName: requests}
	for attempt := 0; len(pending[s.config.TableName]) > 0; attempt++ {
		if attempt > maxUnprocessedRetries {
			return fmt.Errorf("%d write requests still unprocessed", len(pending[s.config.TableName]))
		}
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt); err != nil {
				return err
			}
		}

		callCtx, cancel := s.config.WithTimeout(ctx)
		out, err := s.client.BatchWriteItem(callCtx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
		cancel()
		if err != nil {
			return err
		}
		pending = out.UnprocessedItems
	}
	return nil
}

func sleepBackoff(ctx context.Context, attempt int) error {
	timer := time.NewTimer(time.Duration(attempt*attempt) * 10 * time.Millisecond)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IncrementLikes atomically adds one to Likes.
func (r *PostRepository) IncrementLikes(ctx context.Context, guildID, postID string) error {
	return r.addToCounter(ctx, postKey(guildID, postID), "post", "Likes", 1)
}

// DecrementLikes atomically subtracts one from Likes, refusing to go below zero.
func (r *PostRepository) DecrementLikes(ctx context.Context, guildID, postID string) error {
	return r.addToCounter(ctx, postKey(guildID, postID), "post", "Likes", -1)
}

// TogglePin sets IsPinned to !current if the stored value still equals current.
func (r *PostRepository) TogglePin(ctx context.Context, guildID, postID string, current bool) (bool, error) {
	next := !current

	expr, err := expression.NewBuilder().
		WithUpdate(expression.Set(expression.Name("IsPinned"), expression.Value(next))).
		WithCondition(expression.AttributeExists(expression.Name("PK")).
			And(expression.Name("IsPinned").Equal(expression.Value(current)))).
		Build()
	if err != nil {
		return current, appErrors.Wrap(err, "failed to build pin update")
	}

	ctx, cancel := r.config.WithTimeout(ctx)
	defer cancel()

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                           r.table(),
		Key:                                 postKey(guildID, postID),
		UpdateExpression:                    expr.Update(),
		ConditionExpression:                 expr.Condition(),
		ExpressionAttributeNames:            expr.Names(),
		ExpressionAttributeValues:           expr.Values(),
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err == nil {
		return next, nil
	}

	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		if len(ccf.Item) == 0 {
			return current, appErrors.NewNotFoundError("post")
		}
		return current, appErrors.NewConflictError("post pin state changed concurrently").WithCode("PIN_CONFLICT")
	}
	return current, repository.Classify(err, "UpdateItem pin")
}
