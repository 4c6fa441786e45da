package ddb

import (
	"context"
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

// ddbGuild is the guild metadata item.
type ddbGuild struct {
	PK          string `dynamodbav:"PK"`
	SK          string `dynamodbav:"SK"`
	EntityType  string `dynamodbav:"EntityType"`
	GSI1PK      string `dynamodbav:"GSI1PK"`
	GSI1SK      string `dynamodbav:"GSI1SK"`
	GuildID     string `dynamodbav:"GuildID"`
	Name        string `dynamodbav:"Name"`
	Description string `dynamodbav:"Description"`
	Category    string `dynamodbav:"Category"`
	Image       string `dynamodbav:"Image,omitempty"`
	MemberCount int64  `dynamodbav:"MemberCount"`
	PostCount   int64  `dynamodbav:"PostCount"`
	IsPrivate   bool   `dynamodbav:"IsPrivate"`
	Rules       string `dynamodbav:"Rules,omitempty"`
	CreatedBy   string `dynamodbav:"CreatedBy"`
	CreatedAt   string `dynamodbav:"CreatedAt"`
	Trending    bool   `dynamodbav:"Trending"`
}

func (g ddbGuild) toDomain() domain.Guild {
	createdAt, _ := time.Parse(time.RFC3339Nano, g.CreatedAt)
	return domain.Guild{
		ID:          g.GuildID,
		Name:        g.Name,
		Description: g.Description,
		Category:    g.Category,
		Image:       g.Image,
		MemberCount: g.MemberCount,
		PostCount:   g.PostCount,
		IsPrivate:   g.IsPrivate,
		Rules:       g.Rules,
		CreatedBy:   g.CreatedBy,
		CreatedAt:   createdAt,
		Trending:    g.Trending,
	}
}

// GuildRepository implements repository.GuildRepository.
type GuildRepository struct {
	store
}

var _ repository.GuildRepository = (*GuildRepository)(nil)

// NewGuildRepository creates a guild repository.
func NewGuildRepository(client DynamoDBAPI, config repository.Config, logger *zap.Logger) *GuildRepository {
	return &GuildRepository{store: newStore(client, config, logger)}
}

func guildKey(guildID string) map[string]types.AttributeValue {
	return stringKey(guildPK(guildID), guildMetadataSK)
}

// Create writes a new guild with zeroed counters. The write is conditional
// on the key being free.
func (r *GuildRepository) Create(ctx context.Context, input domain.NewGuild) (*domain.Guild, error) {
	input.Normalize()
	if err := domain.Validate(input); err != nil {
		return nil, err
	}

	id := input.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := time.Now().UTC().Format(time.RFC3339Nano)

	item := ddbGuild{
		PK:          guildPK(id),
		SK:          guildMetadataSK,
		EntityType:  entityGuild,
		GSI1PK:      guildsGSI1PK,
		GSI1SK:      createdAt + "#" + id,
		GuildID:     id,
		Name:        input.Name,
		Description: input.Description,
		Category:    input.Category,
		Image:       input.Image,
		IsPrivate:   input.IsPrivate,
		Rules:       input.Rules,
		CreatedBy:   input.OwnerID,
		CreatedAt:   createdAt,
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to marshal guild item")
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
			return nil, appErrors.NewConflictError("guild already exists").WithCode("GUILD_EXISTS")
		}
		return nil, repository.Classify(err, "PutItem guild")
	}

	guild := item.toDomain()
	return &guild, nil
}

// GetByID returns nil, nil when the guild does not exist.
func (r *GuildRepository) GetByID(ctx context.Context, id string) (*domain.Guild, error) {
	ctx, cancel := r.config.WithTimeout(ctx)
	defer cancel()

	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      r.table(),
		Key:            guildKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, repository.Classify(err, "GetItem guild")
	}
	if result.Item == nil {
		return nil, nil
	}

	var item ddbGuild
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, appErrors.Wrap(err, "failed to unmarshal guild item")
	}
	guild := item.toDomain()
	return &guild, nil
}

// List returns up to maxCount guilds, newest first when the index is
// configured and in scan order otherwise.
func (r *GuildRepository) List(ctx context.Context, maxCount int) ([]domain.Guild, error) {
	guilds := make([]domain.Guild, 0)
	if maxCount <= 0 {
		return guilds, nil
	}

	collect := func(items []map[string]types.AttributeValue) (bool, error) {
		var page []ddbGuild
		if err := attributevalue.UnmarshalListOfMaps(items, &page); err != nil {
			return false, appErrors.Wrap(err, "failed to unmarshal guild items")
		}
		for _, item := range page {
			guilds = append(guilds, item.toDomain())
			if len(guilds) >= maxCount {
				return true, nil
			}
		}
		return false, nil
	}

	if r.config.IndexName != "" {
		if err := r.queryGuildIndex(ctx, nil, collect); err != nil {
			return nil, err
		}
		return guilds, nil
	}
	if err := r.scanGuilds(ctx, nil, collect); err != nil {
		return nil, err
	}
	return guilds, nil
}

// queryGuildIndex pages through GSI1PK=GUILDS until collect reports done.
func (s store) queryGuildIndex(ctx context.Context, projection *expression.ProjectionBuilder, collect func([]map[string]types.AttributeValue) (bool, error)) error {
	builder := expression.NewBuilder().
		WithKeyCondition(expression.Key("GSI1PK").Equal(expression.Value(guildsGSI1PK)))
	if projection != nil {
		builder = builder.WithProjection(*projection)
	}
	expr, err := builder.Build()
	if err != nil {
		return appErrors.Wrap(err, "failed to build guild index query")
	}

	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:                 s.table(),
		IndexName:                 aws.String(s.config.IndexName),
		KeyConditionExpression:    expr.KeyCondition(),
		ProjectionExpression:      expr.Projection(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(false),
		Limit:                     aws.Int32(int32(s.config.PageSize)),
	})
	for paginator.HasMorePages() {
		page, err := s.nextQueryPage(ctx, paginator)
		if err != nil {
			return repository.Classify(err, "Query guild index")
		}
		done, err := collect(page.Items)
		if err != nil || done {
			return err
		}
	}
	return nil
}

// scanGuilds is the fallback for tables without the guild index.
func (s store) scanGuilds(ctx context.Context, projection *expression.ProjectionBuilder, collect func([]map[string]types.AttributeValue) (bool, error)) error {
	builder := expression.NewBuilder().
		WithFilter(expression.Name("EntityType").Equal(expression.Value(entityGuild)))
	if projection != nil {
		builder = builder.WithProjection(*projection)
	}
	expr, err := builder.Build()
	if err != nil {
		return appErrors.Wrap(err, "failed to build guild scan")
	}

	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName:                 s.table(),
		FilterExpression:          expr.Filter(),
		ProjectionExpression:      expr.Projection(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Limit:                     aws.Int32(int32(s.config.PageSize)),
	})
	for paginator.HasMorePages() {
		callCtx, cancel := s.config.WithTimeout(ctx)
		page, err := paginator.NextPage(callCtx)
		cancel()
		if err != nil {
			return repository.Classify(err, "Scan guilds")
		}
		done, err := collect(page.Items)
		if err != nil || done {
			return err
		}
	}
	return nil
}

func (s store) nextQueryPage(ctx context.Context, paginator *dynamodb.QueryPaginator) (*dynamodb.QueryOutput, error) {
	callCtx, cancel := s.config.WithTimeout(ctx)
	defer cancel()
	return paginator.NextPage(callCtx)
}

// Update applies the mutable fields and returns the stored guild.
func (r *GuildRepository) Update(ctx context.Context, id string, update domain.GuildUpdate) (*domain.Guild, error) {
	if update.Empty() {
		guild, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if guild == nil {
			return nil, appErrors.NewNotFoundError("guild")
		}
		return guild, nil
	}

	expr, err := expression.NewBuilder().
		WithUpdate(expression.Set(expression.Name("IsPrivate"), expression.Value(*update.IsPrivate))).
		WithCondition(expression.AttributeExists(expression.Name("PK"))).
		Build()
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to build guild update")
	}

	ctx, cancel := r.config.WithTimeout(ctx)
	defer cancel()

	result, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 r.table(),
		Key:                       guildKey(id),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		if repository.IsConditionalCheckFailed(err) {
			return nil, appErrors.NewNotFoundError("guild")
		}
		return nil, repository.Classify(err, "UpdateItem guild")
	}

	var item ddbGuild
	if err := attributevalue.UnmarshalMap(result.Attributes, &item); err != nil {
		return nil, appErrors.Wrap(err, "failed to unmarshal updated guild")
	}
	guild := item.toDomain()
	return &guild, nil
}

// IncrementMemberCount atomically adds delta to MemberCount.
func (r *GuildRepository) IncrementMemberCount(ctx context.Context, id string, delta int64) error {
	return r.addToCounter(ctx, guildKey(id), "guild", "MemberCount", delta)
}

// IncrementPostCount atomically adds delta to PostCount.
func (r *GuildRepository) IncrementPostCount(ctx context.Context, id string, delta int64) error {
	return r.addToCounter(ctx, guildKey(id), "guild", "PostCount", delta)
}
