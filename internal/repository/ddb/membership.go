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
	"go.uber.org/zap"
)

type ddbMembership struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	GSI1PK     string `dynamodbav:"GSI1PK"`
	GSI1SK     string `dynamodbav:"GSI1SK"`
	GuildID    string `dynamodbav:"GuildID"`
	UserID     string `dynamodbav:"UserID"`
	Role       string `dynamodbav:"Role"`
	JoinedAt   string `dynamodbav:"JoinedAt"`
}

func (m ddbMembership) toDomain() domain.Membership {
	joinedAt, _ := time.Parse(time.RFC3339Nano, m.JoinedAt)
	return domain.Membership{
		GuildID:  m.GuildID,
		UserID:   m.UserID,
		Role:     m.Role,
		JoinedAt: joinedAt,
	}
}

// MembershipRepository implements repository.MembershipRepository.
type MembershipRepository struct {
	store
}

var _ repository.MembershipRepository = (*MembershipRepository)(nil)

// NewMembershipRepository creates a membership repository.
func NewMembershipRepository(client DynamoDBAPI, config repository.Config, logger *zap.Logger) *MembershipRepository {
	return &MembershipRepository{store: newStore(client, config, logger)}
}

func (r *MembershipRepository) Check(ctx context.Context, guildID, userID string) (bool, error) {
	ctx, cancel := r.config.WithTimeout(ctx)
	defer cancel()

	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:            r.table(),
		Key:                  stringKey(guildPK(guildID), memberSK(userID)),
		ProjectionExpression: aws.String("PK"),
		ConsistentRead:       aws.Bool(true),
	})
	if err != nil {
		return false, repository.Classify(err, "GetItem membership")
	}
	return result.Item != nil, nil
}

// Add writes the membership row unless one already exists.
func (r *MembershipRepository) Add(ctx context.Context, guildID, userID, role string) (bool, error) {
	if guildID == "" || userID == "" {
		return false, appErrors.NewValidationError("guildId and userId are required")
	}
	if role == "" {
		role = domain.RoleMember
	}

	joinedAt := time.Now().UTC().Format(time.RFC3339Nano)
	av, err := attributevalue.MarshalMap(ddbMembership{
		PK:         guildPK(guildID),
		SK:         memberSK(userID),
		EntityType: entityMembership,
		GSI1PK:     userGSI1PK(userID),
		GSI1SK:     guildPK(guildID),
		GuildID:    guildID,
		UserID:     userID,
		Role:       role,
		JoinedAt:   joinedAt,
	})
	if err != nil {
		return false, appErrors.Wrap(err, "failed to marshal membership item")
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
		return false, repository.Classify(err, "PutItem membership")
	}
	return true, nil
}

// Remove deletes the membership row and reports whether it existed.
func (r *MembershipRepository) Remove(ctx context.Context, guildID, userID string) (bool, error) {
	ctx, cancel := r.config.WithTimeout(ctx)
	defer cancel()

	result, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    r.table(),
		Key:          stringKey(guildPK(guildID), memberSK(userID)),
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return false, repository.Classify(err, "DeleteItem membership")
	}
	return len(result.Attributes) > 0, nil
}

// GetByGuild lists every member of a guild.
func (r *MembershipRepository) GetByGuild(ctx context.Context, guildID string) ([]domain.Membership, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(guildPK(guildID))).
		And(expression.Key("SK").BeginsWith(memberSKPrefix))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to build membership query")
	}

	paginator := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:                 r.table(),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Limit:                     aws.Int32(int32(r.config.PageSize)),
	})

	members := make([]domain.Membership, 0)
	for paginator.HasMorePages() {
		page, err := r.nextQueryPage(ctx, paginator)
		if err != nil {
			return nil, repository.Classify(err, "Query memberships")
		}
		var items []ddbMembership
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, appErrors.Wrap(err, "failed to unmarshal membership items")
		}
		for _, item := range items {
			members = append(members, item.toDomain())
		}
	}
	return members, nil
}

// GuildIDsForUser reads the user's membership projection on GSI1, or scans
// membership rows when no index is configured.
func (r *MembershipRepository) GuildIDsForUser(ctx context.Context, userID string) ([]string, error) {
	ids := make([]string, 0)
	if userID == "" {
		return ids, nil
	}

	collect := func(items []map[string]types.AttributeValue) error {
		var page []ddbMembership
		if err := attributevalue.UnmarshalListOfMaps(items, &page); err != nil {
			return appErrors.Wrap(err, "failed to unmarshal membership items")
		}
		for _, item := range page {
			ids = append(ids, item.GuildID)
		}
		return nil
	}

	projection := expression.NamesList(expression.Name("GuildID"))

	if r.config.IndexName != "" {
		expr, err := expression.NewBuilder().
			WithKeyCondition(expression.Key("GSI1PK").Equal(expression.Value(userGSI1PK(userID)))).
			WithProjection(projection).
			Build()
		if err != nil {
			return nil, appErrors.Wrap(err, "failed to build user membership query")
		}
		paginator := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
			TableName:                 r.table(),
			IndexName:                 aws.String(r.config.IndexName),
			KeyConditionExpression:    expr.KeyCondition(),
			ProjectionExpression:      expr.Projection(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			Limit:                     aws.Int32(int32(r.config.PageSize)),
		})
		for paginator.HasMorePages() {
			page, err := r.nextQueryPage(ctx, paginator)
			if err != nil {
				return nil, repository.Classify(err, "Query user memberships")
			}
			if err := collect(page.Items); err != nil {
				return nil, err
			}
		}
		return ids, nil
	}

	filter := expression.Name("EntityType").Equal(expression.Value(entityMembership)).
		And(expression.Name("UserID").Equal(expression.Value(userID)))
	expr, err := expression.NewBuilder().WithFilter(filter).WithProjection(projection).Build()
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to build user membership scan")
	}
	paginator := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{
		TableName:                 r.table(),
		FilterExpression:          expr.Filter(),
		ProjectionExpression:      expr.Projection(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	for paginator.HasMorePages() {
		callCtx, cancel := r.config.WithTimeout(ctx)
		page, err := paginator.NextPage(callCtx)
		cancel()
		if err != nil {
			return nil, repository.Classify(err, "Scan user memberships")
		}
		if err := collect(page.Items); err != nil {
			return nil, err
		}
	}
	return ids, nil
}
