// Package ddb implements the guild repositories on a single DynamoDB table.
// This is the only layer that should have knowledge of DynamoDB specifics.
//
// Layout:
//
//	Guild       PK=GUILD#<guild>            SK=METADATA
//	Membership  PK=GUILD#<guild>            SK=MEMBER#<user>
//	Post        PK=GUILD#<guild>            SK=POST#<post>
//	Like        PK=GUILD#<guild>#POST#<post> SK=LIKE#<user>
//	Idempotency PK=IDEMPOTENCY#<user>#<op>  SK=<key>
//
// Guilds and memberships are also projected onto GSI1 (GSI1PK=GUILDS and
// GSI1PK=USER#<user>) when an index is configured.
package ddb

import (
	"context"
	"fmt"

	"guildhall-backend/internal/repository"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"
)

// DynamoDBAPI is the subset of *dynamodb.Client the repositories call.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

var _ DynamoDBAPI = (*dynamodb.Client)(nil)

const (
	entityGuild       = "GUILD"
	entityMembership  = "MEMBERSHIP"
	entityPost        = "POST"
	entityLike        = "LIKE"
	entityIdempotency = "IDEMPOTENCY"

	guildMetadataSK = "METADATA"
	memberSKPrefix  = "MEMBER#"
	postSKPrefix    = "POST#"
	likeSKPrefix    = "LIKE#"
	guildsGSI1PK    = "GUILDS"
)

func guildPK(guildID string) string          { return fmt.Sprintf("GUILD#%s", guildID) }
func memberSK(userID string) string          { return memberSKPrefix + userID }
func postSK(postID string) string            { return postSKPrefix + postID }
func likePK(guildID, postID string) string   { return fmt.Sprintf("GUILD#%s#POST#%s", guildID, postID) }
func likeSK(userID string) string            { return likeSKPrefix + userID }
func userGSI1PK(userID string) string        { return fmt.Sprintf("USER#%s", userID) }
func idempotencyPK(userID, op string) string { return fmt.Sprintf("IDEMPOTENCY#%s#%s", userID, op) }

// store holds what every repository in this package shares.
type store struct {
	client DynamoDBAPI
	config repository.Config
	logger *zap.Logger
}

func newStore(client DynamoDBAPI, config repository.Config, logger *zap.Logger) store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return store{client: client, config: config.WithDefaults(), logger: logger}
}

func (s store) table() *string {
	return &s.config.TableName
}

// Repositories bundles every repository over one client and table.
type Repositories struct {
	Guilds      *GuildRepository
	Memberships *MembershipRepository
	Posts       *PostRepository
	Likes       *LikeRepository
	Reconciler  *Reconciler
	Idempotency *IdempotencyStore
}

// NewRepositories creates all repositories over the same client and table.
func NewRepositories(client DynamoDBAPI, config repository.Config, logger *zap.Logger) *Repositories {
	s := newStore(client, config, logger)
	return &Repositories{
		Guilds:      &GuildRepository{store: s},
		Memberships: &MembershipRepository{store: s},
		Posts:       &PostRepository{store: s},
		Likes:       &LikeRepository{store: s},
		Reconciler:  &Reconciler{store: s},
		Idempotency: &IdempotencyStore{store: s},
	}
}

// Ping reads a key that never exists. It fails only when the table cannot
// be reached, which is what the readiness probe needs to know.
func (r *Repositories) Ping(ctx context.Context) error {
	s := r.Guilds.store
	ctx, cancel := s.config.WithTimeout(ctx)
	defer cancel()

	_, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:            s.table(),
		Key:                  stringKey("HEALTH#probe", guildMetadataSK),
		ProjectionExpression: aws.String("PK"),
	})
	if err != nil {
		return repository.Classify(err, "GetItem health probe")
	}
	return nil
}
