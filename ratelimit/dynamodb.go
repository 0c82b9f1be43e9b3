package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoDBAPI defines the DynamoDB operations needed for rate limiting.
type DynamoDBAPI interface {
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// windowItem is one counter row. Each fixed window gets its own row, so
// rollover needs no conditional reset; old rows expire through TTL.
//
// Table schema:
//   - PK: "RL#<key>#<window start unix>"
//   - Count: requests seen in the window
//   - TTL: window end plus one hour, for DynamoDB TTL
type windowItem struct {
	PK    string `dynamodbav:"PK"`
	Count int    `dynamodbav:"Count"`
	TTL   int64  `dynamodbav:"TTL"`
}

type windowKey struct {
	PK string `dynamodbav:"PK"`
}

// DynamoDBRateLimiter implements RateLimiter with fixed-window counters in
// DynamoDB, shared by every server and Lambda instance.
type DynamoDBRateLimiter struct {
	client    DynamoDBAPI
	tableName string
	config    Config
	now       func() time.Time
}

// NewDynamoDBRateLimiter creates a new DynamoDB-backed rate limiter.
// The table must have a String partition key named "PK".
func NewDynamoDBRateLimiter(client DynamoDBAPI, tableName string, cfg Config) (*DynamoDBRateLimiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if client == nil {
		return nil, errors.New("DynamoDB client cannot be nil")
	}
	if tableName == "" {
		return nil, errors.New("tableName cannot be empty")
	}

	return &DynamoDBRateLimiter{
		client:    client,
		tableName: tableName,
		config:    cfg,
		now:       time.Now,
	}, nil
}

// Allow atomically increments the counter for key's current window.
// DynamoDB errors fail open: the request is allowed and the error returned
// for logging.
func (r *DynamoDBRateLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	now := r.now()
	windowStart := now.Truncate(r.config.Window)
	windowEnd := windowStart.Add(r.config.Window)

	input, err := r.incrementInput(fmt.Sprintf("RL#%s#%d", key, windowStart.Unix()), windowEnd.Add(time.Hour).Unix())
	if err != nil {
		return true, 0, err
	}

	out, err := r.client.UpdateItem(ctx, input)
	if err != nil {
		log.Printf("WARNING: ratelimit: DynamoDB error (failing open): %v", err)
		return true, 0, err
	}

	var item windowItem
	if err := attributevalue.UnmarshalMap(out.Attributes, &item); err != nil {
		log.Printf("WARNING: ratelimit: unreadable counter (failing open): %v", err)
		return true, 0, err
	}

	if item.Count > r.config.EffectiveBurstSize() {
		return false, windowEnd.Sub(now), nil
	}
	return true, 0, nil
}

func (r *DynamoDBRateLimiter) incrementInput(pk string, ttl int64) (*dynamodb.UpdateItemInput, error) {
	key, err := attributevalue.MarshalMap(windowKey{PK: pk})
	if err != nil {
		return nil, fmt.Errorf("marshal key: %w", err)
	}
	values, err := attributevalue.MarshalMap(map[string]any{
		":one": 1,
		":ttl": ttl,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal values: %w", err)
	}

	return &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              key,
		UpdateExpression: aws.String("ADD #count :one SET #ttl = if_not_exists(#ttl, :ttl)"),
		ExpressionAttributeNames: map[string]string{
			"#count": "Count",
			"#ttl":   "TTL",
		},
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueAllNew,
	}, nil
}

var _ RateLimiter = (*DynamoDBRateLimiter)(nil)
