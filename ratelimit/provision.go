package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	relayerrors "github.com/byteness/embedrelay/errors"
)

// Table layout expected by DynamoDBRateLimiter.
const (
	PartitionKeyAttribute = "PK"
	TTLAttribute          = "TTL"
)

// ProvisionStatus represents the result status of a provision operation.
type ProvisionStatus string

const (
	// StatusCreated indicates the table was created.
	StatusCreated ProvisionStatus = "CREATED"
	// StatusExists indicates the table already exists and is active.
	StatusExists ProvisionStatus = "EXISTS"
	// StatusFailed indicates the provision operation failed.
	StatusFailed ProvisionStatus = "FAILED"
)

// Backoff configuration for waiting on table status.
const (
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
	waitTimeout    = 5 * time.Minute
)

// TableAdminAPI defines the DynamoDB operations used by TableProvisioner.
type TableAdminAPI interface {
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	UpdateTimeToLive(ctx context.Context, params *dynamodb.UpdateTimeToLiveInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateTimeToLiveOutput, error)
}

// TableProvisioner creates the shared rate limit table.
type TableProvisioner struct {
	client  TableAdminAPI
	backoff time.Duration
}

// NewTableProvisioner creates a TableProvisioner using client.
func NewTableProvisioner(client TableAdminAPI) *TableProvisioner {
	return &TableProvisioner{client: client, backoff: initialBackoff}
}

// ProvisionResult contains the result of a table provisioning operation.
type ProvisionResult struct {
	TableName string          `json:"table_name"`
	Status    ProvisionStatus `json:"status"`
	ARN       string          `json:"arn,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// ProvisionPlan describes the table Create would make.
type ProvisionPlan struct {
	TableName    string `json:"table_name"`
	PartitionKey string `json:"partition_key"`
	TTLAttribute string `json:"ttl_attribute"`
	BillingMode  string `json:"billing_mode"`
}

// Plan returns the table definition without calling AWS.
func (p *TableProvisioner) Plan(tableName string) (*ProvisionPlan, error) {
	if tableName == "" {
		return nil, errors.New("table name is required")
	}
	return &ProvisionPlan{
		TableName:    tableName,
		PartitionKey: PartitionKeyAttribute + " (S)",
		TTLAttribute: TTLAttribute,
		BillingMode:  string(types.BillingModePayPerRequest),
	}, nil
}

// Create provisions the table and enables TTL. It is idempotent: an ACTIVE
// table is reported as StatusExists, and a table still being created is
// waited for. Failures after the existence check are reported in the result.
func (p *TableProvisioner) Create(ctx context.Context, tableName string) (*ProvisionResult, error) {
	if tableName == "" {
		return nil, errors.New("table name is required")
	}

	status, arn, err := p.tableStatus(ctx, tableName)
	if err != nil {
		return nil, err
	}

	failed := func(err error) *ProvisionResult {
		return &ProvisionResult{TableName: tableName, Status: StatusFailed, ARN: arn, Error: err.Error()}
	}

	switch status {
	case "ACTIVE":
		return &ProvisionResult{TableName: tableName, Status: StatusExists, ARN: arn}, nil

	case "CREATING", "UPDATING":
		if arn, err = p.waitForActive(ctx, tableName); err != nil {
			return failed(err), nil
		}
		return &ProvisionResult{TableName: tableName, Status: StatusExists, ARN: arn}, nil

	case "NOT_FOUND":
		output, err := p.client.CreateTable(ctx, createTableInput(tableName))
		if err != nil {
			var riu *types.ResourceInUseException
			if !errors.As(err, &riu) {
				return failed(relayerrors.WrapAWSError(err, relayerrors.KindUpstreamService, "CreateTable")), nil
			}
			// Created concurrently by someone else.
			if arn, err = p.waitForActive(ctx, tableName); err != nil {
				return failed(err), nil
			}
			return &ProvisionResult{TableName: tableName, Status: StatusExists, ARN: arn}, nil
		}

		if arn, err = p.waitForActive(ctx, tableName); err != nil {
			return failed(err), nil
		}
		if arn == "" && output.TableDescription != nil {
			arn = aws.ToString(output.TableDescription.TableArn)
		}
		if err := p.enableTTL(ctx, tableName); err != nil {
			return failed(fmt.Errorf("table created but TTL configuration failed: %w", err)), nil
		}
		return &ProvisionResult{TableName: tableName, Status: StatusCreated, ARN: arn}, nil

	default:
		return failed(fmt.Errorf("table exists with unexpected status: %s", status)), nil
	}
}

// tableStatus returns ("NOT_FOUND", "", nil) when the table doesn't exist.
func (p *TableProvisioner) tableStatus(ctx context.Context, tableName string) (string, string, error) {
	output, err := p.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(tableName),
	})
	if err != nil {
		var rnf *types.ResourceNotFoundException
		if errors.As(err, &rnf) {
			return "NOT_FOUND", "", nil
		}
		return "", "", relayerrors.WrapAWSError(err, relayerrors.KindUpstreamService, "DescribeTable")
	}
	if output.Table == nil {
		return "NOT_FOUND", "", nil
	}
	return string(output.Table.TableStatus), aws.ToString(output.Table.TableArn), nil
}

// waitForActive polls with exponential backoff until the table is ACTIVE.
func (p *TableProvisioner) waitForActive(ctx context.Context, tableName string) (string, error) {
	backoff := p.backoff
	deadline := time.Now().Add(waitTimeout)

	for {
		if time.Now().After(deadline) {
			return "", fmt.Errorf("timeout waiting for table %s to become ACTIVE", tableName)
		}

		status, arn, err := p.tableStatus(ctx, tableName)
		if err != nil {
			return "", err
		}
		switch status {
		case "ACTIVE":
			return arn, nil
		case "NOT_FOUND", "DELETING":
			return "", fmt.Errorf("table %s is %s", tableName, status)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

func (p *TableProvisioner) enableTTL(ctx context.Context, tableName string) error {
	_, err := p.client.UpdateTimeToLive(ctx, &dynamodb.UpdateTimeToLiveInput{
		TableName: aws.String(tableName),
		TimeToLiveSpecification: &types.TimeToLiveSpecification{
			Enabled:       aws.Bool(true),
			AttributeName: aws.String(TTLAttribute),
		},
	})
	if err != nil {
		return relayerrors.WrapAWSError(err, relayerrors.KindUpstreamService, "UpdateTimeToLive")
	}
	return nil
}

func createTableInput(tableName string) *dynamodb.CreateTableInput {
	return &dynamodb.CreateTableInput{
		TableName: aws.String(tableName),
		AttributeDefinitions: []types.AttributeDefinition{{
			AttributeName: aws.String(PartitionKeyAttribute),
			AttributeType: types.ScalarAttributeTypeS,
		}},
		KeySchema: []types.KeySchemaElement{{
			AttributeName: aws.String(PartitionKeyAttribute),
			KeyType:       types.KeyTypeHash,
		}},
		BillingMode: types.BillingModePayPerRequest,
	}
}
