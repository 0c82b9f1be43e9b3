package ratelimit

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/go-cmp/cmp"

	relayerrors "github.com/byteness/embedrelay/errors"
	"github.com/byteness/embedrelay/testutil"
)

const testTableARN = "arn:aws:dynamodb:us-east-1:123456789012:table/embedrelay-ratelimit"

// describeSequence returns the statuses in order, repeating the last one.
// An empty status means the table does not exist.
func describeSequence(statuses ...string) func(context.Context, *dynamodb.DescribeTableInput, ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	i := 0
	return func(context.Context, *dynamodb.DescribeTableInput, ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
		status := statuses[min(i, len(statuses)-1)]
		i++
		if status == "" {
			return nil, &types.ResourceNotFoundException{Message: aws.String("not found")}
		}
		return &dynamodb.DescribeTableOutput{Table: &types.TableDescription{
			TableStatus: types.TableStatus(status),
			TableArn:    aws.String(testTableARN),
		}}, nil
	}
}

func newTestProvisioner(client TableAdminAPI) *TableProvisioner {
	p := NewTableProvisioner(client)
	p.backoff = time.Millisecond
	return p
}

func TestTableProvisioner_Create(t *testing.T) {
	client := &testutil.MockDynamoDBClient{
		DescribeTableFunc: describeSequence("", "CREATING", "ACTIVE"),
		CreateTableFunc: func(context.Context, *dynamodb.CreateTableInput, ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
			return &dynamodb.CreateTableOutput{}, nil
		},
	}

	result, err := newTestProvisioner(client).Create(context.Background(), "embedrelay-ratelimit")
	if err != nil {
		t.Fatal(err)
	}
	want := &ProvisionResult{TableName: "embedrelay-ratelimit", Status: StatusCreated, ARN: testTableARN}
	if diff := cmp.Diff(want, result); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}

	if len(client.CreateTableCalls) != 1 {
		t.Fatalf("CreateTable calls = %d", len(client.CreateTableCalls))
	}
	in := client.CreateTableCalls[0]
	if in.BillingMode != types.BillingModePayPerRequest {
		t.Errorf("billing mode = %s", in.BillingMode)
	}
	if len(in.KeySchema) != 1 || aws.ToString(in.KeySchema[0].AttributeName) != PartitionKeyAttribute || in.KeySchema[0].KeyType != types.KeyTypeHash {
		t.Errorf("key schema = %+v", in.KeySchema)
	}

	if len(client.UpdateTimeToLiveCalls) != 1 {
		t.Fatalf("UpdateTimeToLive calls = %d", len(client.UpdateTimeToLiveCalls))
	}
	spec := client.UpdateTimeToLiveCalls[0].TimeToLiveSpecification
	if !aws.ToBool(spec.Enabled) || aws.ToString(spec.AttributeName) != TTLAttribute {
		t.Errorf("TTL spec = %+v", spec)
	}
}

func TestTableProvisioner_CreateStates(t *testing.T) {
	tests := []struct {
		name       string
		statuses   []string
		createErr  error
		ttlErr     error
		wantStatus ProvisionStatus
		wantError  string
		wantCreate int
	}{
		{name: "already active", statuses: []string{"ACTIVE"}, wantStatus: StatusExists},
		{name: "still creating", statuses: []string{"CREATING", "CREATING", "ACTIVE"}, wantStatus: StatusExists},
		{name: "deleting", statuses: []string{"DELETING"}, wantStatus: StatusFailed, wantError: "unexpected status: DELETING"},
		{
			name:       "created concurrently",
			statuses:   []string{"", "ACTIVE"},
			createErr:  &types.ResourceInUseException{Message: aws.String("in use")},
			wantStatus: StatusExists,
			wantCreate: 1,
		},
		{
			name:       "create denied",
			statuses:   []string{""},
			createErr:  testutil.APIError(relayerrors.AWSCodeAccessDenied, "not authorized"),
			wantStatus: StatusFailed,
			wantError:  "CreateTable failed: AccessDeniedException",
			wantCreate: 1,
		},
		{
			name:       "ttl fails",
			statuses:   []string{"", "ACTIVE"},
			ttlErr:     testutil.APIError("ValidationException", "bad"),
			wantStatus: StatusFailed,
			wantError:  "TTL configuration failed",
			wantCreate: 1,
		},
		{
			name:       "deleted while waiting",
			statuses:   []string{"", "CREATING", ""},
			wantStatus: StatusFailed,
			wantError:  "is NOT_FOUND",
			wantCreate: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &testutil.MockDynamoDBClient{
				DescribeTableFunc: describeSequence(tt.statuses...),
				CreateTableFunc: func(context.Context, *dynamodb.CreateTableInput, ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
					if tt.createErr != nil {
						return nil, tt.createErr
					}
					return &dynamodb.CreateTableOutput{}, nil
				},
				UpdateTimeToLiveFunc: func(context.Context, *dynamodb.UpdateTimeToLiveInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateTimeToLiveOutput, error) {
					return &dynamodb.UpdateTimeToLiveOutput{}, tt.ttlErr
				},
			}

			result, err := newTestProvisioner(client).Create(context.Background(), "embedrelay-ratelimit")
			if err != nil {
				t.Fatal(err)
			}
			if result.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s (%s)", result.Status, tt.wantStatus, result.Error)
			}
			if tt.wantError != "" && !strings.Contains(result.Error, tt.wantError) {
				t.Errorf("error = %q, want %q", result.Error, tt.wantError)
			}
			if len(client.CreateTableCalls) != tt.wantCreate {
				t.Errorf("CreateTable calls = %d, want %d", len(client.CreateTableCalls), tt.wantCreate)
			}
		})
	}
}

func TestTableProvisioner_DescribeError(t *testing.T) {
	client := &testutil.MockDynamoDBClient{
		DescribeTableFunc: func(context.Context, *dynamodb.DescribeTableInput, ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
			return nil, testutil.APIError(relayerrors.AWSCodeAccessDenied, "not authorized")
		},
	}
	_, err := newTestProvisioner(client).Create(context.Background(), "embedrelay-ratelimit")
	if !relayerrors.IsKind(err, relayerrors.KindUpstreamService) {
		t.Fatalf("error = %v, want upstream service error", err)
	}
}

func TestTableProvisioner_Plan(t *testing.T) {
	p := NewTableProvisioner(&testutil.MockDynamoDBClient{})

	plan, err := p.Plan("embedrelay-ratelimit")
	if err != nil {
		t.Fatal(err)
	}
	want := &ProvisionPlan{
		TableName:    "embedrelay-ratelimit",
		PartitionKey: "PK (S)",
		TTLAttribute: "TTL",
		BillingMode:  "PAY_PER_REQUEST",
	}
	if diff := cmp.Diff(want, plan); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}

	if _, err := p.Plan(""); err == nil {
		t.Error("expected error for empty table name")
	}
	if _, err := p.Create(context.Background(), ""); err == nil {
		t.Error("expected error for empty table name")
	}
}
