package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/quicksight"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	ststypes "github.com/aws/aws-sdk-go-v2/service/sts/types"
)

// ============================================================================
// MockSTSClient - STS operations
// ============================================================================

// MockSTSClient implements STS client operations for testing.
// Supports AssumeRoleWithWebIdentity and GetCallerIdentity.
type MockSTSClient struct {
	mu sync.Mutex

	// Configurable behavior functions
	AssumeRoleWithWebIdentityFunc func(ctx context.Context, params *sts.AssumeRoleWithWebIdentityInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleWithWebIdentityOutput, error)
	GetCallerIdentityFunc         func(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)

	// Call tracking
	AssumeRoleWithWebIdentityCalls []*sts.AssumeRoleWithWebIdentityInput
	GetCallerIdentityCalls         []*sts.GetCallerIdentityInput
}

// AssumeRoleWithWebIdentity implements the STS operation. Without a
// configured func it returns MakeSTSCredentials.
func (m *MockSTSClient) AssumeRoleWithWebIdentity(ctx context.Context, params *sts.AssumeRoleWithWebIdentityInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleWithWebIdentityOutput, error) {
	m.mu.Lock()
	m.AssumeRoleWithWebIdentityCalls = append(m.AssumeRoleWithWebIdentityCalls, params)
	m.mu.Unlock()

	if m.AssumeRoleWithWebIdentityFunc != nil {
		return m.AssumeRoleWithWebIdentityFunc(ctx, params, optFns...)
	}
	return &sts.AssumeRoleWithWebIdentityOutput{Credentials: MakeSTSCredentials()}, nil
}

// GetCallerIdentity implements STS GetCallerIdentity operation.
func (m *MockSTSClient) GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	m.mu.Lock()
	m.GetCallerIdentityCalls = append(m.GetCallerIdentityCalls, params)
	m.mu.Unlock()

	if m.GetCallerIdentityFunc != nil {
		return m.GetCallerIdentityFunc(ctx, params, optFns...)
	}
	return &sts.GetCallerIdentityOutput{
		Account: aws.String(TestAccountID),
		Arn:     aws.String("arn:aws:iam::" + TestAccountID + ":user/operator"),
		UserId:  aws.String("AIDAMOCKUSERID"),
	}, nil
}

// ExchangeCount returns the number of AssumeRoleWithWebIdentity calls.
func (m *MockSTSClient) ExchangeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.AssumeRoleWithWebIdentityCalls)
}

// Reset clears all call tracking data.
func (m *MockSTSClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AssumeRoleWithWebIdentityCalls = nil
	m.GetCallerIdentityCalls = nil
}

// MakeSTSCredentials returns STS-shaped test credentials.
func MakeSTSCredentials() *ststypes.Credentials {
	return &ststypes.Credentials{
		AccessKeyId:     aws.String("ASIATESTACCESSKEY"),
		SecretAccessKey: aws.String("test-secret-key"),
		SessionToken:    aws.String("test-session-token"),
		Expiration:      aws.Time(MustParseTime("2006-01-02T15:04:05Z07:00", "2030-01-01T00:00:00Z")),
	}
}

// ============================================================================
// MockQuickSightClient - QuickSight operations
// ============================================================================

// QuickSightCall records one QuickSight call and the region of the client
// that made it.
type QuickSightCall struct {
	Operation string
	Region    string
}

// MockQuickSightClient implements the QuickSight operations the resolver
// uses. Use Factory to hand it out per region; every call is recorded with
// the region of the client that made it.
type MockQuickSightClient struct {
	mu sync.Mutex

	// Configurable behavior functions. The region argument is the region
	// the client was created for.
	DescribeUserFunc         func(ctx context.Context, region string, params *quicksight.DescribeUserInput) (*quicksight.DescribeUserOutput, error)
	SearchDashboardsFunc     func(ctx context.Context, region string, params *quicksight.SearchDashboardsInput) (*quicksight.SearchDashboardsOutput, error)
	GetDashboardEmbedUrlFunc func(ctx context.Context, region string, params *quicksight.GetDashboardEmbedUrlInput) (*quicksight.GetDashboardEmbedUrlOutput, error)
	RegisterUserFunc         func(ctx context.Context, region string, params *quicksight.RegisterUserInput) (*quicksight.RegisterUserOutput, error)

	// Call tracking
	Calls             []QuickSightCall
	SearchCalls       []*quicksight.SearchDashboardsInput
	EmbedCalls        []*quicksight.GetDashboardEmbedUrlInput
	RegisterUserCalls []*quicksight.RegisterUserInput
}

// RegionalQuickSightClient is a MockQuickSightClient bound to a region.
type RegionalQuickSightClient struct {
	Mock   *MockQuickSightClient
	Region string
}

// ForRegion returns a client view bound to region.
func (m *MockQuickSightClient) ForRegion(region string) *RegionalQuickSightClient {
	return &RegionalQuickSightClient{Mock: m, Region: region}
}

func (m *MockQuickSightClient) record(op, region string) {
	m.mu.Lock()
	m.Calls = append(m.Calls, QuickSightCall{Operation: op, Region: region})
	m.mu.Unlock()
}

// CallCount returns the number of calls made to op.
func (m *MockQuickSightClient) CallCount(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.Calls {
		if c.Operation == op {
			n++
		}
	}
	return n
}

// Reset clears all call tracking data.
func (m *MockQuickSightClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
	m.SearchCalls = nil
	m.EmbedCalls = nil
	m.RegisterUserCalls = nil
}

// DescribeUser implements QuickSight DescribeUser. Defaults to success.
func (c *RegionalQuickSightClient) DescribeUser(ctx context.Context, params *quicksight.DescribeUserInput, _ ...func(*quicksight.Options)) (*quicksight.DescribeUserOutput, error) {
	c.Mock.record("DescribeUser", c.Region)
	if c.Mock.DescribeUserFunc != nil {
		return c.Mock.DescribeUserFunc(ctx, c.Region, params)
	}
	return &quicksight.DescribeUserOutput{}, nil
}

// SearchDashboards implements QuickSight SearchDashboards. Defaults to an
// empty result.
func (c *RegionalQuickSightClient) SearchDashboards(ctx context.Context, params *quicksight.SearchDashboardsInput, _ ...func(*quicksight.Options)) (*quicksight.SearchDashboardsOutput, error) {
	c.Mock.record("SearchDashboards", c.Region)
	c.Mock.mu.Lock()
	c.Mock.SearchCalls = append(c.Mock.SearchCalls, params)
	c.Mock.mu.Unlock()
	if c.Mock.SearchDashboardsFunc != nil {
		return c.Mock.SearchDashboardsFunc(ctx, c.Region, params)
	}
	return &quicksight.SearchDashboardsOutput{}, nil
}

// GetDashboardEmbedUrl implements QuickSight GetDashboardEmbedUrl.
func (c *RegionalQuickSightClient) GetDashboardEmbedUrl(ctx context.Context, params *quicksight.GetDashboardEmbedUrlInput, _ ...func(*quicksight.Options)) (*quicksight.GetDashboardEmbedUrlOutput, error) {
	c.Mock.record("GetDashboardEmbedUrl", c.Region)
	c.Mock.mu.Lock()
	c.Mock.EmbedCalls = append(c.Mock.EmbedCalls, params)
	c.Mock.mu.Unlock()
	if c.Mock.GetDashboardEmbedUrlFunc != nil {
		return c.Mock.GetDashboardEmbedUrlFunc(ctx, c.Region, params)
	}
	return nil, errors.New("GetDashboardEmbedUrl not implemented")
}

// RegisterUser implements QuickSight RegisterUser. Defaults to success.
func (c *RegionalQuickSightClient) RegisterUser(ctx context.Context, params *quicksight.RegisterUserInput, _ ...func(*quicksight.Options)) (*quicksight.RegisterUserOutput, error) {
	c.Mock.record("RegisterUser", c.Region)
	c.Mock.mu.Lock()
	c.Mock.RegisterUserCalls = append(c.Mock.RegisterUserCalls, params)
	c.Mock.mu.Unlock()
	if c.Mock.RegisterUserFunc != nil {
		return c.Mock.RegisterUserFunc(ctx, c.Region, params)
	}
	return &quicksight.RegisterUserOutput{}, nil
}

// ============================================================================
// MockSSMClient - SSM Parameter Store operations
// ============================================================================

// MockSSMClient implements SSM GetParametersByPath for testing.
type MockSSMClient struct {
	mu sync.Mutex

	GetParametersByPathFunc func(ctx context.Context, params *ssm.GetParametersByPathInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersByPathOutput, error)

	GetParametersByPathCalls []*ssm.GetParametersByPathInput
}

// GetParametersByPath implements SSM GetParametersByPath operation.
func (m *MockSSMClient) GetParametersByPath(ctx context.Context, params *ssm.GetParametersByPathInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersByPathOutput, error) {
	m.mu.Lock()
	m.GetParametersByPathCalls = append(m.GetParametersByPathCalls, params)
	m.mu.Unlock()

	if m.GetParametersByPathFunc != nil {
		return m.GetParametersByPathFunc(ctx, params, optFns...)
	}
	return &ssm.GetParametersByPathOutput{}, nil
}

// ============================================================================
// MockDynamoDBClient - DynamoDB operations
// ============================================================================

// MockDynamoDBClient implements the DynamoDB operations used for rate
// limiting and table provisioning.
type MockDynamoDBClient struct {
	mu sync.Mutex

	UpdateItemFunc       func(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	CreateTableFunc      func(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTableFunc    func(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	UpdateTimeToLiveFunc func(ctx context.Context, params *dynamodb.UpdateTimeToLiveInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateTimeToLiveOutput, error)

	UpdateItemCalls       []*dynamodb.UpdateItemInput
	CreateTableCalls      []*dynamodb.CreateTableInput
	DescribeTableCalls    []*dynamodb.DescribeTableInput
	UpdateTimeToLiveCalls []*dynamodb.UpdateTimeToLiveInput
}

// UpdateItem implements DynamoDB UpdateItem operation.
func (m *MockDynamoDBClient) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	m.mu.Lock()
	m.UpdateItemCalls = append(m.UpdateItemCalls, params)
	m.mu.Unlock()

	if m.UpdateItemFunc != nil {
		return m.UpdateItemFunc(ctx, params, optFns...)
	}
	return nil, errors.New("UpdateItem not implemented")
}

// CreateTable implements DynamoDB CreateTable operation.
func (m *MockDynamoDBClient) CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	m.mu.Lock()
	m.CreateTableCalls = append(m.CreateTableCalls, params)
	m.mu.Unlock()

	if m.CreateTableFunc != nil {
		return m.CreateTableFunc(ctx, params, optFns...)
	}
	return nil, errors.New("CreateTable not implemented")
}

// DescribeTable implements DynamoDB DescribeTable operation.
func (m *MockDynamoDBClient) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	m.mu.Lock()
	m.DescribeTableCalls = append(m.DescribeTableCalls, params)
	m.mu.Unlock()

	if m.DescribeTableFunc != nil {
		return m.DescribeTableFunc(ctx, params, optFns...)
	}
	return nil, errors.New("DescribeTable not implemented")
}

// UpdateTimeToLive implements DynamoDB UpdateTimeToLive operation.
func (m *MockDynamoDBClient) UpdateTimeToLive(ctx context.Context, params *dynamodb.UpdateTimeToLiveInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateTimeToLiveOutput, error) {
	m.mu.Lock()
	m.UpdateTimeToLiveCalls = append(m.UpdateTimeToLiveCalls, params)
	m.mu.Unlock()

	if m.UpdateTimeToLiveFunc != nil {
		return m.UpdateTimeToLiveFunc(ctx, params, optFns...)
	}
	return &dynamodb.UpdateTimeToLiveOutput{}, nil
}

// ============================================================================
// MockSNSClient - SNS operations
// ============================================================================

// MockSNSClient implements SNS Publish for testing.
type MockSNSClient struct {
	mu sync.Mutex

	PublishFunc func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)

	PublishCalls []*sns.PublishInput
}

// Publish implements SNS Publish operation.
func (m *MockSNSClient) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	m.mu.Lock()
	m.PublishCalls = append(m.PublishCalls, params)
	n := len(m.PublishCalls)
	m.mu.Unlock()

	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, params, optFns...)
	}
	return &sns.PublishOutput{MessageId: aws.String(fmt.Sprintf("mock-message-%d", n))}, nil
}

// ============================================================================
// MockIAMClient - IAM operations
// ============================================================================

// MockIAMClient implements the IAM operations used by the permission checker.
type MockIAMClient struct {
	mu sync.Mutex

	GetRoleFunc                 func(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error)
	SimulatePrincipalPolicyFunc func(ctx context.Context, params *iam.SimulatePrincipalPolicyInput, optFns ...func(*iam.Options)) (*iam.SimulatePrincipalPolicyOutput, error)

	GetRoleCalls                 []*iam.GetRoleInput
	SimulatePrincipalPolicyCalls []*iam.SimulatePrincipalPolicyInput
}

// GetRole implements IAM GetRole operation.
func (m *MockIAMClient) GetRole(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error) {
	m.mu.Lock()
	m.GetRoleCalls = append(m.GetRoleCalls, params)
	m.mu.Unlock()

	if m.GetRoleFunc != nil {
		return m.GetRoleFunc(ctx, params, optFns...)
	}
	return nil, errors.New("GetRole not implemented")
}

// SimulatePrincipalPolicy implements IAM SimulatePrincipalPolicy operation.
func (m *MockIAMClient) SimulatePrincipalPolicy(ctx context.Context, params *iam.SimulatePrincipalPolicyInput, optFns ...func(*iam.Options)) (*iam.SimulatePrincipalPolicyOutput, error) {
	m.mu.Lock()
	m.SimulatePrincipalPolicyCalls = append(m.SimulatePrincipalPolicyCalls, params)
	m.mu.Unlock()

	if m.SimulatePrincipalPolicyFunc != nil {
		return m.SimulatePrincipalPolicyFunc(ctx, params, optFns...)
	}
	return &iam.SimulatePrincipalPolicyOutput{}, nil
}

// ============================================================================
// MockSecretsManagerClient - Secrets Manager operations
// ============================================================================

// MockSecretsManagerClient implements Secrets Manager GetSecretValue.
type MockSecretsManagerClient struct {
	mu sync.Mutex

	GetSecretValueFunc func(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)

	GetSecretValueCalls []*secretsmanager.GetSecretValueInput
}

// GetSecretValue implements Secrets Manager GetSecretValue operation.
func (m *MockSecretsManagerClient) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	m.mu.Lock()
	m.GetSecretValueCalls = append(m.GetSecretValueCalls, params)
	m.mu.Unlock()

	if m.GetSecretValueFunc != nil {
		return m.GetSecretValueFunc(ctx, params, optFns...)
	}
	return nil, errors.New("GetSecretValue not implemented")
}
