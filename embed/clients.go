package embed

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/quicksight"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// STSClient defines the STS operation used for the credential exchange.
type STSClient interface {
	AssumeRoleWithWebIdentity(ctx context.Context, params *sts.AssumeRoleWithWebIdentityInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleWithWebIdentityOutput, error)
}

// QuickSightAPI defines the QuickSight operations used by the resolver.
type QuickSightAPI interface {
	DescribeUser(ctx context.Context, params *quicksight.DescribeUserInput, optFns ...func(*quicksight.Options)) (*quicksight.DescribeUserOutput, error)
	SearchDashboards(ctx context.Context, params *quicksight.SearchDashboardsInput, optFns ...func(*quicksight.Options)) (*quicksight.SearchDashboardsOutput, error)
	GetDashboardEmbedUrl(ctx context.Context, params *quicksight.GetDashboardEmbedUrlInput, optFns ...func(*quicksight.Options)) (*quicksight.GetDashboardEmbedUrlOutput, error)
	RegisterUser(ctx context.Context, params *quicksight.RegisterUserInput, optFns ...func(*quicksight.Options)) (*quicksight.RegisterUserOutput, error)
}

// QuickSightFactory returns a QuickSight client acting with creds in region.
type QuickSightFactory func(creds Credentials, region string) QuickSightAPI

// NewQuickSightFactory returns a factory deriving clients from base. The
// base config's credentials are replaced by the request's temporary ones.
func NewQuickSightFactory(base aws.Config) QuickSightFactory {
	return func(creds Credentials, region string) QuickSightAPI {
		cfg := base.Copy()
		cfg.Region = region
		cfg.Credentials = aws.NewCredentialsCache(creds.Provider())
		return quicksight.NewFromConfig(cfg)
	}
}

// NewSTSClient returns the STS client used for the web identity exchange.
// AssumeRoleWithWebIdentity is authenticated by the token itself, so the
// client is anonymous and needs no server credentials.
func NewSTSClient(base aws.Config) *sts.Client {
	return sts.NewFromConfig(base, func(o *sts.Options) {
		o.Credentials = aws.AnonymousCredentials{}
	})
}
