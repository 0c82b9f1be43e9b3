package embed

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/arn"
	"github.com/aws/aws-sdk-go-v2/service/quicksight"
	"github.com/aws/aws-sdk-go-v2/service/quicksight/types"

	relayerrors "github.com/byteness/embedrelay/errors"
)

// maxSearchPages bounds SearchDashboards pagination.
const maxSearchPages = 50

// ErrInvalidRoleARN indicates the configured role ARN is not an IAM role ARN.
var ErrInvalidRoleARN = errors.New("invalid IAM role ARN")

// ParseRoleARN returns the partition and role name of an IAM role ARN.
// The role name is the path segment after the first '/', so
// arn:aws:iam::123456789012:role/EmbedRole yields "EmbedRole".
func ParseRoleARN(roleARN string) (partition, roleName string, err error) {
	a, err := arn.Parse(roleARN)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidRoleARN, err)
	}
	if a.Service != "iam" {
		return "", "", fmt.Errorf("%w: service is %q, want iam", ErrInvalidRoleARN, a.Service)
	}
	parts := strings.Split(a.Resource, "/")
	if len(parts) < 2 || parts[0] != "role" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: resource %q is not role/<name>", ErrInvalidRoleARN, a.Resource)
	}
	return a.Partition, parts[1], nil
}

// UserARN formats a QuickSight user ARN.
func UserARN(partition, region, accountID, namespace, userName string) string {
	return fmt.Sprintf("arn:%s:quicksight:%s:%s:user/%s/%s", partition, region, accountID, namespace, userName)
}

// SelectDashboard returns the first summary whose name equals name exactly.
func SelectDashboard(summaries []types.DashboardSummary, name string) (DashboardSummary, bool) {
	for _, s := range summaries {
		if aws.ToString(s.Name) == name {
			return DashboardSummary{
				ID:   aws.ToString(s.DashboardId),
				Name: aws.ToString(s.Name),
				ARN:  aws.ToString(s.Arn),
			}, true
		}
	}
	return DashboardSummary{}, false
}

// findDashboard pages through the caller's dashboards in the default
// region until one matches rc.DashboardName.
func (r *Resolver) findDashboard(ctx context.Context, rc *RequestContext) (DashboardSummary, error) {
	client := r.quicksight(rc.Credentials, rc.Region)
	filter := types.DashboardSearchFilter{
		Operator: types.FilterOperatorStringEquals,
		Name:     types.DashboardFilterAttributeQuicksightUser,
		Value:    aws.String(rc.UserARN()),
	}

	var nextToken *string
	exhausted := false
	for page := 0; page < maxSearchPages; page++ {
		out, err := client.SearchDashboards(ctx, &quicksight.SearchDashboardsInput{
			AwsAccountId: aws.String(rc.AccountID),
			Filters:      []types.DashboardSearchFilter{filter},
			NextToken:    nextToken,
		})
		if err != nil {
			if relayerrors.APIErrorCode(err) == relayerrors.AWSCodeResourceNotFound {
				return DashboardSummary{}, userNotRegistered(err, "SearchDashboards", rc)
			}
			return DashboardSummary{}, relayerrors.WrapAWSError(err, relayerrors.KindUpstreamService, "SearchDashboards")
		}

		if d, ok := SelectDashboard(out.DashboardSummaryList, rc.DashboardName); ok {
			return d, nil
		}
		if aws.ToString(out.NextToken) == "" {
			exhausted = true
			break
		}
		nextToken = out.NextToken
	}
	if !exhausted {
		log.Printf("WARNING: dashboard search stopped after %d pages without a match request=%s dashboard=%q",
			maxSearchPages, rc.RequestID, rc.DashboardName)
	}

	re := relayerrors.New(relayerrors.KindDashboardNotFound,
		fmt.Sprintf("dashboard not found: %s", rc.DashboardName), nil)
	return DashboardSummary{}, relayerrors.WithContext(re, "dashboard", rc.DashboardName)
}

// embedURL mints an embed URL for dashboardID in the identity region.
func (r *Resolver) embedURL(ctx context.Context, rc *RequestContext, dashboardID string) (string, error) {
	client := r.quicksight(rc.Credentials, rc.IdentityRegion)
	input := &quicksight.GetDashboardEmbedUrlInput{
		AwsAccountId:     aws.String(rc.AccountID),
		DashboardId:      aws.String(dashboardID),
		IdentityType:     types.EmbeddingIdentityTypeIam,
		UndoRedoDisabled: r.config.Embed.UndoRedoDisabled,
		ResetDisabled:    r.config.Embed.ResetDisabled,
	}
	if r.config.Embed.SessionLifetimeMinutes > 0 {
		input.SessionLifetimeInMinutes = aws.Int64(r.config.Embed.SessionLifetimeMinutes)
	}

	out, err := client.GetDashboardEmbedUrl(ctx, input)
	if err != nil {
		switch relayerrors.APIErrorCode(err) {
		case relayerrors.AWSCodeResourceNotFound, relayerrors.AWSCodeQuickSightUserNotFound:
			return "", userNotRegistered(err, "GetDashboardEmbedUrl", rc)
		}
		re := relayerrors.WrapAWSError(err, relayerrors.KindEmbedURL, "GetDashboardEmbedUrl")
		return "", relayerrors.WithContext(re, "dashboard_id", dashboardID)
	}

	url := aws.ToString(out.EmbedUrl)
	if url == "" {
		return "", relayerrors.New(relayerrors.KindEmbedURL, "GetDashboardEmbedUrl returned no URL", nil)
	}
	return url, nil
}

func userNotRegistered(err error, operation string, rc *RequestContext) relayerrors.RelayError {
	re := relayerrors.New(relayerrors.KindUserNotRegistered,
		fmt.Sprintf("QuickSight user %s is not registered", rc.QuickSightUserName()), err)
	return relayerrors.WithContext(re, "operation", operation)
}
