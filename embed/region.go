package embed

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/quicksight"

	relayerrors "github.com/byteness/embedrelay/errors"
)

// identityRegionMarker precedes the identity region in the AccessDenied
// message QuickSight returns when a user API is called outside it.
const identityRegionMarker = "but your identity region is "

// ParseIdentityRegion extracts the identity region from a QuickSight
// AccessDenied message. The region is the text after the marker up to the
// next '.' (or the end of the message).
//
//	"Operation is being called from endpoint us-east-1, but your identity region is ap-southeast-1. Please use the ap-southeast-1 endpoint."
//	  -> "ap-southeast-1", true
//	"User is not authorized to perform quicksight:DescribeUser"
//	  -> "", false
func ParseIdentityRegion(message string) (string, bool) {
	i := strings.Index(message, identityRegionMarker)
	if i < 0 {
		return "", false
	}
	rest := message[i+len(identityRegionMarker):]
	if j := strings.IndexByte(rest, '.'); j >= 0 {
		rest = rest[:j]
	}
	region := strings.TrimSpace(rest)
	if region == "" {
		return "", false
	}
	return region, true
}

// identityRegionFromProbe turns the outcome of the DescribeUser probe made
// in callRegion into the identity region. Only two failure shapes are
// informational; every other failure is fatal, and throttling is reported
// as such.
func identityRegionFromProbe(err error, callRegion string) (string, error) {
	if err == nil {
		return callRegion, nil
	}

	switch relayerrors.APIErrorCode(err) {
	case relayerrors.AWSCodeAccessDenied:
		if region, ok := ParseIdentityRegion(relayerrors.APIErrorMessage(err)); ok {
			return region, nil
		}
	case relayerrors.AWSCodeResourceNotFound:
		return callRegion, nil
	}

	kind := relayerrors.KindIdentityRegionResolution
	if relayerrors.ClassifyAWSError(err, kind) == relayerrors.KindRateLimited {
		kind = relayerrors.KindRateLimited
	}
	re := relayerrors.New(kind,
		fmt.Sprintf("could not resolve QuickSight identity region: %s", relayerrors.APIErrorMessage(err)), err)
	re = relayerrors.WithContext(re, "operation", "DescribeUser")
	return "", relayerrors.WithContext(re, "region", callRegion)
}

// resolveIdentityRegion probes DescribeUser in the default region.
func (r *Resolver) resolveIdentityRegion(ctx context.Context, rc *RequestContext) (string, error) {
	client := r.quicksight(rc.Credentials, rc.Region)
	_, err := client.DescribeUser(ctx, &quicksight.DescribeUserInput{
		AwsAccountId: aws.String(rc.AccountID),
		Namespace:    aws.String(rc.Namespace),
		UserName:     aws.String(rc.QuickSightUserName()),
	})
	return identityRegionFromProbe(err, rc.Region)
}
