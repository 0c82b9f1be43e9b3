package errors

import (
	stderrors "errors"
	"fmt"

	"github.com/aws/smithy-go"
)

// AWS API error codes the relay branches on.
const (
	AWSCodeAccessDenied             = "AccessDeniedException"
	AWSCodeResourceNotFound         = "ResourceNotFoundException"
	AWSCodeResourceExists           = "ResourceExistsException"
	AWSCodeQuickSightUserNotFound   = "QuickSightUserNotFoundException"
	AWSCodeThrottling               = "ThrottlingException"
	AWSCodeExpiredToken             = "ExpiredTokenException"
	AWSCodeInvalidIdentityToken     = "InvalidIdentityToken"
	AWSCodeIDPRejectedClaim         = "IDPRejectedClaim"
	AWSCodeIDPCommunicationError    = "IDPCommunicationError"
	AWSCodeSTSAccessDenied          = "AccessDenied"
	AWSCodeUnsupportedUserEdition   = "UnsupportedUserEditionException"
	AWSCodeSessionLifetimeInvalid   = "SessionLifetimeInMinutesInvalidException"
	AWSCodeDomainNotWhitelisted     = "DomainNotWhitelistedException"
	AWSCodeIdentityTypeNotSupported = "IdentityTypeNotSupportedException"
)

// Suggestions contains default fix suggestions for each error code.
var Suggestions = map[string]string{
	ErrCodeInvalidToken: "Sign in again through the login endpoint and pass the id_token " +
		"returned by the hosted UI as the idToken query parameter.",
	ErrCodeInvalidRequest: "Pass the dashboard name as the dashboardName query parameter.",
	ErrCodeCredentialExchange: "Check that the role trust policy allows sts:AssumeRoleWithWebIdentity " +
		"for the Cognito identity provider and that the token has not expired.",
	ErrCodeIdentityRegionResolution: "Ensure the role allows quicksight:DescribeUser. " +
		"Run: embedrelay check",
	ErrCodeDashboardNotFound: "No dashboard with that exact name is shared with this user. " +
		"Check the name (matching is case-sensitive) and the dashboard permissions.",
	ErrCodeUserNotRegistered: "The QuickSight user is not provisioned. Ensure the role allows quicksight:RegisterUser.",
	ErrCodeEmbedURL: "Ensure the role allows quicksight:GetDashboardEmbedUrl and that the " +
		"embedding domain is allow-listed in QuickSight.",
	ErrCodeRegistration: "Ensure the role allows quicksight:RegisterUser and that the account " +
		"has QuickSight Enterprise edition.",
	ErrCodeRateLimited:     "Too many requests. Wait a moment and retry.",
	ErrCodeUpstreamService: "An AWS service call failed. Check connectivity and retry.",
}

// GetSuggestion returns the default suggestion for an error code.
// Returns empty string if no suggestion is defined.
func GetSuggestion(code string) string {
	return Suggestions[code]
}

// awsSuggestions refine the kind default for specific AWS error codes.
var awsSuggestions = map[string]string{
	AWSCodeExpiredToken:           "The identity token has expired. Sign in again.",
	AWSCodeIDPRejectedClaim:       "The identity provider rejected a token claim. Check the role trust policy conditions (aud, amr).",
	AWSCodeThrottling:             "AWS throttled the request. Wait a moment and retry.",
	AWSCodeUnsupportedUserEdition: "Embedding requires QuickSight Enterprise edition.",
	AWSCodeSessionLifetimeInvalid: "Set the embed session lifetime between 15 and 600 minutes.",
	AWSCodeDomainNotWhitelisted:   "Add the application domain to the QuickSight embedding allow list.",
}

// APIErrorCode returns the AWS error code carried by err, or "" when err
// is not an AWS API error.
func APIErrorCode(err error) string {
	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// APIErrorMessage returns the service-provided message carried by err,
// falling back to err.Error() for non-API errors.
func APIErrorMessage(err error) string {
	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.ErrorMessage()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// ClassifyAWSError maps an AWS SDK error onto the taxonomy. fallback is the
// kind used for API errors that have no more specific classification.
// Non-API errors (transport failures, cancelled contexts) are always
// KindUpstreamService.
func ClassifyAWSError(err error, fallback Kind) Kind {
	code := APIErrorCode(err)
	if code == "" {
		return KindUpstreamService
	}
	switch code {
	case AWSCodeThrottling:
		return KindRateLimited
	default:
		return fallback
	}
}

// WrapAWSError classifies err and returns a RelayError with the operation
// and AWS error code attached as context.
func WrapAWSError(err error, fallback Kind, operation string) RelayError {
	if err == nil {
		return nil
	}
	kind := ClassifyAWSError(err, fallback)
	code := APIErrorCode(err)

	var message string
	if code != "" {
		message = fmt.Sprintf("%s failed: %s: %s", operation, code, APIErrorMessage(err))
	} else {
		message = fmt.Sprintf("%s failed: %v", operation, err)
	}

	re := New(kind, message, err)
	if s, ok := awsSuggestions[code]; ok {
		re = WithSuggestion(re, s)
	}
	re = WithContext(re, "operation", operation)
	if code != "" {
		re = WithContext(re, "aws_error_code", code)
	}
	return re
}

// WrapSTSError wraps an AssumeRoleWithWebIdentity failure. Rejections by
// STS are credential exchange failures; transport errors stay upstream.
func WrapSTSError(err error, roleARN string) RelayError {
	if err == nil {
		return nil
	}
	re := WrapAWSError(err, KindCredentialExchange, "AssumeRoleWithWebIdentity")
	return WithContext(re, "role_arn", roleARN)
}
