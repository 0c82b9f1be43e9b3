// Package embed resolves QuickSight dashboard embed URLs for users signed in
// through a Cognito hosted UI.
//
// A resolution runs five sequential steps, each depending on the previous:
//
//  1. Decode the caller's ID token claims.
//  2. Exchange the token for temporary credentials with
//     sts:AssumeRoleWithWebIdentity on a fixed role.
//  3. Discover the QuickSight identity region with a DescribeUser probe.
//  4. Search the caller's dashboards for an exact name match.
//  5. Mint an embed URL for the match in the identity region.
//
// When steps 4 or 5 report that the caller has no QuickSight user, the
// resolver registers one and retries steps 4 and 5 exactly once.
//
// Nothing is cached: every resolution performs a fresh credential exchange
// and the resolver holds no mutable state between requests.
package embed

import (
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// Defaults applied by NewResolver.
const (
	DefaultNamespace = "default"
	DefaultUserRole  = "READER"
	DefaultRegion    = "ap-northeast-2"
)

// Config is the fixed, per-process configuration of a Resolver.
type Config struct {
	// AccountID is the 12-digit AWS account that owns the dashboards.
	AccountID string

	// RoleARN is the role assumed with the caller's web identity token.
	RoleARN string

	// Region is the default region: dashboards are searched here and the
	// identity region probe starts here.
	Region string

	// Namespace is the QuickSight namespace. Defaults to "default".
	Namespace string

	// UserRole is the role given to users registered by the fallback
	// (READER, AUTHOR or ADMIN). Defaults to READER.
	UserRole string

	// SessionDuration is the requested STS session length; zero uses the
	// role's default.
	SessionDuration time.Duration

	Embed EmbedOptions
	Login LoginConfig
}

// EmbedOptions are passed through to GetDashboardEmbedUrl.
type EmbedOptions struct {
	// SessionLifetimeMinutes is 15..600; zero leaves the service default.
	SessionLifetimeMinutes int64
	UndoRedoDisabled       bool
	ResetDisabled          bool
}

// Credentials are the temporary credentials returned by STS. They live
// only for the duration of one resolution.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Expiration      time.Time
}

// Provider exposes the credentials to AWS SDK clients.
func (c Credentials) Provider() aws.CredentialsProvider {
	return credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, c.SessionToken)
}

// String keeps secrets out of logs and error messages.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{AccessKeyID: %s, Expiration: %s}", c.AccessKeyID, c.Expiration.Format(time.RFC3339))
}

// RequestContext accumulates what is learned during one resolution.
// Each step only fills fields in; nothing is cleared.
type RequestContext struct {
	RequestID      string
	AccountID      string
	RoleARN        string
	Partition      string
	RoleName       string
	Namespace      string
	Region         string
	IdentityRegion string
	Username       string // STS session name derived from the token
	Email          string
	DashboardName  string
	DashboardID    string
	Credentials    Credentials
}

// WithIdentity records the caller's session name and email.
func (rc *RequestContext) WithIdentity(username, email string) *RequestContext {
	rc.Username = username
	rc.Email = email
	return rc
}

// WithCredentials records the temporary credentials.
func (rc *RequestContext) WithCredentials(creds Credentials) *RequestContext {
	rc.Credentials = creds
	return rc
}

// WithIdentityRegion records the resolved identity region.
func (rc *RequestContext) WithIdentityRegion(region string) *RequestContext {
	rc.IdentityRegion = region
	return rc
}

// WithDashboard records the selected dashboard.
func (rc *RequestContext) WithDashboard(id string) *RequestContext {
	rc.DashboardID = id
	return rc
}

// QuickSightUserName is the IAM-federated QuickSight user name,
// <role-name>/<session-name>.
func (rc *RequestContext) QuickSightUserName() string {
	return rc.RoleName + "/" + rc.Username
}

// UserARN is the caller's QuickSight user ARN in the identity region.
func (rc *RequestContext) UserARN() string {
	return UserARN(rc.Partition, rc.IdentityRegion, rc.AccountID, rc.Namespace, rc.QuickSightUserName())
}

// DashboardSummary is a dashboard visible to the caller.
type DashboardSummary struct {
	ID   string
	Name string
	ARN  string
}

// Result is a successful resolution.
type Result struct {
	// URL is the single-use embed URL. It is never stored or logged.
	URL            string
	DashboardID    string
	DashboardName  string
	IdentityRegion string
	Registered     bool
	RequestID      string
}
