// Package permissions lists the AWS IAM permissions embedrelay needs and
// checks them against live IAM policies.
//
// Two principals are involved. The embed role is assumed with each caller's
// Cognito ID token and makes the QuickSight calls. The relay principal is
// whatever credentials the process itself runs with, and only needs the
// optional integrations that are configured.
package permissions

// Principal identifies whose policies a permission is evaluated against.
type Principal string

const (
	// PrincipalEmbedRole is the role assumed with the caller's ID token.
	PrincipalEmbedRole Principal = "embed_role"
	// PrincipalRelay is the identity the relay process runs as.
	PrincipalRelay Principal = "relay"
)

// Feature identifies a relay capability that requires AWS permissions.
type Feature string

const (
	// FeatureIdentityRegion probes the user's identity region with DescribeUser.
	FeatureIdentityRegion Feature = "identity_region"
	// FeatureDashboardSearch finds dashboards by name.
	FeatureDashboardSearch Feature = "dashboard_search"
	// FeatureEmbedURL mints dashboard embed URLs.
	FeatureEmbedURL Feature = "embed_url"
	// FeatureUserRegistration registers first-time QuickSight users.
	FeatureUserRegistration Feature = "user_registration"
	// FeatureConfigSSM reads configuration from SSM Parameter Store.
	FeatureConfigSSM Feature = "config_ssm"
	// FeatureTLSSecret reads TLS material from Secrets Manager.
	FeatureTLSSecret Feature = "tls_secret"
	// FeatureAuditCloudWatch forwards audit entries to CloudWatch Logs.
	FeatureAuditCloudWatch Feature = "audit_cloudwatch"
	// FeatureNotifySNS publishes registration events to SNS.
	FeatureNotifySNS Feature = "notify_sns"
	// FeatureMetrics publishes CloudWatch metrics.
	FeatureMetrics Feature = "metrics"
	// FeatureRateLimitDynamoDB shares rate limit counters through DynamoDB.
	FeatureRateLimitDynamoDB Feature = "ratelimit_dynamodb"
)

// IsValid returns true if the Feature is a known value.
func (f Feature) IsValid() bool {
	_, ok := registry[f]
	return ok
}

// String returns the string representation of the Feature.
func (f Feature) String() string {
	return string(f)
}

// AllFeatures returns all features, embed role features first.
func AllFeatures() []Feature {
	return []Feature{
		FeatureIdentityRegion,
		FeatureDashboardSearch,
		FeatureEmbedURL,
		FeatureUserRegistration,
		FeatureConfigSSM,
		FeatureTLSSecret,
		FeatureAuditCloudWatch,
		FeatureNotifySNS,
		FeatureMetrics,
		FeatureRateLimitDynamoDB,
	}
}

// EmbedFeatures returns the features the embed role always needs.
func EmbedFeatures() []Feature {
	return FeaturesFor(PrincipalEmbedRole)
}

// FeaturesFor returns the features evaluated against principal.
func FeaturesFor(principal Principal) []Feature {
	var features []Feature
	for _, f := range AllFeatures() {
		if registry[f].Principal == principal {
			features = append(features, f)
		}
	}
	return features
}

// Permission represents a single AWS IAM permission requirement.
type Permission struct {
	// Service is the AWS service name (e.g., "quicksight", "sns").
	Service string
	// Actions are the IAM actions required (e.g., "quicksight:DescribeUser").
	Actions []string
	// Resource is the ARN pattern for the resource.
	Resource string
	// Description provides human-readable context for this permission.
	Description string
}

// FeaturePermissions contains the permissions required for a specific feature.
type FeaturePermissions struct {
	Feature     Feature
	Principal   Principal
	Permissions []Permission
	// Optional features degrade gracefully when denied. Registration is
	// optional: already provisioned users can still embed without it.
	Optional bool
}
