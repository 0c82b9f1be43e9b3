package permissions

// registry maps features to their required AWS IAM permissions.
var registry = map[Feature]FeaturePermissions{
	FeatureIdentityRegion: {
		Feature:   FeatureIdentityRegion,
		Principal: PrincipalEmbedRole,
		Permissions: []Permission{{
			Service:     "quicksight",
			Actions:     []string{"quicksight:DescribeUser"},
			Resource:    "arn:aws:quicksight:*:*:user/*",
			Description: "Describe the caller's own QuickSight user to find its identity region",
		}},
	},

	FeatureDashboardSearch: {
		Feature:   FeatureDashboardSearch,
		Principal: PrincipalEmbedRole,
		Permissions: []Permission{{
			Service:     "quicksight",
			Actions:     []string{"quicksight:SearchDashboards"},
			Resource:    "arn:aws:quicksight:*:*:dashboard/*",
			Description: "Search dashboards shared with the caller by name",
		}},
	},

	FeatureEmbedURL: {
		Feature:   FeatureEmbedURL,
		Principal: PrincipalEmbedRole,
		Permissions: []Permission{{
			Service:     "quicksight",
			Actions:     []string{"quicksight:GetDashboardEmbedUrl"},
			Resource:    "arn:aws:quicksight:*:*:dashboard/*",
			Description: "Generate embed URLs for dashboards",
		}},
	},

	FeatureUserRegistration: {
		Feature:   FeatureUserRegistration,
		Principal: PrincipalEmbedRole,
		Permissions: []Permission{{
			Service:     "quicksight",
			Actions:     []string{"quicksight:RegisterUser"},
			Resource:    "arn:aws:quicksight:*:*:user/*",
			Description: "Register first-time users as IAM-federated QuickSight users",
		}},
		Optional: true,
	},

	FeatureConfigSSM: {
		Feature:   FeatureConfigSSM,
		Principal: PrincipalRelay,
		Permissions: []Permission{{
			Service:     "ssm",
			Actions:     []string{"ssm:GetParametersByPath"},
			Resource:    "arn:aws:ssm:*:*:parameter/embedrelay/*",
			Description: "Read configuration parameters",
		}},
		Optional: true,
	},

	FeatureTLSSecret: {
		Feature:   FeatureTLSSecret,
		Principal: PrincipalRelay,
		Permissions: []Permission{{
			Service:     "secretsmanager",
			Actions:     []string{"secretsmanager:GetSecretValue"},
			Resource:    "arn:aws:secretsmanager:*:*:secret:embedrelay/*",
			Description: "Read the TLS certificate and private key",
		}},
		Optional: true,
	},

	FeatureAuditCloudWatch: {
		Feature:   FeatureAuditCloudWatch,
		Principal: PrincipalRelay,
		Permissions: []Permission{{
			Service:     "logs",
			Actions:     []string{"logs:CreateLogStream", "logs:PutLogEvents"},
			Resource:    "arn:aws:logs:*:*:log-group:/embedrelay/*",
			Description: "Forward audit entries to CloudWatch Logs",
		}},
		Optional: true,
	},

	FeatureNotifySNS: {
		Feature:   FeatureNotifySNS,
		Principal: PrincipalRelay,
		Permissions: []Permission{{
			Service:     "sns",
			Actions:     []string{"sns:Publish"},
			Resource:    "arn:aws:sns:*:*:embedrelay-*",
			Description: "Publish user registration events",
		}},
		Optional: true,
	},

	FeatureMetrics: {
		Feature:   FeatureMetrics,
		Principal: PrincipalRelay,
		Permissions: []Permission{{
			Service:     "cloudwatch",
			Actions:     []string{"cloudwatch:PutMetricData"},
			Resource:    "*",
			Description: "Publish resolution metrics",
		}},
		Optional: true,
	},

	FeatureRateLimitDynamoDB: {
		Feature:   FeatureRateLimitDynamoDB,
		Principal: PrincipalRelay,
		Permissions: []Permission{{
			Service:     "dynamodb",
			Actions:     []string{"dynamodb:UpdateItem"},
			Resource:    "arn:aws:dynamodb:*:*:table/embedrelay-*",
			Description: "Count requests per client in a shared table",
		}},
		Optional: true,
	},
}

// GetFeaturePermissions returns the permissions for a feature.
func GetFeaturePermissions(f Feature) (FeaturePermissions, bool) {
	fp, ok := registry[f]
	return fp, ok
}

// GetPermissions returns the permissions for the given features in order,
// skipping unknown ones.
func GetPermissions(features []Feature) []FeaturePermissions {
	perms := make([]FeaturePermissions, 0, len(features))
	for _, f := range features {
		if fp, ok := registry[f]; ok {
			perms = append(perms, fp)
		}
	}
	return perms
}
