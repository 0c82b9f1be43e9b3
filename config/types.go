// Package config loads and validates embedrelay configuration.
//
// Settings are layered, later sources winning: built-in defaults, a YAML
// file, a dotenv file, EMBEDRELAY_* environment variables, and finally an
// optional SSM Parameter Store path.
package config

import (
	"time"

	"github.com/byteness/embedrelay/embed"
	"github.com/byteness/embedrelay/ratelimit"
)

// Environment names.
const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

// Default configuration values.
const (
	DefaultPort              = 4000
	DefaultRateLimitRequests = 60
	DefaultRateLimitWindow   = time.Minute
	DefaultShutdownTimeout   = 10 * time.Second
	DefaultMetricsNamespace  = "EmbedRelay"
)

// Config is the complete relay configuration.
type Config struct {
	// Env is "production" or "development". Development adds error detail
	// to HTTP responses.
	Env string `yaml:"env"`

	AWS           AWSConfig          `yaml:"aws"`
	QuickSight    QuickSightConfig   `yaml:"quicksight"`
	Cognito       CognitoConfig      `yaml:"cognito"`
	Server        ServerConfig       `yaml:"server"`
	RateLimit     RateLimitConfig    `yaml:"rate_limit"`
	Audit         AuditConfig        `yaml:"audit"`
	Notifications NotificationConfig `yaml:"notifications"`
	Metrics       MetricsConfig      `yaml:"metrics"`

	// SSMPath is a Parameter Store path whose parameters override every
	// other source, e.g. /embedrelay/prod.
	SSMPath string `yaml:"ssm_path,omitempty"`
}

// AWSConfig identifies the account and role dashboards are served from.
type AWSConfig struct {
	AccountID       string        `yaml:"account_id"`
	RoleARN         string        `yaml:"role_arn"`
	Region          string        `yaml:"region"`
	SessionDuration time.Duration `yaml:"session_duration,omitempty"`
}

// QuickSightConfig controls registration and embed URL options.
type QuickSightConfig struct {
	Namespace              string `yaml:"namespace"`
	UserRole               string `yaml:"user_role"`
	SessionLifetimeMinutes int64  `yaml:"session_lifetime_minutes,omitempty"`
	UndoRedoDisabled       bool   `yaml:"undo_redo_disabled,omitempty"`
	ResetDisabled          bool   `yaml:"reset_disabled,omitempty"`
}

// CognitoConfig describes the hosted UI users sign in through.
type CognitoConfig struct {
	AppName     string   `yaml:"app_name"`
	Domain      string   `yaml:"domain,omitempty"`
	Region      string   `yaml:"region,omitempty"`
	ClientID    string   `yaml:"client_id"`
	RedirectURI string   `yaml:"redirect_uri"`
	Scopes      []string `yaml:"scopes,omitempty"`
}

// ServerConfig configures the HTTPS server.
type ServerConfig struct {
	Port int `yaml:"port"`

	// TLSCertFile and TLSKeyFile are PEM files. TLSSecretID names a Secrets
	// Manager secret holding {"certificate": ..., "private_key": ...}.
	// With neither, the server listens on plain HTTP.
	TLSCertFile string `yaml:"tls_cert_file,omitempty"`
	TLSKeyFile  string `yaml:"tls_key_file,omitempty"`
	TLSSecretID string `yaml:"tls_secret_id,omitempty"`

	// AllowedOrigins are CORS origins in addition to the redirect URI.
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty"`
}

// RateLimitConfig limits embed requests per client IP. Requests of zero
// disables limiting. With Table set the limit is shared through DynamoDB.
type RateLimitConfig struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
	Burst    int           `yaml:"burst,omitempty"`
	Table    string        `yaml:"table,omitempty"`
}

// AuditConfig selects where audit entries go.
type AuditConfig struct {
	CloudWatchLogGroup string `yaml:"cloudwatch_log_group,omitempty"`
	CloudWatchStream   string `yaml:"cloudwatch_stream,omitempty"`

	// SigningKey is a hex-encoded HMAC key (at least 32 bytes).
	SigningKey   string `yaml:"signing_key,omitempty"`
	SigningKeyID string `yaml:"signing_key_id,omitempty"`
}

// NotificationConfig configures provisioning notifications.
type NotificationConfig struct {
	SNSTopicARN string `yaml:"sns_topic_arn,omitempty"`
}

// MetricsConfig configures CloudWatch metrics.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace,omitempty"`
}

// Defaults returns a Config populated with default values.
func Defaults() *Config {
	return &Config{
		Env: EnvProduction,
		AWS: AWSConfig{
			Region: embed.DefaultRegion,
		},
		QuickSight: QuickSightConfig{
			Namespace: embed.DefaultNamespace,
			UserRole:  embed.DefaultUserRole,
		},
		Server: ServerConfig{
			Port:            DefaultPort,
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		RateLimit: RateLimitConfig{
			Requests: DefaultRateLimitRequests,
			Window:   DefaultRateLimitWindow,
		},
		Metrics: MetricsConfig{
			Namespace: DefaultMetricsNamespace,
		},
	}
}

// IsDevelopment reports whether development error detail is enabled.
func (c *Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

// Embed returns the resolver configuration.
func (c *Config) Embed() embed.Config {
	return embed.Config{
		AccountID:       c.AWS.AccountID,
		RoleARN:         c.AWS.RoleARN,
		Region:          c.AWS.Region,
		Namespace:       c.QuickSight.Namespace,
		UserRole:        c.QuickSight.UserRole,
		SessionDuration: c.AWS.SessionDuration,
		Embed: embed.EmbedOptions{
			SessionLifetimeMinutes: c.QuickSight.SessionLifetimeMinutes,
			UndoRedoDisabled:       c.QuickSight.UndoRedoDisabled,
			ResetDisabled:          c.QuickSight.ResetDisabled,
		},
		Login: embed.LoginConfig{
			AppName:     c.Cognito.AppName,
			Domain:      c.Cognito.Domain,
			Region:      c.Cognito.Region,
			ClientID:    c.Cognito.ClientID,
			RedirectURI: c.Cognito.RedirectURI,
			Scopes:      c.Cognito.Scopes,
		},
	}
}

// Limiter returns the rate limiter configuration, and false when rate
// limiting is disabled.
func (c *Config) Limiter() (ratelimit.Config, bool) {
	if c.RateLimit.Requests <= 0 {
		return ratelimit.Config{}, false
	}
	return ratelimit.Config{
		RequestsPerWindow: c.RateLimit.Requests,
		Window:            c.RateLimit.Window,
		BurstSize:         c.RateLimit.Burst,
	}, true
}

// Origins returns the CORS origins: the redirect URI followed by any
// additional allowed origins.
func (c *Config) Origins() []string {
	var origins []string
	if c.Cognito.RedirectURI != "" {
		origins = append(origins, c.Cognito.RedirectURI)
	}
	return append(origins, c.Server.AllowedOrigins...)
}

// IssueSeverity indicates the severity of a validation issue.
type IssueSeverity string

const (
	// SeverityError indicates a problem that blocks startup.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a suspicious setting that still works.
	SeverityWarning IssueSeverity = "warning"
)

// ValidationIssue represents a single validation problem.
type ValidationIssue struct {
	Severity   IssueSeverity `json:"severity"`
	Location   string        `json:"location"` // e.g. "aws.role_arn"
	Message    string        `json:"message"`
	Suggestion string        `json:"suggestion,omitempty"`
}

// ValidationResult contains all validation findings for a configuration.
type ValidationResult struct {
	Source string            `json:"source"`
	Valid  bool              `json:"valid"` // True if no errors (warnings OK)
	Issues []ValidationIssue `json:"issues"`
}

// Count returns the number of issues with the given severity.
func (r ValidationResult) Count(severity IssueSeverity) int {
	n := 0
	for _, issue := range r.Issues {
		if issue.Severity == severity {
			n++
		}
	}
	return n
}

func (r *ValidationResult) add(severity IssueSeverity, location, message, suggestion string) {
	if severity == SeverityError {
		r.Valid = false
	}
	r.Issues = append(r.Issues, ValidationIssue{
		Severity:   severity,
		Location:   location,
		Message:    message,
		Suggestion: suggestion,
	})
}
