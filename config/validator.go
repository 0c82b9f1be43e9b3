package config

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/byteness/embedrelay/embed"
	"github.com/byteness/embedrelay/logging"
)

var (
	accountIDPattern = regexp.MustCompile(`^\d{12}$`)
	regionPattern    = regexp.MustCompile(`^[a-z]{2}(-gov|-iso[a-z]*)?-[a-z]+-\d$`)
)

// Embed session lifetime bounds accepted by GetDashboardEmbedUrl.
const (
	MinSessionLifetimeMinutes = 15
	MaxSessionLifetimeMinutes = 600
)

// Validate checks a loaded Config and returns every issue found. source
// names where the config came from, for display.
func Validate(c *Config, source string) ValidationResult {
	result := ValidationResult{
		Source: source,
		Valid:  true,
		Issues: []ValidationIssue{},
	}

	validateAWS(c, &result)
	validateQuickSight(c, &result)
	validateCognito(c, &result)
	validateServer(c, &result)
	validateRateLimit(c, &result)
	validateAudit(c, &result)

	switch c.Env {
	case EnvProduction, EnvDevelopment:
	default:
		result.add(SeverityWarning, "env", fmt.Sprintf("unknown environment %q", c.Env),
			"use 'production' or 'development'; anything else behaves as production")
	}

	return result
}

// ValidateFile loads a YAML file over the defaults and validates it.
func ValidateFile(path string) (ValidationResult, error) {
	c, err := LoadFile(path)
	if err != nil {
		return ValidationResult{
			Source: path,
			Valid:  false,
			Issues: []ValidationIssue{{
				Severity:   SeverityError,
				Message:    err.Error(),
				Suggestion: "verify the file exists and is valid YAML with known keys",
			}},
		}, err
	}
	return Validate(c, path), nil
}

func validateAWS(c *Config, r *ValidationResult) {
	switch {
	case c.AWS.AccountID == "":
		r.add(SeverityError, "aws.account_id", "account ID is required", "set the 12-digit account that owns the dashboards")
	case !accountIDPattern.MatchString(c.AWS.AccountID):
		r.add(SeverityError, "aws.account_id", fmt.Sprintf("invalid account ID %q", c.AWS.AccountID), "use the 12-digit AWS account ID")
	}

	if c.AWS.RoleARN == "" {
		r.add(SeverityError, "aws.role_arn", "role ARN is required", "set the IAM role assumed with the Cognito ID token")
	} else if _, _, err := embed.ParseRoleARN(c.AWS.RoleARN); err != nil {
		r.add(SeverityError, "aws.role_arn", err.Error(), "use arn:<partition>:iam::<account>:role/<name>")
	} else if c.AWS.AccountID != "" && !strings.Contains(c.AWS.RoleARN, "::"+c.AWS.AccountID+":") {
		r.add(SeverityWarning, "aws.role_arn", "role belongs to a different account than aws.account_id",
			"cross-account embedding requires the role's account to own the QuickSight users")
	}

	if !regionPattern.MatchString(c.AWS.Region) {
		r.add(SeverityError, "aws.region", fmt.Sprintf("invalid region %q", c.AWS.Region), "use a region code such as ap-northeast-2")
	}

	if d := c.AWS.SessionDuration; d != 0 && (d.Seconds() < 900 || d.Hours() > 12) {
		r.add(SeverityError, "aws.session_duration", fmt.Sprintf("session duration %v out of range", d), "use between 15m and 12h, or omit for the role default")
	}
}

func validateQuickSight(c *Config, r *ValidationResult) {
	if c.QuickSight.Namespace == "" {
		r.add(SeverityError, "quicksight.namespace", "namespace is required", "use 'default' unless the account uses namespaces")
	}

	switch strings.ToUpper(c.QuickSight.UserRole) {
	case "READER", "AUTHOR", "ADMIN":
		if strings.ToUpper(c.QuickSight.UserRole) != "READER" {
			r.add(SeverityWarning, "quicksight.user_role",
				fmt.Sprintf("new users are registered as %s", strings.ToUpper(c.QuickSight.UserRole)),
				"READER is enough to view embedded dashboards; AUTHOR and ADMIN are billed higher")
		}
	default:
		r.add(SeverityError, "quicksight.user_role", fmt.Sprintf("invalid user role %q", c.QuickSight.UserRole), "use READER, AUTHOR or ADMIN")
	}

	if m := c.QuickSight.SessionLifetimeMinutes; m != 0 && (m < MinSessionLifetimeMinutes || m > MaxSessionLifetimeMinutes) {
		r.add(SeverityError, "quicksight.session_lifetime_minutes",
			fmt.Sprintf("session lifetime %d minutes out of range", m),
			fmt.Sprintf("use %d to %d minutes, or omit for the service default", MinSessionLifetimeMinutes, MaxSessionLifetimeMinutes))
	}
}

func validateCognito(c *Config, r *ValidationResult) {
	if c.Cognito.AppName == "" && c.Cognito.Domain == "" {
		r.add(SeverityError, "cognito.app_name", "Cognito app name or domain is required", "set the hosted UI domain prefix")
	}
	if c.Cognito.ClientID == "" {
		r.add(SeverityError, "cognito.client_id", "Cognito app client ID is required", "copy it from the user pool's app client settings")
	}
	if c.Cognito.Region != "" && !regionPattern.MatchString(c.Cognito.Region) {
		r.add(SeverityError, "cognito.region", fmt.Sprintf("invalid region %q", c.Cognito.Region), "use the user pool's region code")
	}

	if c.Cognito.RedirectURI == "" {
		r.add(SeverityError, "cognito.redirect_uri", "redirect URI is required", "set the application URL Cognito returns the token to")
		return
	}
	u, err := url.Parse(c.Cognito.RedirectURI)
	if err != nil || !u.IsAbs() || u.Host == "" {
		r.add(SeverityError, "cognito.redirect_uri", fmt.Sprintf("redirect URI %q is not an absolute URL", c.Cognito.RedirectURI), "use a full URL such as https://app.example.com")
		return
	}
	if u.Scheme != "https" && u.Hostname() != "localhost" {
		r.add(SeverityWarning, "cognito.redirect_uri", "redirect URI is not HTTPS", "Cognito only allows plain HTTP for localhost")
	}
}

func validateServer(c *Config, r *ValidationResult) {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		r.add(SeverityError, "server.port", fmt.Sprintf("invalid port %d", c.Server.Port), "use a port between 1 and 65535")
	}

	hasCert, hasKey := c.Server.TLSCertFile != "", c.Server.TLSKeyFile != ""
	if hasCert != hasKey {
		r.add(SeverityError, "server.tls_cert_file", "TLS certificate and key must be set together", "set both tls_cert_file and tls_key_file")
	}
	if hasCert && c.Server.TLSSecretID != "" {
		r.add(SeverityWarning, "server.tls_secret_id", "both TLS files and a TLS secret are set", "the files take precedence; remove one")
	}
	if !hasCert && !hasKey && c.Server.TLSSecretID == "" && !c.IsDevelopment() {
		r.add(SeverityWarning, "server", "no TLS material configured; serving plain HTTP", "terminate TLS upstream or set tls_cert_file/tls_key_file")
	}

	for i, origin := range c.Server.AllowedOrigins {
		if origin == "*" {
			r.add(SeverityError, fmt.Sprintf("server.allowed_origins[%d]", i), "wildcard origin cannot be combined with credentials", "list explicit origins")
		}
	}
}

func validateRateLimit(c *Config, r *ValidationResult) {
	if c.RateLimit.Requests < 0 {
		r.add(SeverityError, "rate_limit.requests", "requests cannot be negative", "use 0 to disable rate limiting")
		return
	}
	if c.RateLimit.Requests == 0 {
		r.add(SeverityWarning, "rate_limit.requests", "rate limiting is disabled", "every request performs an STS exchange; consider a limit")
		return
	}
	if c.RateLimit.Window <= 0 {
		r.add(SeverityError, "rate_limit.window", "window must be positive", "use a duration such as 1m")
	}
	if c.RateLimit.Burst < 0 {
		r.add(SeverityError, "rate_limit.burst", "burst cannot be negative", "omit burst to use the request count")
	}
}

func validateAudit(c *Config, r *ValidationResult) {
	if c.Audit.SigningKey == "" {
		if c.Audit.SigningKeyID != "" {
			r.add(SeverityWarning, "audit.signing_key_id", "signing key ID set without a signing key", "set audit.signing_key or remove the key ID")
		}
		return
	}
	key, err := hex.DecodeString(c.Audit.SigningKey)
	if err != nil {
		r.add(SeverityError, "audit.signing_key", "signing key is not hex", "generate one with: openssl rand -hex 32")
		return
	}
	if len(key) < logging.MinKeyLength {
		r.add(SeverityError, "audit.signing_key",
			fmt.Sprintf("signing key is %d bytes, need at least %d", len(key), logging.MinKeyLength),
			"generate one with: openssl rand -hex 32")
	}
}
