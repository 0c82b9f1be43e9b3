package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every embedrelay environment variable.
const EnvPrefix = "EMBEDRELAY_"

// Environment variables read outside the EMBEDRELAY_ namespace.
const (
	EnvConfigFile = "EMBEDRELAY_CONFIG"
	EnvAWSRegion  = "AWS_REGION"
	EnvPort       = "PORT"
	EnvNodeEnv    = "NODE_ENV"
)

// setting applies a string value to one Config field.
type setting func(c *Config, v string) error

// settings maps a key to its Config field. The environment variable is
// EnvPrefix+key; the SSM parameter is the key as the last path segment,
// case-insensitive with '-' for '_'.
var settings = map[string]setting{
	"ENV":                      setString(func(c *Config) *string { return &c.Env }),
	"ACCOUNT_ID":               setString(func(c *Config) *string { return &c.AWS.AccountID }),
	"ROLE_ARN":                 setString(func(c *Config) *string { return &c.AWS.RoleARN }),
	"REGION":                   setString(func(c *Config) *string { return &c.AWS.Region }),
	"SESSION_DURATION":         setDuration(func(c *Config) *time.Duration { return &c.AWS.SessionDuration }),
	"NAMESPACE":                setString(func(c *Config) *string { return &c.QuickSight.Namespace }),
	"USER_ROLE":                setString(func(c *Config) *string { return &c.QuickSight.UserRole }),
	"SESSION_LIFETIME_MINUTES": setInt64(func(c *Config) *int64 { return &c.QuickSight.SessionLifetimeMinutes }),
	"UNDO_REDO_DISABLED":       setBool(func(c *Config) *bool { return &c.QuickSight.UndoRedoDisabled }),
	"RESET_DISABLED":           setBool(func(c *Config) *bool { return &c.QuickSight.ResetDisabled }),
	"COGNITO_APP_NAME":         setString(func(c *Config) *string { return &c.Cognito.AppName }),
	"COGNITO_DOMAIN":           setString(func(c *Config) *string { return &c.Cognito.Domain }),
	"COGNITO_REGION":           setString(func(c *Config) *string { return &c.Cognito.Region }),
	"COGNITO_CLIENT_ID":        setString(func(c *Config) *string { return &c.Cognito.ClientID }),
	"COGNITO_SCOPES":           setList(func(c *Config) *[]string { return &c.Cognito.Scopes }),
	"REDIRECT_URI":             setString(func(c *Config) *string { return &c.Cognito.RedirectURI }),
	"PORT":                     setInt(func(c *Config) *int { return &c.Server.Port }),
	"TLS_CERT_FILE":            setString(func(c *Config) *string { return &c.Server.TLSCertFile }),
	"TLS_KEY_FILE":             setString(func(c *Config) *string { return &c.Server.TLSKeyFile }),
	"TLS_SECRET_ID":            setString(func(c *Config) *string { return &c.Server.TLSSecretID }),
	"ALLOWED_ORIGINS":          setList(func(c *Config) *[]string { return &c.Server.AllowedOrigins }),
	"SHUTDOWN_TIMEOUT":         setDuration(func(c *Config) *time.Duration { return &c.Server.ShutdownTimeout }),
	"RATE_LIMIT_REQUESTS":      setInt(func(c *Config) *int { return &c.RateLimit.Requests }),
	"RATE_LIMIT_WINDOW":        setDuration(func(c *Config) *time.Duration { return &c.RateLimit.Window }),
	"RATE_LIMIT_BURST":         setInt(func(c *Config) *int { return &c.RateLimit.Burst }),
	"RATE_LIMIT_TABLE":         setString(func(c *Config) *string { return &c.RateLimit.Table }),
	"CLOUDWATCH_LOG_GROUP":     setString(func(c *Config) *string { return &c.Audit.CloudWatchLogGroup }),
	"CLOUDWATCH_STREAM":        setString(func(c *Config) *string { return &c.Audit.CloudWatchStream }),
	"LOG_SIGNING_KEY":          setString(func(c *Config) *string { return &c.Audit.SigningKey }),
	"LOG_SIGNING_KEY_ID":       setString(func(c *Config) *string { return &c.Audit.SigningKeyID }),
	"SNS_TOPIC_ARN":            setString(func(c *Config) *string { return &c.Notifications.SNSTopicARN }),
	"METRICS_ENABLED":          setBool(func(c *Config) *bool { return &c.Metrics.Enabled }),
	"METRICS_NAMESPACE":        setString(func(c *Config) *string { return &c.Metrics.Namespace }),
	"SSM_PATH":                 setString(func(c *Config) *string { return &c.SSMPath }),
}

func setString(field func(*Config) *string) setting {
	return func(c *Config, v string) error {
		*field(c) = v
		return nil
	}
}

func setList(field func(*Config) *[]string) setting {
	return func(c *Config, v string) error {
		*field(c) = strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' })
		return nil
	}
}

func setInt(field func(*Config) *int) setting {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("not an integer: %q", v)
		}
		*field(c) = n
		return nil
	}
}

func setInt64(field func(*Config) *int64) setting {
	return func(c *Config, v string) error {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("not an integer: %q", v)
		}
		*field(c) = n
		return nil
	}
}

func setBool(field func(*Config) *bool) setting {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("not a boolean: %q", v)
		}
		*field(c) = b
		return nil
	}
}

// setDuration accepts Go durations ("90s") or a bare number of seconds.
func setDuration(field func(*Config) *time.Duration) setting {
	return func(c *Config, v string) error {
		if secs, err := strconv.Atoi(v); err == nil {
			*field(c) = time.Duration(secs) * time.Second
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("not a duration: %q", v)
		}
		*field(c) = d
		return nil
	}
}

// Apply sets the field named by key (without EnvPrefix).
func (c *Config) Apply(key, value string) error {
	set, ok := settings[strings.ToUpper(key)]
	if !ok {
		return fmt.Errorf("unknown setting %q", key)
	}
	if err := set(c, strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

// LoadOptions selects the sources Load reads.
type LoadOptions struct {
	// File is a YAML config file. Empty means EMBEDRELAY_CONFIG, if set.
	File string

	// DotEnv is a dotenv file. A missing file is not an error.
	DotEnv string

	// LookupEnv reads environment variables. Defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// Load builds a Config from defaults, the YAML file, the dotenv file and the
// environment. SSM parameters are applied separately by ApplySSM because
// they need AWS credentials.
func Load(opts LoadOptions) (*Config, error) {
	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}

	cfg := Defaults()

	file := opts.File
	if file == "" {
		file, _ = lookup(EnvConfigFile)
	}
	if file != "" {
		if err := cfg.loadFile(file); err != nil {
			return nil, err
		}
	}

	if opts.DotEnv != "" {
		values, err := readDotEnv(opts.DotEnv)
		if err != nil {
			return nil, err
		}
		if err := cfg.applyValues(values, "dotenv "+opts.DotEnv); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads a YAML config file over the defaults, without any other
// source.
func LoadFile(path string) (*Config, error) {
	cfg := Defaults()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// readDotEnv parses KEY=value lines. Keys may carry the EMBEDRELAY_ prefix
// or not; PORT and NODE_ENV keep their conventional meaning.
func readDotEnv(path string) (map[string]string, error) {
	f, err := ini.LoadSources(ini.LoadOptions{
		Loose:                     true,
		IgnoreInlineComment:       true,
		UnescapeValueDoubleQuotes: true,
	}, path)
	if err != nil {
		return nil, fmt.Errorf("read dotenv file: %w", err)
	}
	return f.Section(ini.DefaultSection).KeysHash(), nil
}

func (c *Config) applyValues(values map[string]string, source string) error {
	lookup := func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
	if err := c.applyEnv(lookup); err != nil {
		return fmt.Errorf("%s: %w", source, err)
	}
	for key, v := range values {
		if _, ok := settings[key]; ok && !strings.HasPrefix(key, EnvPrefix) {
			if err := c.Apply(key, v); err != nil {
				return fmt.Errorf("%s: %w", source, err)
			}
		}
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvAWSRegion); ok && v != "" {
		c.AWS.Region = v
	}
	if v, ok := lookup(EnvPort); ok && v != "" {
		if err := c.Apply("PORT", v); err != nil {
			return err
		}
	}
	if v, ok := lookup(EnvNodeEnv); ok && v != "" {
		c.Env = v
	}
	for key := range settings {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			continue
		}
		if err := c.Apply(key, v); err != nil {
			return fmt.Errorf("%s%w", EnvPrefix, err)
		}
	}
	return nil
}

// SSMAPI defines the SSM operations used to read configuration.
type SSMAPI interface {
	GetParametersByPath(ctx context.Context, params *ssm.GetParametersByPathInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersByPathOutput, error)
}

// ErrNoSSMPath is returned by ApplySSM when no SSM path is configured.
var ErrNoSSMPath = errors.New("no SSM path configured")

// ApplySSM overrides settings with the parameters under c.SSMPath.
// SecureString parameters are decrypted. Parameters whose names are not
// settings are skipped.
func (c *Config) ApplySSM(ctx context.Context, client SSMAPI) (int, error) {
	if c.SSMPath == "" {
		return 0, ErrNoSSMPath
	}

	applied := 0
	var nextToken *string
	for {
		out, err := client.GetParametersByPath(ctx, &ssm.GetParametersByPathInput{
			Path:           aws.String(c.SSMPath),
			Recursive:      aws.Bool(true),
			WithDecryption: aws.Bool(true),
			NextToken:      nextToken,
		})
		if err != nil {
			return applied, fmt.Errorf("read SSM parameters under %s: %w", c.SSMPath, err)
		}

		for _, p := range out.Parameters {
			key := strings.ToUpper(strings.ReplaceAll(path.Base(aws.ToString(p.Name)), "-", "_"))
			if _, ok := settings[key]; !ok || key == "SSM_PATH" {
				continue
			}
			if err := c.Apply(key, aws.ToString(p.Value)); err != nil {
				return applied, fmt.Errorf("SSM parameter %s: %w", aws.ToString(p.Name), err)
			}
			applied++
		}

		if aws.ToString(out.NextToken) == "" {
			return applied, nil
		}
		nextToken = out.NextToken
	}
}
