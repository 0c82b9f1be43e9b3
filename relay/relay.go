// Package relay assembles a ready-to-serve embed resolver and its
// supporting services from a loaded configuration. Both the HTTPS server
// and the Lambda handler start here.
package relay

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/byteness/embedrelay/config"
	"github.com/byteness/embedrelay/embed"
	"github.com/byteness/embedrelay/logging"
	"github.com/byteness/embedrelay/metrics"
	"github.com/byteness/embedrelay/notification"
	"github.com/byteness/embedrelay/ratelimit"
)

// Relay holds the wired components of a running relay.
type Relay struct {
	Config   *config.Config
	AWS      aws.Config
	Resolver *embed.Resolver
	Limiter  ratelimit.RateLimiter

	closers []io.Closer
}

// Close releases background resources such as the limiter cleanup loop.
func (r *Relay) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type buildOptions struct {
	awsConfig *aws.Config
	ssm       config.SSMAPI
	dynamodb  ratelimit.DynamoDBAPI
	logOutput io.Writer
	stream    string
	source    string
	resolver  []embed.Option
}

// Option customises Build.
type Option func(*buildOptions)

// WithAWSConfig uses cfg instead of the default credential chain.
func WithAWSConfig(cfg aws.Config) Option {
	return func(o *buildOptions) { o.awsConfig = &cfg }
}

// WithSSMClient overrides the client used to read ssm_path.
func WithSSMClient(c config.SSMAPI) Option {
	return func(o *buildOptions) { o.ssm = c }
}

// WithDynamoDBClient overrides the client used by the shared rate limiter.
func WithDynamoDBClient(c ratelimit.DynamoDBAPI) Option {
	return func(o *buildOptions) { o.dynamodb = c }
}

// WithLogOutput sets where local audit entries are written. Defaults to
// stdout.
func WithLogOutput(w io.Writer) Option {
	return func(o *buildOptions) { o.logOutput = w }
}

// WithSource names the configuration source in validation messages.
func WithSource(source string) Option {
	return func(o *buildOptions) { o.source = source }
}

// WithResolverOptions appends options passed to embed.NewResolver after
// the wired defaults, so tests can replace AWS clients.
func WithResolverOptions(opts ...embed.Option) Option {
	return func(o *buildOptions) { o.resolver = append(o.resolver, opts...) }
}

// Build loads AWS configuration, applies SSM overrides, validates cfg and
// wires the resolver, audit logger, notifier, metrics publisher and rate
// limiter. cfg is modified in place by SSM overrides.
func Build(ctx context.Context, cfg *config.Config, opts ...Option) (*Relay, error) {
	o := buildOptions{
		logOutput: os.Stdout,
		stream:    defaultStreamName(),
		source:    "configuration",
	}
	for _, opt := range opts {
		opt(&o)
	}

	var awsCfg aws.Config
	if o.awsConfig != nil {
		awsCfg = *o.awsConfig
	} else {
		loaded, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		awsCfg = loaded
	}

	if cfg.SSMPath != "" {
		client := o.ssm
		if client == nil {
			client = ssm.NewFromConfig(awsCfg)
		}
		n, err := cfg.ApplySSM(ctx, client)
		if err != nil {
			return nil, err
		}
		log.Printf("INFO: applied %d settings from SSM path %s", n, cfg.SSMPath)
	}

	if err := checkConfig(cfg, o.source); err != nil {
		return nil, err
	}

	logger, err := NewAuditLogger(cfg, awsCfg, o.logOutput, o.stream)
	if err != nil {
		return nil, err
	}

	resolverOpts := []embed.Option{
		embed.WithSTSClient(embed.NewSTSClient(awsCfg)),
		embed.WithQuickSightFactory(embed.NewQuickSightFactory(awsCfg)),
		embed.WithLogger(logger),
		embed.WithNotifier(NewNotifier(cfg, awsCfg)),
		embed.WithMetrics(NewPublisher(cfg, awsCfg)),
	}
	resolver, err := embed.NewResolver(cfg.Embed(), append(resolverOpts, o.resolver...)...)
	if err != nil {
		return nil, err
	}

	r := &Relay{Config: cfg, AWS: awsCfg, Resolver: resolver}

	limiter, closer, err := newLimiter(cfg, awsCfg, o.dynamodb)
	if err != nil {
		return nil, err
	}
	r.Limiter = limiter
	if closer != nil {
		r.closers = append(r.closers, closer)
	}
	return r, nil
}

// checkConfig logs warnings and fails on validation errors.
func checkConfig(cfg *config.Config, source string) error {
	result := config.Validate(cfg, source)
	var errs []string
	for _, issue := range result.Issues {
		switch issue.Severity {
		case config.SeverityWarning:
			log.Printf("WARNING: config %s: %s", issue.Location, issue.Message)
		case config.SeverityError:
			errs = append(errs, issue.Location+": "+issue.Message)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid %s: %s", source, strings.Join(errs, "; "))
	}
	return nil
}

// NewAuditLogger selects the audit destination: CloudWatch Logs when a log
// group is configured, signed JSON lines when a signing key is set, plain
// JSON lines otherwise. A signing key also signs CloudWatch entries.
func NewAuditLogger(cfg *config.Config, awsCfg aws.Config, w io.Writer, stream string) (logging.Logger, error) {
	var sign *logging.SignatureConfig
	if cfg.Audit.SigningKey != "" {
		key, err := hex.DecodeString(cfg.Audit.SigningKey)
		if err != nil {
			return nil, fmt.Errorf("decode audit signing key: %w", err)
		}
		sign = &logging.SignatureConfig{KeyID: cfg.Audit.SigningKeyID, SecretKey: key}
		if err := sign.Validate(); err != nil {
			return nil, err
		}
	}

	switch {
	case cfg.Audit.CloudWatchLogGroup != "":
		if cfg.Audit.CloudWatchStream != "" {
			stream = cfg.Audit.CloudWatchStream
		}
		return logging.NewCloudWatchLogger(awsCfg, &logging.CloudWatchConfig{
			LogGroupName:  cfg.Audit.CloudWatchLogGroup,
			LogStreamName: stream,
			SignConfig:    sign,
		}), nil
	case sign != nil:
		return logging.NewSignedLogger(w, sign), nil
	default:
		return logging.NewJSONLogger(w), nil
	}
}

// NewNotifier returns an SNS notifier when a topic is configured.
func NewNotifier(cfg *config.Config, awsCfg aws.Config) notification.Notifier {
	if cfg.Notifications.SNSTopicARN == "" {
		return &notification.NoopNotifier{}
	}
	return notification.NewSNSNotifier(awsCfg, cfg.Notifications.SNSTopicARN)
}

// NewPublisher returns a CloudWatch metrics publisher when metrics are
// enabled.
func NewPublisher(cfg *config.Config, awsCfg aws.Config) metrics.Publisher {
	if !cfg.Metrics.Enabled {
		return metrics.NopPublisher{}
	}
	return metrics.NewCloudWatchPublisher(awsCfg, cfg.Metrics.Namespace)
}

func newLimiter(cfg *config.Config, awsCfg aws.Config, client ratelimit.DynamoDBAPI) (ratelimit.RateLimiter, io.Closer, error) {
	limits, ok := cfg.Limiter()
	if !ok {
		return ratelimit.Unlimited{}, nil, nil
	}
	if cfg.RateLimit.Table != "" {
		if client == nil {
			client = dynamodb.NewFromConfig(awsCfg)
		}
		l, err := ratelimit.NewDynamoDBRateLimiter(client, cfg.RateLimit.Table, limits)
		if err != nil {
			return nil, nil, err
		}
		return l, nil, nil
	}
	l, err := ratelimit.NewMemoryRateLimiterWithCleanup(limits, limits.Window)
	if err != nil {
		return nil, nil, err
	}
	return l, l, nil
}

// defaultStreamName is the Lambda function name or the host name.
func defaultStreamName() string {
	if fn := os.Getenv("AWS_LAMBDA_FUNCTION_NAME"); fn != "" {
		return fn
	}
	if host, err := os.Hostname(); err == nil {
		return host
	}
	return "embedrelay"
}
