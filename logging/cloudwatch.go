package logging

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
)

// DefaultCloudWatchTimeout bounds each PutLogEvents round trip.
const DefaultCloudWatchTimeout = 5 * time.Second

// CloudWatchConfig holds configuration for CloudWatch log forwarding.
type CloudWatchConfig struct {
	LogGroupName  string           // CloudWatch log group name
	LogStreamName string           // CloudWatch log stream name (typically host or function name)
	SignConfig    *SignatureConfig // Signature config for signing entries (nil to disable)
	Timeout       time.Duration    // Per-call timeout, DefaultCloudWatchTimeout when zero
}

// CloudWatchAPI defines the CloudWatch Logs operations used.
type CloudWatchAPI interface {
	PutLogEvents(ctx context.Context, params *cloudwatchlogs.PutLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error)
	CreateLogStream(ctx context.Context, params *cloudwatchlogs.CreateLogStreamInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogStreamOutput, error)
}

// CloudWatchLogger implements Logger by forwarding entries to CloudWatch
// Logs. Delivery failures are reported with log.Printf and never surface
// to the request path.
type CloudWatchLogger struct {
	client CloudWatchAPI
	config *CloudWatchConfig
	now    func() time.Time

	mu            sync.Mutex
	streamCreated bool
}

// NewCloudWatchLogger creates a CloudWatch logger from AWS config.
func NewCloudWatchLogger(awsCfg aws.Config, config *CloudWatchConfig) *CloudWatchLogger {
	return NewCloudWatchLoggerWithClient(cloudwatchlogs.NewFromConfig(awsCfg), config)
}

// NewCloudWatchLoggerWithClient creates a CloudWatch logger with a custom client.
func NewCloudWatchLoggerWithClient(client CloudWatchAPI, config *CloudWatchConfig) *CloudWatchLogger {
	return &CloudWatchLogger{
		client: client,
		config: config,
		now:    time.Now,
	}
}

// LogEmbed forwards an embed entry to CloudWatch.
func (l *CloudWatchLogger) LogEmbed(entry EmbedLogEntry) {
	l.writeEntry(entry)
}

// LogRegistration forwards a registration entry to CloudWatch.
func (l *CloudWatchLogger) LogRegistration(entry RegistrationLogEntry) {
	l.writeEntry(entry)
}

func (l *CloudWatchLogger) writeEntry(entry any) {
	var payload any = entry
	if l.config.SignConfig != nil {
		signed, err := NewSignedEntry(entry, l.config.SignConfig)
		if err != nil {
			log.Printf("WARNING: cloudwatch audit signing failed, sending unsigned entry: %v", err)
		} else {
			payload = signed
		}
	}

	message, err := json.Marshal(payload)
	if err != nil {
		log.Printf("ERROR: cloudwatch audit marshal failed: %v", err)
		return
	}

	if err := l.putLogEvent(string(message)); err != nil {
		log.Printf("WARNING: cloudwatch PutLogEvents to %s/%s failed: %v",
			l.config.LogGroupName, l.config.LogStreamName, err)
	}
}

// putLogEvent sends one event, creating the log stream on first use if
// CloudWatch reports it missing.
func (l *CloudWatchLogger) putLogEvent(message string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	timeout := l.config.Timeout
	if timeout <= 0 {
		timeout = DefaultCloudWatchTimeout
	}
	// Detached from any request context: the entry must outlive the request.
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	input := &cloudwatchlogs.PutLogEventsInput{
		LogGroupName:  aws.String(l.config.LogGroupName),
		LogStreamName: aws.String(l.config.LogStreamName),
		LogEvents: []types.InputLogEvent{{
			Message:   aws.String(message),
			Timestamp: aws.Int64(l.now().UnixMilli()),
		}},
	}

	_, err := l.client.PutLogEvents(ctx, input)
	var notFound *types.ResourceNotFoundException
	if err == nil || l.streamCreated || !errors.As(err, &notFound) {
		return err
	}

	if err := l.createStream(ctx); err != nil {
		return err
	}
	_, err = l.client.PutLogEvents(ctx, input)
	return err
}

func (l *CloudWatchLogger) createStream(ctx context.Context) error {
	_, err := l.client.CreateLogStream(ctx, &cloudwatchlogs.CreateLogStreamInput{
		LogGroupName:  aws.String(l.config.LogGroupName),
		LogStreamName: aws.String(l.config.LogStreamName),
	})
	var exists *types.ResourceAlreadyExistsException
	if err != nil && !errors.As(err, &exists) {
		return err
	}
	l.streamCreated = true
	return nil
}
