package metrics

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	cwltypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	relayerrors "github.com/byteness/embedrelay/errors"
)

// DefaultAlarmTopicName is the SNS topic alarms notify by default.
const DefaultAlarmTopicName = "embedrelay-alarms"

// MetricAuditFailures is emitted by the audit log metric filter.
const MetricAuditFailures = "AuditFailures"

type cloudwatchAlarmsAPI interface {
	PutMetricAlarm(ctx context.Context, params *cloudwatch.PutMetricAlarmInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricAlarmOutput, error)
}

type snsTopicAPI interface {
	CreateTopic(ctx context.Context, params *sns.CreateTopicInput, optFns ...func(*sns.Options)) (*sns.CreateTopicOutput, error)
	Subscribe(ctx context.Context, params *sns.SubscribeInput, optFns ...func(*sns.Options)) (*sns.SubscribeOutput, error)
}

type metricFilterAPI interface {
	PutMetricFilter(ctx context.Context, params *cloudwatchlogs.PutMetricFilterInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutMetricFilterOutput, error)
}

// AlarmConfig describes a CloudWatch alarm on a relay metric.
type AlarmConfig struct {
	Name              string                     `json:"name"`
	Description       string                     `json:"description"`
	MetricName        string                     `json:"metric_name"`
	Dimensions        map[string]string          `json:"dimensions,omitempty"`
	Statistic         cwtypes.Statistic          `json:"statistic"`
	Period            int32                      `json:"period"`
	EvaluationPeriods int32                      `json:"evaluation_periods"`
	Threshold         float64                    `json:"threshold"`
	Comparison        cwtypes.ComparisonOperator `json:"comparison_operator"`
}

// MonitorOptions configures Monitor.Setup.
type MonitorOptions struct {
	Namespace     string // Metric namespace, DefaultNamespace when empty
	TopicName     string // SNS topic for alarm actions, DefaultAlarmTopicName when empty
	Email         string // Optional email subscription
	AuditLogGroup string // Optional audit log group to attach the failure metric filter to
	AlarmNames    []string
}

// MonitorResult reports what Setup created.
type MonitorResult struct {
	TopicARN      string   `json:"topic_arn"`
	AlarmsCreated []string `json:"alarms_created"`
	FilterCreated string   `json:"filter_created,omitempty"`
	AlarmsSkipped []string `json:"alarms_skipped,omitempty"`
	Errors        []string `json:"errors,omitempty"`
}

// Monitor provisions alarms for relay metrics.
type Monitor struct {
	cloudwatch cloudwatchAlarmsAPI
	sns        snsTopicAPI
	logs       metricFilterAPI
}

// NewMonitor creates a Monitor from AWS configuration.
func NewMonitor(cfg aws.Config) *Monitor {
	return newMonitorWithClients(cloudwatch.NewFromConfig(cfg), sns.NewFromConfig(cfg), cloudwatchlogs.NewFromConfig(cfg))
}

func newMonitorWithClients(cw cloudwatchAlarmsAPI, topics snsTopicAPI, logs metricFilterAPI) *Monitor {
	return &Monitor{cloudwatch: cw, sns: topics, logs: logs}
}

// DefaultAlarms returns the recommended alarms.
func DefaultAlarms() []AlarmConfig {
	return []AlarmConfig{
		{
			Name:              "embedrelay-credential-exchange-failures",
			Description:       "STS rejected web identity tokens; check the role trust policy",
			MetricName:        MetricEmbedErrors,
			Dimensions:        map[string]string{DimensionErrorCode: relayerrors.ErrCodeCredentialExchange},
			Statistic:         cwtypes.StatisticSum,
			Period:            300,
			EvaluationPeriods: 1,
			Threshold:         5,
			Comparison:        cwtypes.ComparisonOperatorGreaterThanOrEqualToThreshold,
		},
		{
			Name:              "embedrelay-registration-failures",
			Description:       "QuickSight user registration is failing",
			MetricName:        MetricEmbedErrors,
			Dimensions:        map[string]string{DimensionErrorCode: relayerrors.ErrCodeRegistration},
			Statistic:         cwtypes.StatisticSum,
			Period:            300,
			EvaluationPeriods: 1,
			Threshold:         1,
			Comparison:        cwtypes.ComparisonOperatorGreaterThanOrEqualToThreshold,
		},
		{
			Name:              "embedrelay-embed-url-failures",
			Description:       "QuickSight is refusing to mint embed URLs",
			MetricName:        MetricEmbedErrors,
			Dimensions:        map[string]string{DimensionErrorCode: relayerrors.ErrCodeEmbedURL},
			Statistic:         cwtypes.StatisticSum,
			Period:            300,
			EvaluationPeriods: 2,
			Threshold:         3,
			Comparison:        cwtypes.ComparisonOperatorGreaterThanOrEqualToThreshold,
		},
		{
			Name:              "embedrelay-latency",
			Description:       "Average embed URL resolution latency above 5 seconds",
			MetricName:        MetricEmbedLatency,
			Dimensions:        map[string]string{DimensionOutcome: "issued"},
			Statistic:         cwtypes.StatisticAverage,
			Period:            300,
			EvaluationPeriods: 3,
			Threshold:         5000,
			Comparison:        cwtypes.ComparisonOperatorGreaterThanThreshold,
		},
	}
}

// AlarmNames returns the names of DefaultAlarms.
func AlarmNames() []string {
	alarms := DefaultAlarms()
	names := make([]string, 0, len(alarms))
	for _, a := range alarms {
		names = append(names, a.Name)
	}
	return names
}

// CreateOrGetTopic returns the ARN of the named topic, creating it if needed.
// CreateTopic is idempotent.
func (m *Monitor) CreateOrGetTopic(ctx context.Context, name string) (string, error) {
	if name == "" {
		name = DefaultAlarmTopicName
	}
	out, err := m.sns.CreateTopic(ctx, &sns.CreateTopicInput{Name: aws.String(name)})
	if err != nil {
		return "", fmt.Errorf("failed to create SNS topic: %w", err)
	}
	if out.TopicArn == nil {
		return "", fmt.Errorf("SNS topic created but no ARN returned")
	}
	return *out.TopicArn, nil
}

// SubscribeEmail adds a pending email subscription to the topic.
func (m *Monitor) SubscribeEmail(ctx context.Context, topicARN, email string) error {
	_, err := m.sns.Subscribe(ctx, &sns.SubscribeInput{
		TopicArn: aws.String(topicARN),
		Protocol: aws.String("email"),
		Endpoint: aws.String(email),
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe email: %w", err)
	}
	return nil
}

// CreateAlarm creates or updates an alarm.
func (m *Monitor) CreateAlarm(ctx context.Context, namespace string, alarm AlarmConfig, topicARN string) error {
	input := &cloudwatch.PutMetricAlarmInput{
		AlarmName:          aws.String(alarm.Name),
		AlarmDescription:   aws.String(alarm.Description),
		MetricName:         aws.String(alarm.MetricName),
		Namespace:          aws.String(namespace),
		Statistic:          alarm.Statistic,
		Period:             aws.Int32(alarm.Period),
		EvaluationPeriods:  aws.Int32(alarm.EvaluationPeriods),
		Threshold:          aws.Float64(alarm.Threshold),
		ComparisonOperator: alarm.Comparison,
		TreatMissingData:   aws.String("notBreaching"),
	}
	for name, value := range alarm.Dimensions {
		input.Dimensions = append(input.Dimensions, cwtypes.Dimension{Name: aws.String(name), Value: aws.String(value)})
	}
	if topicARN != "" {
		input.AlarmActions = []string{topicARN}
	}

	if _, err := m.cloudwatch.PutMetricAlarm(ctx, input); err != nil {
		return fmt.Errorf("failed to create alarm %s: %w", alarm.Name, err)
	}
	return nil
}

// CreateAuditFailureFilter counts failed resolutions in the audit log
// group, covering deployments that ship audit logs but not metrics.
// Both plain and signed entries are matched.
func (m *Monitor) CreateAuditFailureFilter(ctx context.Context, logGroup, namespace string) (string, error) {
	name := "embedrelay-audit-failures"
	_, err := m.logs.PutMetricFilter(ctx, &cloudwatchlogs.PutMetricFilterInput{
		LogGroupName:  aws.String(logGroup),
		FilterName:    aws.String(name),
		FilterPattern: aws.String(`{ ($.outcome = "failed") || ($.entry.outcome = "failed") }`),
		MetricTransformations: []cwltypes.MetricTransformation{{
			MetricName:      aws.String(MetricAuditFailures),
			MetricNamespace: aws.String(namespace),
			MetricValue:     aws.String("1"),
			DefaultValue:    aws.Float64(0),
		}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create metric filter %s: %w", name, err)
	}
	return name, nil
}

// Setup creates the topic, optional email subscription, optional audit
// filter and the selected alarms. Per-resource failures are collected in
// the result; only a topic failure aborts.
func (m *Monitor) Setup(ctx context.Context, opts MonitorOptions) (*MonitorResult, error) {
	namespace := opts.Namespace
	if namespace == "" {
		namespace = DefaultNamespace
	}

	topicARN, err := m.CreateOrGetTopic(ctx, opts.TopicName)
	if err != nil {
		return nil, err
	}
	result := &MonitorResult{TopicARN: topicARN, AlarmsCreated: []string{}}

	if opts.Email != "" {
		if err := m.SubscribeEmail(ctx, topicARN, opts.Email); err != nil {
			result.Errors = append(result.Errors, err.Error())
		}
	}

	if opts.AuditLogGroup != "" {
		name, err := m.CreateAuditFailureFilter(ctx, opts.AuditLogGroup, namespace)
		if err != nil {
			result.Errors = append(result.Errors, describeSetupError(err))
		} else {
			result.FilterCreated = name
		}
	}

	requested := make(map[string]bool, len(opts.AlarmNames))
	for _, name := range opts.AlarmNames {
		requested[name] = true
	}

	for _, alarm := range DefaultAlarms() {
		if len(requested) > 0 && !requested[alarm.Name] {
			result.AlarmsSkipped = append(result.AlarmsSkipped, alarm.Name)
			continue
		}
		if err := m.CreateAlarm(ctx, namespace, alarm, topicARN); err != nil {
			result.Errors = append(result.Errors, describeSetupError(err))
			continue
		}
		result.AlarmsCreated = append(result.AlarmsCreated, alarm.Name)
	}

	return result, nil
}

func describeSetupError(err error) string {
	switch relayerrors.APIErrorCode(err) {
	case "AccessDenied", relayerrors.AWSCodeAccessDenied:
		return fmt.Sprintf("access denied: %v", err)
	default:
		return err.Error()
	}
}
