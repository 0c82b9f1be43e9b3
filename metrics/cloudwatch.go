package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// DefaultPublishTimeout bounds each PutMetricData call.
const DefaultPublishTimeout = 3 * time.Second

// cloudwatchMetricsAPI defines the CloudWatch operations used by CloudWatchPublisher.
type cloudwatchMetricsAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchPublisher publishes resolutions with PutMetricData.
type CloudWatchPublisher struct {
	client    cloudwatchMetricsAPI
	namespace string
	timeout   time.Duration
}

// NewCloudWatchPublisher creates a publisher from AWS configuration.
// An empty namespace selects DefaultNamespace.
func NewCloudWatchPublisher(cfg aws.Config, namespace string) *CloudWatchPublisher {
	return newCloudWatchPublisherWithClient(cloudwatch.NewFromConfig(cfg), namespace)
}

func newCloudWatchPublisherWithClient(client cloudwatchMetricsAPI, namespace string) *CloudWatchPublisher {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &CloudWatchPublisher{
		client:    client,
		namespace: namespace,
		timeout:   DefaultPublishTimeout,
	}
}

// Publish sends the data points for r. The call is detached from ctx's
// cancellation so a client disconnect does not drop the data point.
func (p *CloudWatchPublisher) Publish(ctx context.Context, r Resolution) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	_, err := p.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(p.namespace),
		MetricData: datums(r),
	})
	if err != nil {
		return fmt.Errorf("put metric data: %w", err)
	}
	return nil
}

func datums(r Resolution) []types.MetricDatum {
	ts := r.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	data := []types.MetricDatum{
		{
			MetricName: aws.String(MetricEmbedRequests),
			Dimensions: []types.Dimension{dimension(DimensionOutcome, r.Outcome)},
			Unit:       types.StandardUnitCount,
			Value:      aws.Float64(1),
			Timestamp:  aws.Time(ts),
		},
		{
			MetricName: aws.String(MetricEmbedLatency),
			Dimensions: []types.Dimension{dimension(DimensionOutcome, r.Outcome)},
			Unit:       types.StandardUnitMilliseconds,
			Value:      aws.Float64(float64(r.Duration.Milliseconds())),
			Timestamp:  aws.Time(ts),
		},
	}
	if r.ErrorCode != "" {
		data = append(data, types.MetricDatum{
			MetricName: aws.String(MetricEmbedErrors),
			Dimensions: []types.Dimension{dimension(DimensionErrorCode, r.ErrorCode)},
			Unit:       types.StandardUnitCount,
			Value:      aws.Float64(1),
			Timestamp:  aws.Time(ts),
		})
	}
	if r.Registered {
		data = append(data, types.MetricDatum{
			MetricName: aws.String(MetricUserRegistrations),
			Unit:       types.StandardUnitCount,
			Value:      aws.Float64(1),
			Timestamp:  aws.Time(ts),
		})
	}
	return data
}

func dimension(name, value string) types.Dimension {
	return types.Dimension{Name: aws.String(name), Value: aws.String(value)}
}
