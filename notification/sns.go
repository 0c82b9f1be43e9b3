package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// snsAPI defines the SNS operations used by SNSNotifier.
type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSNotifier publishes events to an SNS topic as JSON. The "event_type"
// and "namespace" message attributes allow subscription filter policies.
type SNSNotifier struct {
	client   snsAPI
	topicARN string
}

// NewSNSNotifier creates an SNSNotifier from AWS configuration.
func NewSNSNotifier(cfg aws.Config, topicARN string) *SNSNotifier {
	return newSNSNotifierWithClient(sns.NewFromConfig(cfg), topicARN)
}

func newSNSNotifierWithClient(client snsAPI, topicARN string) *SNSNotifier {
	return &SNSNotifier{
		client:   client,
		topicARN: topicARN,
	}
}

// Notify publishes the event to the configured topic.
func (n *SNSNotifier) Notify(ctx context.Context, event *Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	attrs := map[string]types.MessageAttributeValue{
		"event_type": stringAttribute(event.Type.String()),
	}
	if event.Namespace != "" {
		attrs["namespace"] = stringAttribute(event.Namespace)
	}

	_, err = n.client.Publish(ctx, &sns.PublishInput{
		TopicArn:          aws.String(n.topicARN),
		Subject:           aws.String(subject(event)),
		Message:           aws.String(string(payload)),
		MessageAttributes: attrs,
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}

func stringAttribute(v string) types.MessageAttributeValue {
	return types.MessageAttributeValue{
		DataType:    aws.String("String"),
		StringValue: aws.String(v),
	}
}

// subject is shown by email subscriptions; SNS caps it at 100 characters.
func subject(event *Event) string {
	var s string
	switch event.Type {
	case EventUserRegistered:
		s = fmt.Sprintf("QuickSight user registered: %s", event.User)
	case EventUserRegistrationFailed:
		s = fmt.Sprintf("QuickSight user registration failed: %s", event.User)
	default:
		s = event.Type.String()
	}
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}
