// internal/common/aws/sns.go
package aws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	"swipestats-workers/internal/models"
)

const eventTypeProfileIngested = "profile.ingested"

// SNSService is the subset of the SNS client the publisher needs.
type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// ProfileEventPublisher sends ingest events to one SNS topic.
type ProfileEventPublisher struct {
	client   SNSService
	topicARN string
}

func NewProfileEventPublisher(ctx context.Context, region, topicARN string) (*ProfileEventPublisher, error) {
	if topicARN == "" {
		return nil, errors.New("sns topic ARN is required")
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewProfileEventPublisherWithClient(sns.NewFromConfig(cfg), topicARN), nil
}

func NewProfileEventPublisherWithClient(client SNSService, topicARN string) *ProfileEventPublisher {
	return &ProfileEventPublisher{client: client, topicARN: topicARN}
}

func (p *ProfileEventPublisher) TopicARN() string {
	return p.topicARN
}

// NotifyIngested publishes ev as JSON. eventType and platform are set as message attributes so
// subscribers can filter without decoding the body.
func (p *ProfileEventPublisher) NotifyIngested(ctx context.Context, ev models.ProfileIngestedEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode ingest event: %w", err)
	}

	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: awssdk.String(p.topicARN),
		Message:  awssdk.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"eventType": {DataType: awssdk.String("String"), StringValue: awssdk.String(eventTypeProfileIngested)},
			"platform":  {DataType: awssdk.String("String"), StringValue: awssdk.String(string(ev.Platform))},
		},
	})
	if err != nil {
		return fmt.Errorf("publish ingest event for %s: %w", ev.ProfileID, err)
	}
	return nil
}
