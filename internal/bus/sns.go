package bus

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/song-migrations/internal/shared"
)

type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSPublisher publishes to a single SNS topic. The topic name travels as a message attribute.
type SNSPublisher struct {
	client   snsAPI
	topicARN string
	logger   *log.Logger
}

// NewSNSPublisher loads the default AWS config for region.
func NewSNSPublisher(ctx context.Context, region, topicARN string, logger *log.Logger) (*SNSPublisher, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return newSNSPublisher(sns.NewFromConfig(cfg), topicARN, logger), nil
}

func newSNSPublisher(client snsAPI, topicARN string, logger *log.Logger) *SNSPublisher {
	if logger == nil {
		logger = log.Default()
	}
	return &SNSPublisher{
		client:   client,
		topicARN: topicARN,
		logger:   shared.WithLogger(logger, "component", "bus", "driver", "sns"),
	}
}

func (p *SNSPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	out, err := p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(payload)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"topic": {DataType: aws.String("String"), StringValue: aws.String(topic)},
		},
	})
	if err != nil {
		return publishErr("sns", err)
	}
	p.logger.Debug("message published", "topic", topic, "message_id", aws.ToString(out.MessageId))
	return nil
}
