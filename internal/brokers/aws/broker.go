// Package aws publishes activations to an SQS queue, an SNS topic, or both.
package aws

import (
	"context"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snsTypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"scheduler-webhook/internal/brokers"
	"scheduler-webhook/internal/brokers/base"
	"scheduler-webhook/internal/common/errors"
	"scheduler-webhook/internal/common/logging"
)

// SQSAPI is the subset of the SQS client the broker calls
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
}

// SNSAPI is the subset of the SNS client the broker calls
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
	GetTopicAttributes(ctx context.Context, params *sns.GetTopicAttributesInput, optFns ...func(*sns.Options)) (*sns.GetTopicAttributesOutput, error)
}

type Broker struct {
	*base.BaseBroker
	sqsClient SQSAPI
	snsClient SNSAPI
}

// NewBroker loads the AWS configuration and builds the SQS and SNS clients.
// Static credentials are used when the config carries them.
func NewBroker(config *Config) (*Broker, error) {
	baseBroker, err := base.NewBaseBroker("aws", config)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
	defer cancel()

	opts := []func(*awsConfig.LoadOptions) error{
		awsConfig.WithRegion(config.Region),
		awsConfig.WithRetryMaxAttempts(config.RetryMax),
	}
	if config.AccessKeyID != "" {
		opts = append(opts, awsConfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			config.AccessKeyID,
			config.SecretAccessKey,
			config.SessionToken,
		)))
	}

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.ConnectionError("failed to load AWS config", err)
	}

	sqsClient := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if config.Endpoint != "" {
			o.BaseEndpoint = aws.String(config.Endpoint)
		}
	})
	snsClient := sns.NewFromConfig(awsCfg, func(o *sns.Options) {
		if config.Endpoint != "" {
			o.BaseEndpoint = aws.String(config.Endpoint)
		}
	})

	return &Broker{
		BaseBroker: baseBroker,
		sqsClient:  sqsClient,
		snsClient:  snsClient,
	}, nil
}

// NewBrokerWithClients creates a broker over existing clients (for testing)
func NewBrokerWithClients(config *Config, sqsClient SQSAPI, snsClient SNSAPI) (*Broker, error) {
	baseBroker, err := base.NewBaseBroker("aws", config)
	if err != nil {
		return nil, err
	}
	return &Broker{BaseBroker: baseBroker, sqsClient: sqsClient, snsClient: snsClient}, nil
}

// Publish sends message to the configured queue and topic. When both are
// configured the queue is written first and an SQS failure skips SNS.
func (b *Broker) Publish(ctx context.Context, message *brokers.Message) error {
	config := b.GetConfig().(*Config)

	if config.QueueURL != "" {
		if err := b.publishToSQS(ctx, message, config); err != nil {
			return err
		}
	}
	if config.TopicArn != "" {
		if err := b.publishToSNS(ctx, message, config.TopicArn); err != nil {
			return err
		}
	}
	return nil
}

func (b *Broker) publishToSQS(ctx context.Context, message *brokers.Message, config *Config) error {
	if err := base.StandardHealthCheck(b.sqsClient, "SQS"); err != nil {
		return err
	}

	messageAttributes := make(map[string]types.MessageAttributeValue, len(message.Headers)+2)
	if message.MessageID != "" {
		messageAttributes["MessageID"] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(message.MessageID),
		}
	}
	for key, value := range message.Headers {
		messageAttributes["Header_"+key] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(value),
		}
	}
	messageAttributes["Timestamp"] = types.MessageAttributeValue{
		DataType:    aws.String("Number"),
		StringValue: aws.String(strconv.FormatInt(message.Timestamp.UnixNano(), 10)),
	}

	input := &sqs.SendMessageInput{
		QueueUrl:          aws.String(config.QueueURL),
		MessageBody:       aws.String(string(message.Body)),
		MessageAttributes: messageAttributes,
	}
	if config.IsFIFO() {
		group := message.Headers["trigger_id"]
		if group == "" {
			group = "activations"
		}
		input.MessageGroupId = aws.String(group)
		if message.MessageID != "" {
			input.MessageDeduplicationId = aws.String(message.MessageID)
		}
	}

	result, err := b.sqsClient.SendMessage(ctx, input)
	if err != nil {
		return errors.ConnectionError("failed to send message to SQS", err).
			WithContext("queue_url", config.QueueURL)
	}

	b.GetLogger().Debug("Message sent to SQS",
		logging.Field{Key: "message_id", Value: message.MessageID},
		logging.Field{Key: "sqs_message_id", Value: aws.ToString(result.MessageId)},
		logging.Field{Key: "queue_url", Value: config.QueueURL},
	)
	return nil
}

func (b *Broker) publishToSNS(ctx context.Context, message *brokers.Message, topicArn string) error {
	if err := base.StandardHealthCheck(b.snsClient, "SNS"); err != nil {
		return err
	}

	messageAttributes := make(map[string]snsTypes.MessageAttributeValue, len(message.Headers)+1)
	if message.MessageID != "" {
		messageAttributes["MessageID"] = snsTypes.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(message.MessageID),
		}
	}
	for key, value := range message.Headers {
		messageAttributes["Header_"+key] = snsTypes.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(value),
		}
	}

	result, err := b.snsClient.Publish(ctx, &sns.PublishInput{
		TopicArn:          aws.String(topicArn),
		Message:           aws.String(string(message.Body)),
		MessageAttributes: messageAttributes,
	})
	if err != nil {
		return errors.ConnectionError("failed to publish message to SNS", err).
			WithContext("topic_arn", topicArn)
	}

	b.GetLogger().Debug("Message published to SNS",
		logging.Field{Key: "message_id", Value: message.MessageID},
		logging.Field{Key: "sns_message_id", Value: aws.ToString(result.MessageId)},
		logging.Field{Key: "topic_arn", Value: topicArn},
	)
	return nil
}

// Health reads the attributes of each configured destination
func (b *Broker) Health(ctx context.Context) error {
	config := b.GetConfig().(*Config)

	if config.QueueURL != "" {
		if err := base.StandardHealthCheck(b.sqsClient, "SQS"); err != nil {
			return err
		}
		_, err := b.sqsClient.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
			QueueUrl:       aws.String(config.QueueURL),
			AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameQueueArn},
		})
		if err != nil {
			return errors.ConnectionError("SQS health check failed", err)
		}
	}
	if config.TopicArn != "" {
		if err := base.StandardHealthCheck(b.snsClient, "SNS"); err != nil {
			return err
		}
		_, err := b.snsClient.GetTopicAttributes(ctx, &sns.GetTopicAttributesInput{
			TopicArn: aws.String(config.TopicArn),
		})
		if err != nil {
			return errors.ConnectionError("SNS health check failed", err)
		}
	}
	return nil
}

// Close drops the clients; the SDK keeps no connections to release
func (b *Broker) Close() error {
	b.sqsClient = nil
	b.snsClient = nil
	return nil
}
