// Package sns implements an AWS SNS notifier.
package sns

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// API is the subset of the SNS client used by Publisher.
type API interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Publisher sends plain-text messages to an SNS topic ARN.
type Publisher struct {
	api API
}

// New wraps an SNS API client.
func New(api API) *Publisher {
	return &Publisher{api: api}
}

// Dial loads the default AWS configuration chain and builds an SNS client.
// An empty region defers to the environment.
func Dial(ctx context.Context, region string) (*Publisher, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return New(sns.NewFromConfig(cfg)), nil
}

// Publish sends message to the topic ARN and returns the SNS message ID.
func (p *Publisher) Publish(ctx context.Context, topicARN string, message string) (string, error) {
	if p.api == nil {
		return "", errors.New("sns client is not configured")
	}
	if topicARN == "" {
		return "", errors.New("sns topic arn is not configured")
	}
	out, err := p.api.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(topicARN),
		Message:  aws.String(message),
	})
	if err != nil {
		return "", fmt.Errorf("publish to %s: %w", topicARN, err)
	}
	return aws.ToString(out.MessageId), nil
}
