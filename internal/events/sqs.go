package events

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// SQSAPI is the part of *sqs.Client the publisher calls.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSPublisher forwards outbox entries to an SQS queue for other services.
type SQSPublisher struct {
	client   SQSAPI
	queueURL string
}

func NewSQSPublisher(client SQSAPI, queueURL string) *SQSPublisher {
	if client == nil {
		panic("events: SQS client cannot be nil")
	}
	if queueURL == "" {
		panic("events: SQS queueURL cannot be empty")
	}
	return &SQSPublisher{client: client, queueURL: queueURL}
}

// Handle sends the raw payload. The outbox id doubles as a deduplication
// attribute for consumers.
func (p *SQSPublisher) Handle(ctx context.Context, entry OutboxEntry) error {
	_, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(entry.Payload)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event_id":   {DataType: aws.String("String"), StringValue: aws.String(entry.ID.String())},
			"event_type": {DataType: aws.String("String"), StringValue: aws.String(entry.Type)},
			"aggregate":  {DataType: aws.String("String"), StringValue: aws.String(entry.Aggregate)},
		},
	})
	if err != nil {
		return fmt.Errorf("events: send %s to SQS: %w", entry.Type, err)
	}
	return nil
}
