package iot

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/cenkalti/backoff/v5"

	"smart_parking_lot/internal/logging"
	"smart_parking_lot/internal/service"
)

// SQSAPI is the subset of the SQS client used by the consumer.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// EventHandler processes one message body. See service.GateService.
type EventHandler interface {
	HandleGateEvent(ctx context.Context, body string) error
}

type SQSConsumer struct {
	client   SQSAPI
	queueURL string
	handler  EventHandler

	waitSeconds int32
	newBackOff  func() backoff.BackOff
}

func NewSQSConsumer(client SQSAPI, queueURL string, handler EventHandler) *SQSConsumer {
	return &SQSConsumer{
		client:      client,
		queueURL:    queueURL,
		handler:     handler,
		waitSeconds: 20,
		newBackOff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.InitialInterval = time.Second
			bo.MaxInterval = 30 * time.Second
			return bo
		},
	}
}

// Start long-polls the queue until ctx is cancelled.
func (c *SQSConsumer) Start(ctx context.Context) {
	logging.Infof(ctx, "SQSConsumer: listening on %s", c.queueURL)
	bo := c.newBackOff()
	for {
		if ctx.Err() != nil {
			logging.Infof(ctx, "SQSConsumer: context cancelled, stopping")
			return
		}

		result, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(c.queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     c.waitSeconds,
			VisibilityTimeout:   60,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			wait := bo.NextBackOff()
			logging.Errorf(ctx, "SQSConsumer: receive failed: %v, retrying in %s", err, wait)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				logging.Infof(ctx, "SQSConsumer: context cancelled while waiting to retry")
				return
			}
			continue
		}
		bo.Reset()

		if len(result.Messages) == 0 {
			continue
		}
		logging.Debugf(ctx, "SQSConsumer: received %d message(s)", len(result.Messages))
		c.process(ctx, result.Messages)
	}
}

func (c *SQSConsumer) process(ctx context.Context, messages []types.Message) {
	for _, message := range messages {
		if message.Body == nil {
			logging.Warnf(ctx, "SQSConsumer: empty message body, deleting")
			c.deleteMessage(ctx, message.ReceiptHandle)
			continue
		}

		err := c.handler.HandleGateEvent(ctx, *message.Body)
		switch {
		case err == nil:
			c.deleteMessage(ctx, message.ReceiptHandle)
		case errors.Is(err, service.ErrMalformedEvent):
			logging.Warnf(ctx, "SQSConsumer: dropping message %s: %v", aws.ToString(message.MessageId), err)
			c.deleteMessage(ctx, message.ReceiptHandle)
		default:
			logging.Errorf(ctx, "SQSConsumer: message %s failed: %v, leaving it for redelivery",
				aws.ToString(message.MessageId), err)
		}
	}
}

func (c *SQSConsumer) deleteMessage(ctx context.Context, receiptHandle *string) {
	if receiptHandle == nil {
		logging.Warnf(ctx, "SQSConsumer: missing receipt handle, cannot delete message")
		return
	}
	_, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: receiptHandle,
	})
	if err != nil {
		logging.Errorf(ctx, "SQSConsumer: delete failed: %v", err)
	}
}
