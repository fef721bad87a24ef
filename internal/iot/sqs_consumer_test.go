package iot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart_parking_lot/internal/service"
)

type fakeSQS struct {
	mu       sync.Mutex
	batches  [][]types.Message
	errs     []error
	receives int
	deleted  []string
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, _ *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receives++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	if len(f.batches) > 0 {
		batch := f.batches[0]
		f.batches = f.batches[1:]
		return &sqs.ReceiveMessageOutput{Messages: batch}, nil
	}
	return &sqs.ReceiveMessageOutput{}, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, params *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, aws.ToString(params.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func (f *fakeSQS) deletedHandles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

type handlerFunc func(ctx context.Context, body string) error

func (h handlerFunc) HandleGateEvent(ctx context.Context, body string) error {
	return h(ctx, body)
}

func message(id, body string) types.Message {
	return types.Message{MessageId: aws.String(id), ReceiptHandle: aws.String("rh-" + id), Body: aws.String(body)}
}

func TestProcess_DeletesHandledAndMalformedMessages(t *testing.T) {
	client := &fakeSQS{}
	handler := handlerFunc(func(_ context.Context, body string) error {
		switch body {
		case "ok":
			return nil
		case "bad":
			return fmt.Errorf("%w: not json", service.ErrMalformedEvent)
		default:
			return errors.New("database unavailable")
		}
	})
	consumer := NewSQSConsumer(client, "https://sqs.local/q", handler)

	consumer.process(context.Background(), []types.Message{
		message("1", "ok"),
		message("2", "bad"),
		message("3", "transient"),
		{MessageId: aws.String("4"), ReceiptHandle: aws.String("rh-4")},
	})

	assert.Equal(t, []string{"rh-1", "rh-2", "rh-4"}, client.deletedHandles())
}

func TestStart_RetriesAfterReceiveErrors(t *testing.T) {
	client := &fakeSQS{
		errs:    []error{errors.New("throttled"), errors.New("throttled")},
		batches: [][]types.Message{{message("1", "ok")}},
	}
	handled := make(chan string, 1)
	consumer := NewSQSConsumer(client, "https://sqs.local/q", handlerFunc(func(_ context.Context, body string) error {
		handled <- body
		return nil
	}))
	consumer.waitSeconds = 0
	consumer.newBackOff = func() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		consumer.Start(ctx)
		close(done)
	}()

	select {
	case body := <-handled:
		assert.Equal(t, "ok", body)
	case <-time.After(2 * time.Second):
		t.Fatal("message was never handled")
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop after cancel")
	}
	require.Eventually(t, func() bool { return len(client.deletedHandles()) == 1 }, time.Second, 10*time.Millisecond)
}
