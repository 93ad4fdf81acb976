package sqsqueue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smsrelay/internal/changefeed"
	"smsrelay/internal/domain"
)

type fakeSQS struct {
	mu      sync.Mutex
	batch   []types.Message
	deleted []string
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, _ *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.mu.Lock()
	msgs := f.batch
	f.batch = nil
	f.mu.Unlock()
	if len(msgs) == 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
	return &sqs.ReceiveMessageOutput{Messages: msgs}, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, aws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func (f *fakeSQS) deletedHandles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

func message(t *testing.T, handle string, ev changefeed.Event) types.Message {
	t.Helper()
	b, err := json.Marshal(ev)
	require.NoError(t, err)
	return types.Message{Body: aws.String(string(b)), ReceiptHandle: aws.String(handle)}
}

func TestPollConcurrentDeletesHandledAndPoison(t *testing.T) {
	ok := message(t, "ok", changefeed.Event{ID: "m1", After: &domain.Record{ID: "m1", To: "+1555"}})
	failing := message(t, "failing", changefeed.Event{ID: "m2", After: &domain.Record{ID: "m2"}})
	poison := types.Message{Body: aws.String("{not json"), ReceiptHandle: aws.String("poison")}

	api := &fakeSQS{batch: []types.Message{ok, failing, poison}}
	c := &Consumer{SQS: api, QueueURL: "q"}

	ctx, cancel := context.WithCancel(context.Background())
	var mu sync.Mutex
	var seen []string
	done := make(chan error, 1)
	go func() {
		done <- c.PollConcurrent(ctx, 2, func(_ context.Context, ev changefeed.Event) error {
			mu.Lock()
			seen = append(seen, ev.ID)
			mu.Unlock()
			if ev.ID == "m2" {
				return errors.New("boom")
			}
			return nil
		})
	}()

	require.Eventually(t, func() bool { return len(api.deletedHandles()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	assert.ElementsMatch(t, []string{"ok", "poison"}, api.deletedHandles())
	mu.Lock()
	assert.ElementsMatch(t, []string{"m1", "m2"}, seen)
	mu.Unlock()
}
