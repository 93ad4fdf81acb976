package sqsqueue

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/oklog/ulid/v2"

	"smsrelay/internal/changefeed"
)

type Producer struct {
	SQS      *sqs.Client
	QueueURL string
}

// Publish sends one change event. On FIFO queues events of the same record
// share a message group so they are consumed in commit order.
func (p *Producer) Publish(ctx context.Context, ev changefeed.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	in := &sqs.SendMessageInput{
		QueueUrl:    &p.QueueURL,
		MessageBody: str(string(body)),
	}
	if isFIFO(p.QueueURL) {
		in.MessageGroupId = str(messageGroupID(ev.ID))
		in.MessageDeduplicationId = str(ulid.Make().String())
	}
	_, err = p.SQS.SendMessage(ctx, in)
	return err
}

func isFIFO(queueURL string) bool { return strings.HasSuffix(queueURL, ".fifo") }

func messageGroupID(recordID string) string {
	if recordID == "" {
		return "msg:unknown"
	}
	return "msg:" + recordID
}

func str(s string) *string { return &s }
