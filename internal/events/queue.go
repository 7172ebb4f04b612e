package events

import "context"

// QueueClient abstracts the event transport so the worker and the
// publisher do not care whether SQS or the in-memory queue backs them.
type QueueClient interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]QueueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// QueueMessage is one raw message pulled from the transport.
type QueueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}
