// Package queue wraps the two FIFO SQS queues (zip and file) and the
// bounded-concurrency consumer loop that pulls and acknowledges messages
// (spec §5, §6). Client calls follow the SDK's documented API; the
// worker-pool shape for bounded consumer concurrency is grounded on the
// channel/task worker pool in the pack's arx-os-arxos ingestion file.
package queue

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// Queue wraps a single FIFO SQS queue.
type Queue struct {
	client *sqs.Client
	url    string
}

func New(client *sqs.Client, url string) *Queue {
	return &Queue{client: client, url: url}
}

// SendParams carries the FIFO routing attributes required on every message
// (spec §4.4): a message-group-id that serializes delivery per key, and a
// message-deduplication-id that lets the broker discard exact replays.
type SendParams struct {
	Body            string
	GroupID         string
	DeduplicationID string
}

func (q *Queue) Send(ctx context.Context, p SendParams) error {
	_, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:               aws.String(q.url),
		MessageBody:            aws.String(p.Body),
		MessageGroupId:         aws.String(p.GroupID),
		MessageDeduplicationId: aws.String(p.DeduplicationID),
	})
	if err != nil {
		return fmt.Errorf("send message to %s: %w", q.url, err)
	}
	return nil
}

// Message is one received SQS message, carrying what's needed to delete it
// on successful processing (acknowledgementMode=ON_SUCCESS, spec §6).
type Message struct {
	Body          string
	ReceiptHandle string
}

// Receive polls up to maxMessages with the given long-poll wait.
func (q *Queue) Receive(ctx context.Context, maxMessages int32, waitSeconds int32) ([]Message, error) {
	out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.url),
		MaxNumberOfMessages: maxMessages,
		WaitTimeSeconds:     waitSeconds,
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameMessageGroupId,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("receive from %s: %w", q.url, err)
	}

	msgs := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		msgs = append(msgs, Message{
			Body:          aws.ToString(m.Body),
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
		})
	}
	return msgs, nil
}

// Delete acknowledges a message after successful processing.
func (q *Queue) Delete(ctx context.Context, receiptHandle string) error {
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.url),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("delete message from %s: %w", q.url, err)
	}
	return nil
}

// Purge removes all messages from the queue, used by the administrative
// termination surface (spec §4.9).
func (q *Queue) Purge(ctx context.Context) error {
	_, err := q.client.PurgeQueue(ctx, &sqs.PurgeQueueInput{QueueUrl: aws.String(q.url)})
	if err != nil {
		return fmt.Errorf("purge %s: %w", q.url, err)
	}
	return nil
}
