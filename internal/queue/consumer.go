package queue

import (
	"context"
	"log/slog"
	"sync"
)

// Handler processes one message's body. A nil error acknowledges the
// message (ON_SUCCESS); a non-nil error leaves it unacknowledged so SQS
// redelivers it up to the queue's maxReceiveCount (spec §5, §7).
type Handler func(ctx context.Context, body string) error

// receiver is the subset of *Queue the consumer needs, narrowed so tests
// can substitute a fake without standing up a real SQS client.
type receiver interface {
	Receive(ctx context.Context, maxMessages int32, waitSeconds int32) ([]Message, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// ConsumerConfig bounds how many messages are fetched per poll and how many
// are processed concurrently (spec §5).
type ConsumerConfig struct {
	MaxConcurrentMessages int
	MaxMessagesPerPoll    int32
	PollWaitSeconds       int32
}

// Consumer pulls from a single FIFO queue with a bounded worker pool, the
// same channel/task-pool shape as the pack's arx-os-arxos WorkerPool,
// generalized to SQS receive/handle/delete instead of in-memory objects.
type Consumer struct {
	queue  receiver
	cfg    ConsumerConfig
	handle Handler
	taskCh chan Message
	wg     sync.WaitGroup
}

func NewConsumer(q receiver, cfg ConsumerConfig, handle Handler) *Consumer {
	if cfg.MaxConcurrentMessages < 1 {
		cfg.MaxConcurrentMessages = 1
	}
	return &Consumer{
		queue:  q,
		cfg:    cfg,
		handle: handle,
		taskCh: make(chan Message, cfg.MaxConcurrentMessages*2),
	}
}

// Run polls and dispatches until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	for i := 0; i < c.cfg.MaxConcurrentMessages; i++ {
		c.wg.Add(1)
		go c.worker(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			close(c.taskCh)
			c.wg.Wait()
			return
		default:
		}

		msgs, err := c.queue.Receive(ctx, c.cfg.MaxMessagesPerPoll, c.cfg.PollWaitSeconds)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			slog.Error("queue poll failed", "error", err)
			continue
		}

		for _, m := range msgs {
			select {
			case c.taskCh <- m:
			case <-ctx.Done():
				close(c.taskCh)
				c.wg.Wait()
				return
			}
		}
	}
}

func (c *Consumer) worker(ctx context.Context) {
	defer c.wg.Done()
	for msg := range c.taskCh {
		if err := c.handle(ctx, msg.Body); err != nil {
			slog.Warn("message processing failed, leaving for redelivery", "error", err)
			continue
		}
		if err := c.queue.Delete(ctx, msg.ReceiptHandle); err != nil {
			slog.Error("failed to delete acknowledged message", "error", err)
		}
	}
}
