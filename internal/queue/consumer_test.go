package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeReceiver struct {
	mu       sync.Mutex
	pending  []Message
	deleted  []string
	received int32
}

func (f *fakeReceiver) Receive(ctx context.Context, maxMessages int32, waitSeconds int32) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pending) == 0 {
		return nil, nil
	}
	n := int(maxMessages)
	if n > len(f.pending) {
		n = len(f.pending)
	}
	out := f.pending[:n]
	f.pending = f.pending[n:]
	atomic.AddInt32(&f.received, int32(n))
	return out, nil
}

func (f *fakeReceiver) Delete(ctx context.Context, receiptHandle string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, receiptHandle)
	return nil
}

func TestConsumer_AcknowledgesSuccessfulMessages(t *testing.T) {
	fr := &fakeReceiver{pending: []Message{
		{Body: "one", ReceiptHandle: "r1"},
		{Body: "two", ReceiptHandle: "r2"},
	}}

	var processed int32
	c := NewConsumer(fr, ConsumerConfig{MaxConcurrentMessages: 2, MaxMessagesPerPoll: 10}, func(ctx context.Context, body string) error {
		atomic.AddInt32(&processed, 1)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	c.Run(ctx)

	if atomic.LoadInt32(&processed) != 2 {
		t.Errorf("expected 2 messages processed, got %d", processed)
	}
	fr.mu.Lock()
	defer fr.mu.Unlock()
	if len(fr.deleted) != 2 {
		t.Errorf("expected 2 messages deleted, got %d", len(fr.deleted))
	}
}

func TestConsumer_DoesNotDeleteFailedMessages(t *testing.T) {
	fr := &fakeReceiver{pending: []Message{{Body: "bad", ReceiptHandle: "r1"}}}

	c := NewConsumer(fr, ConsumerConfig{MaxConcurrentMessages: 1, MaxMessagesPerPoll: 10}, func(ctx context.Context, body string) error {
		return context.DeadlineExceeded
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	c.Run(ctx)

	fr.mu.Lock()
	defer fr.mu.Unlock()
	if len(fr.deleted) != 0 {
		t.Errorf("expected no messages deleted on handler failure, got %d", len(fr.deleted))
	}
}
