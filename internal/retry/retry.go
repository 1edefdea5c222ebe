// Package retry wraps the attempts+delay retry policy configured per
// handler (OFFICE, MSG, PDF, ZIP-nested) and per process-failure path
// (spec §4.5, §9) around cenkalti/backoff/v4. The pack's own go.mod pulls
// in backoff (grounded via Andrew50-peripheral's dependency list) but has
// no call site to imitate, so usage here follows the library's own
// documented constant-backoff construction rather than a source pattern.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jharjadi/docingest/internal/config"
	"github.com/jharjadi/docingest/internal/pipeline/classify"
)

// Policy is an attempts/delay retry policy read off config.RetryConfig.
type Policy struct {
	attempts int
	delay    time.Duration
}

func NewPolicy(cfg config.RetryConfig) Policy {
	attempts := cfg.Attempts
	if attempts < 1 {
		attempts = 1
	}
	return Policy{attempts: attempts, delay: cfg.Delay()}
}

// Op is a unit of work that returns a classify.Result: only TransientIO and
// TransientExternal outcomes are retried, everything else (Ok or any
// Terminal* variant) stops the retry loop immediately.
type Op func(ctx context.Context) classify.Result

// Do runs op, retrying up to p.attempts times with a constant delay
// whenever the result is transient. It returns the last Result seen.
func (p Policy) Do(ctx context.Context, op Op) classify.Result {
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(p.delay), uint64(p.attempts-1)), ctx)

	var last classify.Result
	_ = backoff.Retry(func() error {
		last = op(ctx)
		if last.Outcome == classify.TransientIO || last.Outcome == classify.TransientExternal {
			return transientErr{last}
		}
		return nil
	}, b)

	return last
}

// transientErr adapts a transient classify.Result into an error so
// backoff.Retry treats it as retryable.
type transientErr struct {
	result classify.Result
}

func (e transientErr) Error() string { return e.result.Reason }
