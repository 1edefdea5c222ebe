package retry

import (
	"context"
	"testing"
	"time"

	"github.com/jharjadi/docingest/internal/config"
	"github.com/jharjadi/docingest/internal/pipeline/classify"
)

func TestPolicy_Do_SucceedsFirstTry(t *testing.T) {
	p := NewPolicy(config.RetryConfig{Attempts: 3, DelayMS: 1})
	calls := 0

	res := p.Do(context.Background(), func(ctx context.Context) classify.Result {
		calls++
		return classify.OkResult()
	})

	if res.Outcome != classify.Ok {
		t.Errorf("expected Ok, got %v", res.Outcome)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestPolicy_Do_RetriesTransientThenSucceeds(t *testing.T) {
	p := NewPolicy(config.RetryConfig{Attempts: 3, DelayMS: 1})
	calls := 0

	res := p.Do(context.Background(), func(ctx context.Context) classify.Result {
		calls++
		if calls < 3 {
			return classify.TransientIOErr("temporary")
		}
		return classify.OkResult()
	})

	if res.Outcome != classify.Ok {
		t.Errorf("expected eventual Ok, got %v", res.Outcome)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestPolicy_Do_StopsOnTerminal(t *testing.T) {
	p := NewPolicy(config.RetryConfig{Attempts: 5, DelayMS: 1})
	calls := 0

	res := p.Do(context.Background(), func(ctx context.Context) classify.Result {
		calls++
		return classify.Protected("file is password protected")
	})

	if res.Outcome != classify.TerminalProtected {
		t.Errorf("expected TerminalProtected, got %v", res.Outcome)
	}
	if calls != 1 {
		t.Errorf("expected exactly 1 call for a terminal result, got %d", calls)
	}
}

func TestPolicy_Do_ExhaustsRetries(t *testing.T) {
	p := NewPolicy(config.RetryConfig{Attempts: 3, DelayMS: 1})
	calls := 0

	res := p.Do(context.Background(), func(ctx context.Context) classify.Result {
		calls++
		return classify.TransientIOErr("still failing")
	})

	if res.Outcome != classify.TransientIO {
		t.Errorf("expected TransientIO after exhaustion, got %v", res.Outcome)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestNewPolicy_ClampsZeroAttempts(t *testing.T) {
	p := NewPolicy(config.RetryConfig{Attempts: 0, DelayMS: 1})
	if p.attempts != 1 {
		t.Errorf("expected attempts clamped to 1, got %d", p.attempts)
	}
}

func TestRetryConfig_Delay(t *testing.T) {
	c := config.RetryConfig{DelayMS: 250}
	if c.Delay() != 250*time.Millisecond {
		t.Errorf("expected 250ms, got %v", c.Delay())
	}
}
