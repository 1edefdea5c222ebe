package process

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestRun_Success(t *testing.T) {
	res, err := Run(context.Background(), "test", "echo", []string{"hello"}, 5*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("expected exit code 0, got %d", res.ExitCode)
	}
	if !strings.Contains(res.Stdout, "hello") {
		t.Errorf("expected stdout to contain 'hello', got %q", res.Stdout)
	}
}

func TestRun_NonZeroExit(t *testing.T) {
	res, err := Run(context.Background(), "test", "sh", []string{"-c", "exit 3"}, 5*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("expected exit code 3, got %d", res.ExitCode)
	}
}

func TestRun_Timeout(t *testing.T) {
	res, err := Run(context.Background(), "test", "sleep", []string{"2"}, 10*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !res.TimedOut {
		t.Error("expected TimedOut=true")
	}
}

func TestRun_NonexistentBinary(t *testing.T) {
	_, err := Run(context.Background(), "test", "this-binary-does-not-exist-xyz", nil, time.Second)
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
}

func TestBoundedBuffer_Caps(t *testing.T) {
	b := &boundedBuffer{limit: 5}
	b.Write([]byte("hello world"))
	if got := b.String(); got != "hello" {
		t.Errorf("expected capped output 'hello', got %q", got)
	}
}
