package scheduler

import (
	"testing"

	"github.com/jharjadi/docingest/internal/model"
)

func TestMapGxStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want model.GxStatus
	}{
		{"QUEUED", model.GxQueued},
		{"PROCESSING", model.GxProcessing},
		{"ACTIVE", model.GxActive},
		{"COMPLETE", model.GxComplete},
		{"COMPLETED", model.GxComplete},
		{"CANCELLED", model.GxCancelled},
		{"CANCELED", model.GxCancelled},
		{"SOMETHING_UNKNOWN", model.GxError},
		{"", model.GxError},
	}
	for _, tt := range tests {
		if got := mapGxStatus(tt.raw); got != tt.want {
			t.Errorf("mapGxStatus(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}
