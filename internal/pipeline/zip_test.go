package pipeline

import (
	"testing"

	"github.com/jharjadi/docingest/internal/handler"
)

func TestValidateEntryName(t *testing.T) {
	registry := handler.NewRegistry(handler.NewZipHandler())

	tests := []struct {
		name       string
		raw        string
		wantReject bool
	}{
		{"clean nested path", "docs/report.zip", false},
		{"traversal rejected", "../../etc/passwd", true},
		{"absolute path rejected", "/etc/passwd", true},
		{"hidden file rejected", ".hidden", true},
		{"missing extension rejected", "readme", true},
		{"unsupported extension rejected", "readme.xyz", true},
		{"backslash path normalized", `sub\nested.zip`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, ext, reason := validateEntryName(tt.raw, registry)
			if tt.wantReject {
				if reason == "" {
					t.Fatalf("expected a reject reason for %q", tt.raw)
				}
				return
			}
			if reason != "" {
				t.Fatalf("expected %q to be accepted, got reject reason %q", tt.raw, reason)
			}
			if name == "" || ext != "zip" {
				t.Errorf("unexpected name/ext for %q: name=%q ext=%q", tt.raw, name, ext)
			}
		})
	}
}

func TestValidateEntryName_UnknownExtensionNamesTheExtension(t *testing.T) {
	registry := handler.NewRegistry(handler.NewZipHandler())
	_, _, reason := validateEntryName("data.xyz", registry)
	if reason != "unsupported extension: xyz" {
		t.Errorf("expected reason to name the rejected extension, got %q", reason)
	}
}
