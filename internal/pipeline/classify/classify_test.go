package classify

import "testing"

func TestClassifyProcessFailure_Protected(t *testing.T) {
	tests := []string{
		"Error: this file requires a password for access",
		"qpdf: file is encrypted",
		"qpdf: invalid password",
		"QPDF: INVALID PASSWORD",
	}
	for _, stderr := range tests {
		res := ClassifyProcessFailure(1, stderr)
		if res.Outcome != TerminalProtected {
			t.Errorf("stderr %q: expected TerminalProtected, got %v", stderr, res.Outcome)
		}
	}
}

func TestClassifyProcessFailure_Transient(t *testing.T) {
	res := ClassifyProcessFailure(1, "segmentation fault")
	if res.Outcome != TransientExternal {
		t.Errorf("expected TransientExternal, got %v", res.Outcome)
	}
}

func TestClassifyGxStatusCode(t *testing.T) {
	tests := []struct {
		code int
		want Outcome
	}{
		{200, Ok},
		{201, Ok},
		{404, TerminalInvalid},
		{422, TerminalInvalid},
		{500, TransientExternal},
		{503, TransientExternal},
	}
	for _, tt := range tests {
		if got := ClassifyGxStatusCode(tt.code).Outcome; got != tt.want {
			t.Errorf("ClassifyGxStatusCode(%d) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestOutcome_Terminal(t *testing.T) {
	terminal := []Outcome{TerminalInvalid, TerminalProtected, TerminalMalformed}
	for _, o := range terminal {
		if !o.Terminal() {
			t.Errorf("%v.Terminal() = false, want true", o)
		}
	}
	nonTerminal := []Outcome{Ok, TransientIO, TransientExternal}
	for _, o := range nonTerminal {
		if o.Terminal() {
			t.Errorf("%v.Terminal() = true, want false", o)
		}
	}
}
