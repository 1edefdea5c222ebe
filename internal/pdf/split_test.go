package pdf

import "testing"

func TestPartNumber(t *testing.T) {
	tests := []struct {
		path string
		base string
		want int
	}{
		{"/tmp/report_part1.pdf", "report", 1},
		{"/tmp/report_part2.pdf", "report", 2},
		{"/tmp/report_part10.pdf", "report", 10},
	}
	for _, tt := range tests {
		if got := partNumber(tt.path, tt.base); got != tt.want {
			t.Errorf("partNumber(%q, %q) = %d, want %d", tt.path, tt.base, got, tt.want)
		}
	}
}
