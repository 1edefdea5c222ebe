package storage

import "testing"

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"report.docx", "report.docx"},
		{"my file (final)!.pdf", "my_file__final__.pdf"},
		{"../../etc/passwd", ".._.._etc_passwd"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := SanitizeName(tt.in); got != tt.want {
			t.Errorf("SanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestConstructKey_Bucketed(t *testing.T) {
	bucket := "7"
	got := ConstructKey("doc.pdf", &bucket, "job-1", KeyTypeGxFiles)
	want := "7/gxFiles/job-1/doc.pdf"
	if got != want {
		t.Errorf("ConstructKey() = %q, want %q", got, want)
	}
}

func TestConstructKey_Bulk(t *testing.T) {
	got := ConstructKey("b.zip", nil, "job-2", KeyTypeZip)
	want := "bulk/zip/job-2/b.zip"
	if got != want {
		t.Errorf("ConstructKey() = %q, want %q", got, want)
	}
}

func TestConstructKey_Injective(t *testing.T) {
	bucketA, bucketB := "a", "b"
	k1 := ConstructKey("x.pdf", &bucketA, "job", KeyTypeFiles)
	k2 := ConstructKey("x.pdf", &bucketB, "job", KeyTypeFiles)
	if k1 == k2 {
		t.Error("expected different keys for different buckets")
	}
}
