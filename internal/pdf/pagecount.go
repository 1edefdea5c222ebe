// Package pdf wraps pdfcpu for page counting and password-protection
// detection, and shells out to qpdf for splitting (spec §4.5). No call
// site in the example pack exercises pdfcpu directly (it appears only in
// a dependency manifest), so usage here follows the library's own
// documented api package.
package pdf

import (
	"fmt"
	"os"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// PageCount returns the number of pages in the PDF at path.
func PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		if looksPasswordProtected(err) {
			return 0, ErrPasswordProtected
		}
		return 0, fmt.Errorf("pdf page count: %w", err)
	}
	return n, nil
}

// ErrPasswordProtected is returned when pdfcpu can't read a PDF's page
// structure because it is encrypted without a supplied password.
var ErrPasswordProtected = fmt.Errorf("pdf is password protected")

func looksPasswordProtected(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "password") || strings.Contains(msg, "encrypt")
}

// WriteTemp writes data to a new temp file in dir and returns its path.
func WriteTemp(dir, pattern string, data []byte) (string, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", fmt.Errorf("create temp pdf file: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return "", fmt.Errorf("write temp pdf file: %w", err)
	}
	return f.Name(), nil
}
