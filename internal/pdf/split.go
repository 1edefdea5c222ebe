package pdf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jharjadi/docingest/internal/process"
)

// Split breaks the PDF at path into sequential chunks of at most maxPages
// pages each, named "{base}_part{N}.pdf" (spec §4.5, §8), via the qpdf
// splitter. Returns the chunk bytes in page order.
func Split(ctx context.Context, path string, maxPages int, timeout time.Duration) ([][]byte, error) {
	dir := filepath.Dir(path)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	outPattern := filepath.Join(dir, base+"_part%d.pdf")

	args := []string{path, "--split-pages=" + strconv.Itoa(maxPages), "--", outPattern}
	res, err := process.Run(ctx, "pdf-split", "qpdf", args, timeout)
	if err != nil {
		return nil, fmt.Errorf("qpdf split: %w", err)
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("qpdf split failed (exit %d): %s", res.ExitCode, res.Stderr)
	}

	matches, err := filepath.Glob(filepath.Join(dir, base+"_part*.pdf"))
	if err != nil {
		return nil, fmt.Errorf("glob split output: %w", err)
	}
	// Lexical sort would put "_part10" before "_part2" once a split
	// produces 10+ chunks; order by the numeric part suffix instead so
	// page order survives large multi-gigabyte uploads.
	sort.Slice(matches, func(i, j int) bool {
		return partNumber(matches[i], base) < partNumber(matches[j], base)
	})

	chunks := make([][]byte, 0, len(matches))
	for _, m := range matches {
		data, err := os.ReadFile(m)
		if err != nil {
			return nil, fmt.Errorf("read split chunk %s: %w", m, err)
		}
		chunks = append(chunks, data)
	}
	return chunks, nil
}

// partNumber extracts N from a "{base}_part{N}.pdf" chunk path.
func partNumber(path, base string) int {
	name := strings.TrimSuffix(filepath.Base(path), ".pdf")
	n, _ := strconv.Atoi(strings.TrimPrefix(name, base+"_part"))
	return n
}
