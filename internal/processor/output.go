package processor

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/adverant/nexus/pdfocr-worker/internal/errors"
)

// OutputWriter serialises a finished document to a UTF-8 text file. It is
// the only component that touches output files.
type OutputWriter struct {
	dir         string
	pageMarkers bool
}

// NewOutputWriter creates a writer rooted at dir.
func NewOutputWriter(dir string, pageMarkers bool) *OutputWriter {
	return &OutputWriter{dir: dir, pageMarkers: pageMarkers}
}

// PathFor maps a PDF path to <dir>/<base name>.txt.
func (w *OutputWriter) PathFor(pdfPath string) string {
	base := filepath.Base(pdfPath)
	return filepath.Join(w.dir, strings.TrimSuffix(base, filepath.Ext(base))+".txt")
}

// Format renders pages in the given order.
func (w *OutputWriter) Format(pages []PageResult) []byte {
	var buf bytes.Buffer
	for i, p := range pages {
		if w.pageMarkers {
			if i > 0 {
				buf.WriteByte('\n')
			}
			fmt.Fprintf(&buf, "=== Page %d ===\n", p.PageNumber)
		}
		buf.WriteString(norm.NFC.String(strings.TrimRight(p.Text, "\n\f")))
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// Write replaces outPath with the formatted pages. The file appears
// atomically: readers see either the old file or the complete new one.
func (w *OutputWriter) Write(outPath string, pages []PageResult) error {
	dir := filepath.Dir(outPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.NewOutputWriteFailedError(outPath, err)
	}

	tmp, err := os.CreateTemp(dir, ".pdfocr-*.tmp")
	if err != nil {
		return errors.NewOutputWriteFailedError(outPath, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(w.Format(pages)); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.NewOutputWriteFailedError(outPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.NewOutputWriteFailedError(outPath, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return errors.NewOutputWriteFailedError(outPath, err)
	}
	if err := os.Rename(tmpName, outPath); err != nil {
		os.Remove(tmpName)
		return errors.NewOutputWriteFailedError(outPath, err)
	}
	return nil
}
