package pdf

import (
	"context"
	"fmt"
	"os"

	"github.com/ledongthuc/pdf"

	"github.com/adverant/nexus/pdfocr-worker/internal/errors"
)

// PageCounter reads the page count from a PDF's page tree.
type PageCounter struct{}

// NewPageCounter creates a PageCounter.
func NewPageCounter() *PageCounter {
	return &PageCounter{}
}

// Count returns the number of pages in the PDF at path. Missing files,
// non-PDF files and malformed PDFs are DOCUMENT_UNREADABLE; a page tree with
// no pages is EMPTY_DOCUMENT.
func (c *PageCounter) Count(ctx context.Context, path string) (n int, err error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if _, statErr := os.Stat(path); statErr != nil {
		return 0, errors.NewDocumentUnreadableError(path, statErr)
	}

	ok, kind, sniffErr := sniffHeader(path)
	if sniffErr != nil {
		return 0, errors.NewDocumentUnreadableError(path, sniffErr)
	}
	if !ok {
		if kind == "" {
			kind = "unknown content"
		}
		return 0, errors.NewDocumentUnreadableError(path, fmt.Errorf("no PDF header (looks like %s)", kind))
	}

	// The parser panics on some corrupt xref tables.
	defer func() {
		if r := recover(); r != nil {
			n = 0
			err = errors.NewDocumentUnreadableError(path, fmt.Errorf("parse panic: %v", r))
		}
	}()

	f, reader, openErr := pdf.Open(path)
	if openErr != nil {
		return 0, errors.NewDocumentUnreadableError(path, openErr)
	}
	defer f.Close()

	n = reader.NumPage()
	if n < 1 {
		return 0, errors.NewEmptyDocumentError(path)
	}
	return n, nil
}
