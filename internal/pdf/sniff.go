package pdf

import (
	"bytes"
	"io"
	"os"

	"github.com/rotisserie/eris"
)

// headerWindow is how far into the file a PDF header may start.
const headerWindow = 1024

var pdfMagic = []byte("%PDF-")

// sniffHeader reads the start of path and reports whether it carries a PDF
// header. When it does not, kind names what the file looks like instead
// ("" when unknown).
func sniffHeader(path string) (ok bool, kind string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return false, "", eris.Wrapf(err, "pdf: open %s", path)
	}
	defer f.Close()

	buf := make([]byte, headerWindow)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return false, "", eris.Wrapf(err, "pdf: read header of %s", path)
	}
	data := buf[:n]

	if bytes.Contains(data, pdfMagic) {
		return true, "application/pdf", nil
	}
	return false, detectKind(data), nil
}

// detectKind names common non-PDF inputs by their magic bytes.
func detectKind(data []byte) string {
	switch {
	case len(data) < 4:
		return ""
	case bytes.HasPrefix(data, []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}):
		return "image/png"
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return "image/jpeg"
	case bytes.HasPrefix(data, []byte("GIF87a")), bytes.HasPrefix(data, []byte("GIF89a")):
		return "image/gif"
	case bytes.HasPrefix(data, []byte{'I', 'I', 0x2A, 0x00}), bytes.HasPrefix(data, []byte{'M', 'M', 0x00, 0x2A}):
		return "image/tiff"
	case bytes.HasPrefix(data, []byte{'P', 'K', 0x03, 0x04}):
		return "application/zip"
	case bytes.HasPrefix(data, []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}):
		return "application/msword"
	}
	return ""
}
