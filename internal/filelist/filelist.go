// Package filelist reads line-delimited lists of PDF paths.
package filelist

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
)

// Read returns the PDF paths listed in the file at path.
func Read(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "filelist: open %s", path)
	}
	defer f.Close()

	paths, err := Parse(f)
	if err != nil {
		return nil, eris.Wrapf(err, "filelist: read %s", path)
	}
	return paths, nil
}

// Parse returns one path per line. Lines are trimmed; blank lines and lines
// not ending in ".pdf" (any case) are skipped.
func Parse(r io.Reader) ([]string, error) {
	var paths []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !IsPDF(line) {
			continue
		}
		paths = append(paths, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return paths, nil
}

// IsPDF reports whether name has a .pdf extension.
func IsPDF(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".pdf")
}
