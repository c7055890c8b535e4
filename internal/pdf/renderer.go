package pdf

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/rotisserie/eris"
)

// pdftoppm names its output <prefix>-<page>.png, zero-padding the page
// number to the width of the document's last page.
var pageFilePattern = regexp.MustCompile(`^page-(\d+)\.png$`)

// PopplerRenderer rasterises PDF pages with poppler's pdftoppm.
type PopplerRenderer struct {
	binPath string
	tempDir string
}

// NewPopplerRenderer creates a renderer. If binPath is empty, "pdftoppm" is
// used; if tempDir is empty, the OS temp dir is used.
func NewPopplerRenderer(binPath, tempDir string) *PopplerRenderer {
	if binPath == "" {
		binPath = "pdftoppm"
	}
	return &PopplerRenderer{binPath: binPath, tempDir: tempDir}
}

// RenderPages renders pages first..last of path at dpi and returns one image
// per page in ascending page order.
func (r *PopplerRenderer) RenderPages(ctx context.Context, path string, first, last, dpi int) ([]image.Image, error) {
	if first < 1 || last < first {
		return nil, eris.Errorf("pdf: invalid page range %d-%d", first, last)
	}

	workDir, err := os.MkdirTemp(r.tempDir, "pdfocr-render-")
	if err != nil {
		return nil, eris.Wrap(err, "pdf: create render dir")
	}
	defer os.RemoveAll(workDir)

	cmd := exec.CommandContext(ctx, r.binPath,
		"-r", strconv.Itoa(dpi),
		"-f", strconv.Itoa(first),
		"-l", strconv.Itoa(last),
		"-png",
		path,
		filepath.Join(workDir, "page"),
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, eris.Wrapf(err, "pdf: pdftoppm failed for %s pages %d-%d: %s", path, first, last, stderr.String())
	}

	files, err := collectPageFiles(workDir)
	if err != nil {
		return nil, err
	}

	images := make([]image.Image, 0, last-first+1)
	for page := first; page <= last; page++ {
		name, ok := files[page]
		if !ok {
			return nil, eris.Errorf("pdf: pdftoppm produced no image for page %d", page)
		}
		img, err := decodePNG(filepath.Join(workDir, name))
		if err != nil {
			return nil, eris.Wrapf(err, "pdf: decode page %d", page)
		}
		images = append(images, img)
	}
	return images, nil
}

func collectPageFiles(dir string) (map[int]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrap(err, "pdf: read render dir")
	}
	files := make(map[int]string, len(entries))
	for _, e := range entries {
		m := pageFilePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		page, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, fmt.Errorf("bad page file name %q: %w", e.Name(), err)
		}
		files[page] = e.Name()
	}
	return files, nil
}

func decodePNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return png.Decode(f)
}
