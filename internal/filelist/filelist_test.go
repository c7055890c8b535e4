package filelist

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	input := strings.Join([]string{
		"books/one.pdf",
		"",
		"   ",
		"notes.txt",
		"  scans/Two.PDF  ",
		"archive.pdf.zip",
		"/abs/path/three.pdf\r",
	}, "\n")

	paths, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"books/one.pdf", "scans/Two.PDF", "/abs/path/three.pdf"}, paths)
}

func TestParse_Empty(t *testing.T) {
	paths, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list.txt")
	require.NoError(t, os.WriteFile(path, []byte("a.pdf\nb.doc\nc.pdf\n"), 0o644))

	paths, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.pdf", "c.pdf"}, paths)
}

func TestRead_Missing(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "filelist: open")
}

func TestIsPDF(t *testing.T) {
	assert.True(t, IsPDF("x.pdf"))
	assert.True(t, IsPDF("X.Pdf"))
	assert.False(t, IsPDF("x.pdfa"))
	assert.False(t, IsPDF("pdf"))
}
