/**
 * Tesseract OCR - page recognition engine
 *
 * Simple, free, offline OCR using Tesseract through gosseract.
 * One client per page: gosseract clients are not safe for concurrent use.
 */

package processor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strconv"

	"github.com/otiai10/gosseract/v2"
)

// TesseractOCR handles OCR using Tesseract
type TesseractOCR struct {
	tessdataPrefix string
	dpi            int
	clientFactory  func() *gosseract.Client
}

// TesseractConfig holds Tesseract configuration
type TesseractConfig struct {
	TessdataPrefix string
	DPI            int // resolution the page images were rendered at
}

// NewTesseractOCR creates a new Tesseract OCR instance
func NewTesseractOCR(cfg *TesseractConfig) *TesseractOCR {
	return &TesseractOCR{
		tessdataPrefix: cfg.TessdataPrefix,
		dpi:            cfg.DPI,
		clientFactory:  gosseract.NewClient,
	}
}

// Recognize performs OCR on one page image with the given language set
func (t *TesseractOCR) Recognize(ctx context.Context, img image.Image, languages []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode page image: %w", err)
	}

	client := t.clientFactory()
	defer client.Close()

	if t.tessdataPrefix != "" {
		if err := client.SetTessdataPrefix(t.tessdataPrefix); err != nil {
			return "", fmt.Errorf("failed to set tessdata prefix: %w", err)
		}
	}

	if len(languages) > 0 {
		if err := client.SetLanguage(languages...); err != nil {
			return "", fmt.Errorf("failed to set languages: %w", err)
		}
	}

	if t.dpi > 0 {
		if err := client.SetVariable(gosseract.SettableVariable("user_defined_dpi"), strconv.Itoa(t.dpi)); err != nil {
			return "", fmt.Errorf("failed to set dpi: %w", err)
		}
	}

	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract OCR failed: %w", err)
	}

	return text, nil
}
