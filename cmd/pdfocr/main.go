/**
 * PDF OCR Worker - Main Entry Point
 *
 * Converts PDFs to plain text by rendering pages with poppler and running
 * Tesseract on each page image. Pages are processed in memory-bounded
 * batches on a bounded worker pool and reassembled in page order.
 *
 * Commands:
 * - run:     process PDFs given as arguments or in a list file
 * - serve:   consume jobs from a Redis list or an asynq queue
 * - enqueue: submit PDFs to the queue
 */

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/adverant/nexus/pdfocr-worker/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "pdfocr",
	Short: "Batch OCR for multi-page PDFs",
	Long:  "Renders PDF pages to images, runs Tesseract on them in memory-bounded concurrent batches, and writes one text file per PDF with pages in order.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}

		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
