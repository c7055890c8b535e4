package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/adverant/nexus/pdfocr-worker/internal/filelist"
)

var (
	runList      string
	runOutputDir string
	runWorkers   int
)

var runCmd = &cobra.Command{
	Use:   "run [pdf...]",
	Short: "OCR one or more PDFs",
	Long:  "Processes each PDF in turn. A document that fails is logged and skipped; an internal invariant violation stops the run.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		paths, err := collectPaths(args, runList)
		if err != nil {
			return err
		}

		if runOutputDir != "" {
			cfg.Output.Dir = runOutputDir
		}
		if runWorkers > 0 {
			cfg.Planner.MaxWorkers = runWorkers
		}

		env, err := initRunner(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		summary, err := env.Runner.RunAll(ctx, paths)
		for _, res := range summary.Succeeded {
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%d pages)\n", res.Path, res.OutputPath, res.PageCount)
		}
		if err != nil {
			return eris.Wrap(err, "run aborted")
		}
		if n := len(summary.Failed); n > 0 {
			for _, f := range summary.Failed {
				zap.L().Error("document failed", zap.String("path", f.Path), zap.Error(f.Err))
			}
			return fmt.Errorf("%d of %d documents failed", n, len(paths))
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runList, "list", "", "file with one PDF path per line")
	runCmd.Flags().StringVar(&runOutputDir, "output-dir", "", "directory for .txt output (overrides output.dir)")
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "cap on concurrent batches (overrides planner.max_workers)")
	rootCmd.AddCommand(runCmd)
}

// collectPaths returns the PDF arguments followed by the paths in listFile.
func collectPaths(args []string, listFile string) ([]string, error) {
	paths := append([]string(nil), args...)
	if listFile != "" {
		listed, err := filelist.Read(listFile)
		if err != nil {
			return nil, err
		}
		paths = append(paths, listed...)
	}
	if len(paths) == 0 {
		return nil, eris.New("no PDFs given: pass paths or --list")
	}
	return paths, nil
}
