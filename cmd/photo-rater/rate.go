package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fpang/photo-rater/internal/batch"
	"github.com/fpang/photo-rater/internal/chat"
	"github.com/fpang/photo-rater/internal/cli"
	"github.com/fpang/photo-rater/internal/export"
	"github.com/fpang/photo-rater/internal/filehandler"
	"github.com/fpang/photo-rater/internal/rating"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	directoryFlag string
	maxDepthFlag  int
	limitFlag     int
	outFlag       string
	reportFlag    bool
)

var rateCmd = &cobra.Command{
	Use:   "rate",
	Short: "Rate every photo in a directory",
	Long: `Rate scans a directory for photos, rates them with the configured
provider and prints a results table. Use --out to save a CSV and --report for
a group assessment of the whole set.

Examples:
  photo-rater rate -d ~/Pictures/trip
  photo-rater rate -d ~/Pictures --max-depth 1 --limit 50 --out ratings.csv
  photo-rater rate -d ./shoot --report --provider anthropic`,
	RunE: runRate,
}

func init() {
	rootCmd.AddCommand(rateCmd)

	rateCmd.Flags().StringVarP(&directoryFlag, "directory", "d", "", "Directory to scan (prompts when empty)")
	rateCmd.Flags().IntVar(&maxDepthFlag, "max-depth", 0, "Maximum recursion depth (0 = unlimited)")
	rateCmd.Flags().IntVar(&limitFlag, "limit", 0, "Maximum photos to rate (0 = unlimited)")
	rateCmd.Flags().StringVarP(&outFlag, "out", "o", "", "Write the results as CSV to this file")
	rateCmd.Flags().BoolVar(&reportFlag, "report", false, "Generate a group report after rating")
}

func runRate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	dir := directoryFlag
	if dir == "" {
		dir = cli.PromptForDirectory(os.Stdin, out)
	}
	dir, err := cli.ResolveDirectory(dir)
	if err != nil {
		return err
	}

	files, err := filehandler.ScanDirectoryWithOptions(dir, filehandler.ScanOptions{
		MaxDepth: maxDepthFlag,
		Limit:    limitFlag,
	})
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintf(out, "No photos found in %s\n", dir)
		return nil
	}

	kv, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer kv.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := newApp(cfg, kv, chat.NewBackend)
	if _, err := a.connect(ctx); err != nil {
		return errors.New(cli.DescribeValidationError(err))
	}

	for _, f := range files {
		data, err := f.ReadData()
		if err != nil {
			log.Warn().Err(err).Str("path", f.Path).Msg("Skipping unreadable photo")
			continue
		}
		a.ctrl.Add(f.Name(), data, "", f.Metadata)
	}

	start := time.Now()
	if err := rateAll(ctx, a.ctrl, os.Stderr); err != nil {
		return fmt.Errorf("rating interrupted: %w", err)
	}

	colorize := cli.ShouldColorize(os.Stdout)
	items := a.ctrl.Items()
	stats := a.ctrl.Stats()
	fmt.Fprintln(out, cli.RenderResults(items, colorize))
	fmt.Fprintln(out, cli.RenderStats(stats))
	fmt.Fprintf(out, "Rated %d photos in %s\n", stats.Processed, cli.FormatElapsed(time.Since(start)))

	if outFlag != "" {
		if err := writeCSVFile(outFlag, items); err != nil {
			return err
		}
		fmt.Fprintf(out, "Results written to %s\n", outFlag)
	}

	if reportFlag {
		report, err := a.report(ctx)
		switch {
		case errors.Is(err, rating.ErrNothingToSummarize):
			fmt.Fprintln(out, "No rated photos to summarize.")
		case err != nil:
			return fmt.Errorf("group report failed: %w", err)
		default:
			fmt.Fprintln(out)
			fmt.Fprint(out, cli.RenderReport(report, colorize))
		}
	}
	return nil
}

// rateAll starts the batch and waits for it to finish, printing progress to
// progress. Start and every completion tick the scheduler, so no polling
// loop is needed here.
func rateAll(ctx context.Context, ctrl *batch.Controller, progress io.Writer) error {
	changes, unsubscribe := ctrl.Subscribe()
	defer unsubscribe()

	start := time.Now()
	show := func() {
		s := ctrl.Stats()
		fmt.Fprintf(progress, "\r  Rated %d/%d  [%s]", s.Processed, s.Total, cli.FormatElapsed(time.Since(start)))
	}
	ctrl.Start()

	done := make(chan error, 1)
	go func() {
		done <- ctrl.Wait(ctx)
	}()

	for {
		select {
		case err := <-done:
			show()
			fmt.Fprintln(progress)
			return err
		case <-changes:
			show()
		}
	}
}

func writeCSVFile(path string, items []batch.Item) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := export.WriteCSV(f, items); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
