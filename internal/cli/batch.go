package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/donortrace/internal/logging"
	"github.com/ppiankov/donortrace/internal/pipeline"
	"github.com/ppiankov/donortrace/internal/report"
	"github.com/ppiankov/donortrace/internal/worker"
)

var (
	concurrency  int
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Analyse several legislators from a file in parallel",
	Long: `Batch analyses every person id listed in the input file (one per line,
"#" starts a comment). Each legislator gets the most recent session, or the
sessions given with --session, and its own reports in the output directory.

Example:
  donortrace batch people.txt
  donortrace batch people.txt --concurrency 4 --output-dir ./reports --mode agent`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "legislators analysed at once (default: concurrency.batch_workers)")
	batchCmd.Flags().StringVar(&modeFlag, "mode", "two-phase", "analysis mode (two-phase, agent)")
	batchCmd.Flags().Int64SliceVar(&sessionIDs, "session", nil, "session id applied to every legislator (repeatable)")
	batchCmd.Flags().BoolVar(&combine, "combine", false, "analyse the selected sessions as one window")
	addRunFlags(batchCmd, &batchTimeout, 2*time.Hour)
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	mode, err := parseMode(modeFlag)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	env, cleanup, err := openEnv(ctx, runFlags)
	if err != nil {
		return err
	}
	defer cleanup()

	workers := concurrency
	if workers <= 0 {
		workers = env.cfg.Concurrency.BatchWorkers
	}

	fmt.Fprintf(os.Stderr, "Batch analysis\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Mode:         %s\n", mode)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", workers)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", env.cfg.Output.Dir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n\n", batchTimeout)

	analyzer := env.engine.WithOptions(pipeline.Options{
		SessionIDs: toIDs(sessionIDs),
		Combine:    combine,
		Mode:       mode,
	})
	processor := worker.NewBatchProcessor(analyzer, workers)

	start := time.Now()
	results, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	renderer := report.NewRenderer(env.cfg.Output.IncludeFooter)
	stats := writeBatch(renderer, results, env.cfg.Output.Dir, env.logger)

	fmt.Fprintf(os.Stderr, "\nBatch complete in %s\n", time.Since(start).Round(time.Second))
	fmt.Fprintf(os.Stderr, "  Legislators: %d\n", len(results))
	fmt.Fprintf(os.Stderr, "  Succeeded:   %d\n", stats.succeeded)
	fmt.Fprintf(os.Stderr, "  Partial:     %d\n", stats.partial)
	fmt.Fprintf(os.Stderr, "  Failed:      %d\n", stats.failed)
	fmt.Fprintf(os.Stderr, "  Reports:     %d\n", stats.reports)

	if stats.failed > 0 && stats.failed == len(results) {
		return fmt.Errorf("all %d analyses failed", stats.failed)
	}
	return nil
}

type batchStats struct {
	succeeded, partial, failed, reports int
}

// writeBatch writes every report and tallies the outcomes. A legislator
// with reports and an error counts as partial.
func writeBatch(renderer *report.Renderer, results []*worker.PersonResult, dir string, logger *zap.Logger) batchStats {
	logger = logging.OrNop(logger)
	var stats batchStats
	for _, res := range results {
		switch {
		case res.Error == nil:
			stats.succeeded++
		case len(res.Reports) > 0:
			stats.partial++
		default:
			stats.failed++
		}
		if res.Error != nil {
			fmt.Fprintf(os.Stderr, "x %s: %s\n", res.PersonID, describeError(res.Error))
		}

		for _, r := range res.Reports {
			if _, err := writeReport(renderer, r, dir); err != nil {
				logger.Error("write report", zap.String("person_id", res.PersonID.String()), zap.Error(err))
				continue
			}
			stats.reports++
			fmt.Fprintf(os.Stderr, "ok %s\n", report.Summary(r))
		}
	}
	return stats
}

var _ worker.Analyzer = (*pipeline.Pipeline)(nil)
