package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/donortrace/internal/model"
	"github.com/ppiankov/donortrace/internal/pipeline"
	"github.com/ppiankov/donortrace/internal/report"
)

var (
	personID   int64
	sessionIDs []int64
	combine    bool
	modeFlag   string
	legName    string
	outputDir  string
	timeout    time.Duration
	noCache    bool
	noPersist  bool
	noFooter   bool
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyse one legislator for donor conflicts of interest",
	Long: `Analyze looks for connections between a legislator's donors and the bills
they voted on or sponsored.

two-phase (default): the model proposes donor/bill groups from votes and
donations, then the strongest groups are checked against the full bill text.

agent: the model drives its own investigation by calling data tools.

Without --session the most recent session is analysed. Several sessions are
analysed one by one, or as one window with --combine.

Example:
  donortrace analyze --person 12345
  donortrace analyze --person 12345 --session 2021 --session 2022 --combine
  donortrace analyze --person 12345 --mode agent --name "Pat Smith"`,
	Args: cobra.NoArgs,
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().Int64Var(&personID, "person", 0, "legislator person id (required)")
	analyzeCmd.Flags().Int64SliceVar(&sessionIDs, "session", nil, "session id (repeatable; default: most recent)")
	analyzeCmd.Flags().BoolVar(&combine, "combine", false, "analyse the selected sessions as one window")
	analyzeCmd.Flags().StringVar(&modeFlag, "mode", "two-phase", "analysis mode (two-phase, agent)")
	analyzeCmd.Flags().StringVar(&legName, "name", "", "legislator display name")
	_ = analyzeCmd.MarkFlagRequired("person")
	addRunFlags(analyzeCmd, &timeout, 30*time.Minute)
}

// addRunFlags registers the flags shared by commands that run analyses
func addRunFlags(cmd *cobra.Command, timeoutVar *time.Duration, defaultTimeout time.Duration) {
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "output directory for reports (default: output.dir)")
	cmd.Flags().DurationVar(timeoutVar, "timeout", defaultTimeout, "overall timeout")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the backend cache")
	cmd.Flags().BoolVar(&noPersist, "no-persist", false, "do not call the save_* procedures")
	cmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")
}

// runFlags applies the shared flags to the loaded configuration
func runFlags(cfg *model.Config) {
	if noCache {
		cfg.Cache.Enabled = false
	}
	if noPersist {
		cfg.Analysis.Persist = false
	}
	if noFooter {
		cfg.Output.IncludeFooter = false
	}
	if outputDir != "" {
		cfg.Output.Dir = outputDir
	}
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	mode, err := parseMode(modeFlag)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	env, cleanup, err := openEnv(ctx, runFlags)
	if err != nil {
		return err
	}
	defer cleanup()

	opts := pipeline.Options{
		Name:       legName,
		SessionIDs: toIDs(sessionIDs),
		Combine:    combine,
		Mode:       mode,
	}
	reports, runErr := env.engine.Analyze(ctx, model.ID(personID), opts)

	renderer := report.NewRenderer(env.cfg.Output.IncludeFooter)
	for _, r := range reports {
		path, err := writeReport(renderer, r, env.cfg.Output.Dir)
		if err != nil {
			env.logger.Error("write report", zap.Error(err))
			continue
		}
		renderer.RenderSummary(os.Stdout, r)
		fmt.Fprintf(os.Stderr, "  wrote %s\n", path)
	}

	if runErr != nil {
		var ve *pipeline.ValidationError
		if errors.As(runErr, &ve) {
			return runErr
		}
		return fmt.Errorf("analysis failed: %s", describeError(runErr))
	}
	return nil
}
