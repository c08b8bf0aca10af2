package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ppiankov/donortrace/internal/llm"
	"github.com/ppiankov/donortrace/internal/logging"
	"github.com/ppiankov/donortrace/internal/metrics"
	"github.com/ppiankov/donortrace/internal/model"
	"github.com/ppiankov/donortrace/internal/pipeline"
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=..."
var Version = "dev"

var (
	cfgFile     string
	verbose     bool
	logJSON     bool
	metricsAddr string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "donortrace",
	Short: "donortrace - donor and legislator conflict-of-interest analysis",
	Long: `donortrace looks for potential conflicts of interest between a legislator's
campaign donors and the bills they voted on or sponsored.

It combines public vote, sponsorship and donation records with a generative
model and reports connections together with the evidence behind them.

Findings are leads for further reporting, not findings of wrongdoing.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command until it finishes or the process is
// interrupted
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("donortrace %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.donortrace/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "log as JSON instead of console text")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address during the run (e.g. :9090)")
	rootCmd.PersistentFlags().String("provider", "", "model provider (gemini, openai, anthropic)")
	rootCmd.PersistentFlags().String("model", "", "model name")

	// Bind flags to viper
	_ = viper.BindPFlag("output.verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("output.log_json", rootCmd.PersistentFlags().Lookup("log-json"))
	_ = viper.BindPFlag("output.metrics_addr", rootCmd.PersistentFlags().Lookup("metrics-addr"))
	_ = viper.BindPFlag("llm.provider", rootCmd.PersistentFlags().Lookup("provider"))
	_ = viper.BindPFlag("llm.model", rootCmd.PersistentFlags().Lookup("model"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads .env, the config file and DONORTRACE_* variables
func initConfig() {
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		dir, err := configDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}
		viper.AddConfigPath(dir)
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("DONORTRACE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	if err := registerDefaults(viper.GetViper(), model.DefaultConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "Error registering defaults: %v\n", err)
	}

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".donortrace"), nil
}

// runtimeEnv is what a command needs to run an analysis
type runtimeEnv struct {
	cfg     *model.Config
	logger  *zap.Logger
	metrics *metrics.Collector
	engine  *pipeline.Engine
}

// openEnv loads the configuration, builds the logger and the engine and
// starts the metrics endpoint when one is configured
func openEnv(ctx context.Context, edit func(*model.Config)) (*runtimeEnv, func(), error) {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return nil, nil, err
	}
	if edit != nil {
		edit(cfg)
	}

	logger, err := logging.New(cfg.Output.Verbose, cfg.Output.LogJSON)
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}

	m := metrics.NewCollector()
	if cfg.Output.MetricsAddr != "" {
		go func() {
			if err := m.Serve(ctx, cfg.Output.MetricsAddr, logger); err != nil {
				logger.Warn("metrics endpoint stopped", zap.Error(err))
			}
		}()
	}

	engine, err := pipeline.Build(ctx, cfg, m, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}
	logger.Debug("engine ready",
		zap.String("backend", cfg.Backend.Driver),
		zap.String("provider", engine.Provider.Name()),
		zap.String("model", engine.Provider.Model()))

	cleanup := func() {
		engine.Close()
		_ = logger.Sync()
	}
	return &runtimeEnv{cfg: cfg, logger: logger, metrics: m, engine: engine}, cleanup, nil
}

// describeError prefers the model error's user message when there is one
func describeError(err error) string {
	var me *llm.ModelError
	if errors.As(err, &me) {
		return fmt.Sprintf("%v\n  %s", err, me.UserMessage())
	}
	return err.Error()
}
