// Package cli wires the probe together behind a cobra command tree.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"x402probe/internal/adapters/docsource"
	"x402probe/internal/adapters/runstore"
	"x402probe/internal/adapters/summary"
	"x402probe/internal/config"
	"x402probe/internal/contract"
	"x402probe/internal/report"
	"x402probe/internal/service"
	"x402probe/internal/x402"
)

var (
	flagConfig       string
	flagAPIURL       string
	flagDataDir      string
	flagPollInterval time.Duration
	flagMaxPolls     int
	flagMaxValue     uint64
	flagTimeout      time.Duration
	verbose          bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "x402probe",
	Short: "End-to-end probe for x402 payment-gated summarization services",
	Long: `x402probe drives a payment-gated document summarization service through
its full flow: liveness check, unpaid rejection, automatic 402 payment,
payment replay rejection, and polling the job to completion.

The signing key comes from the PRIVATE_KEY environment variable (a .env
file next to the binary is loaded if present).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Environment variables may also be set directly.
		if err := godotenv.Load(); err == nil {
			cmd.Printf("loaded environment from .env\n")
		}

		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var runCmd = &cobra.Command{
	Use:   "run [document]",
	Short: "Run the probe against a service",
	Long: `Run the full probe sequence. The optional argument is the document to
summarize: a local file path (default test_document.txt) or an http(s) URL.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		docRef := ""
		if len(args) == 1 {
			docRef = args[0]
		}
		return runProbe(cmd, docRef)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "x402probe.yaml", "path to an optional YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	runCmd.Flags().StringVar(&flagAPIURL, "api-url", config.DefaultAPIURL, "base URL of the summarization service")
	runCmd.Flags().StringVar(&flagDataDir, "data-dir", "./data", "directory for run artifacts")
	runCmd.Flags().DurationVar(&flagPollInterval, "poll-interval", 4*time.Second, "interval between job status polls")
	runCmd.Flags().IntVar(&flagMaxPolls, "max-polls", 150, "maximum number of status polls")
	runCmd.Flags().Uint64Var(&flagMaxValue, "max-value", config.DefaultMaxValue, "maximum payment value in the asset's smallest unit")
	runCmd.Flags().DurationVar(&flagTimeout, "timeout", 60*time.Second, "paid request timeout")

	rootCmd.AddCommand(runCmd)
}

// Execute runs the command tree.
func Execute() error {
	return rootCmd.Execute()
}

func runProbe(cmd *cobra.Command, docRef string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	applyFlagOverrides(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	wallet, err := x402.NewWallet(cfg.PrivateKey)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	document, err := docsource.NewSource().Load(ctx, docRef)
	if err != nil {
		return err
	}

	validator, err := contract.NewValidator()
	if err != nil {
		return err
	}

	renderer := report.NewRenderer(os.Stdout)
	poller := &service.Poller{
		Interval:    cfg.PollInterval,
		MaxAttempts: cfg.MaxPolls,
		Sleeper:     service.NewSleeper(),
		Validator:   validator,
		Logger:      logger,
		OnProgress:  renderer.Progress,
	}

	orchestrator := service.NewOrchestrator(
		summary.NewClient(cfg.APIURL, wallet, cfg.MaxValue, cfg.PaidTimeout),
		runstore.NewStore(cfg.DataDir),
		poller,
		renderer,
		logger,
	)

	_, err = orchestrator.Run(ctx, service.RunInput{
		ServiceURL:    cfg.APIURL,
		WalletAddress: wallet.Address(),
		Document:      document,
	})
	return err
}

// applyFlagOverrides lets explicit flags win over file and environment.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("api-url") {
		cfg.APIURL = flagAPIURL
	}
	if flags.Changed("data-dir") {
		cfg.DataDir = flagDataDir
	}
	if flags.Changed("poll-interval") {
		cfg.PollInterval = flagPollInterval
	}
	if flags.Changed("max-polls") {
		cfg.MaxPolls = flagMaxPolls
	}
	if flags.Changed("max-value") {
		cfg.MaxValue = flagMaxValue
	}
	if flags.Changed("timeout") {
		cfg.PaidTimeout = flagTimeout
	}
}
