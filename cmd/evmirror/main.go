// File: cmd/evmirror/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/chainsound/evmirror/internal/config"
	"github.com/chainsound/evmirror/internal/connection"
	"github.com/chainsound/evmirror/internal/metrics"
	"github.com/chainsound/evmirror/internal/models"
	"github.com/chainsound/evmirror/internal/notification"
	"github.com/chainsound/evmirror/internal/report"
	"github.com/chainsound/evmirror/internal/server"
	"github.com/chainsound/evmirror/internal/storage"
	"github.com/chainsound/evmirror/internal/verify"
	"github.com/chainsound/evmirror/pkg/utils"
)

// AppVersion contains the application version
const AppVersion = "1.0.0"

var jsonOutput bool

// rootCmd runs a mirror verification when called without subcommands
var rootCmd = &cobra.Command{
	Use:   "evmirror",
	Short: "Cross-chain event mirror soundness checker",
	Long: `evmirror verifies that a smart-contract event is emitted a consistent
number of times on two independent chains, within an allowed drift, over
given block ranges. Useful for validating bridge, relayer and rollup
inbox/outbox mirroring invariants.`,
	Version:       AppVersion,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runVerify,
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		return utils.NewAppError(utils.ErrCodeConfiguration, "Failed to load configuration", err.Error())
	}

	logCfg := cfg.Logging
	if err := utils.InitLogger(logCfg.Level, logCfg.Format, logCfg.Output, logCfg.File); err != nil {
		return utils.NewAppError(utils.ErrCodeConfiguration, "Failed to initialize logger", err.Error())
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	contract, err := utils.ChecksumAddress(cfg.Verify.ContractAddress)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsManager := metrics.GetManager()

	srcConn, err := connection.Dial(ctx, "source", cfg.Source.Endpoint, cfg.Source.RequestTimeout)
	if err != nil {
		return err
	}
	defer srcConn.Close()
	srcConn.SetMetrics(metricsManager)

	dstConn, err := connection.Dial(ctx, "destination", cfg.Destination.Endpoint, cfg.Destination.RequestTimeout)
	if err != nil {
		return err
	}
	defer dstConn.Close()
	dstConn.SetMetrics(metricsManager)

	srcRange, err := resolveRange(ctx, &cfg.Source, srcConn, cfg.Verify.TrailingWindow)
	if err != nil {
		return err
	}
	dstRange, err := resolveRange(ctx, &cfg.Destination, dstConn, cfg.Verify.TrailingWindow)
	if err != nil {
		return err
	}

	verifier := verify.NewVerifier(
		verify.Chain{Role: "source", Endpoint: cfg.Source.Endpoint, Backend: srcConn, Range: srcRange},
		verify.Chain{Role: "destination", Endpoint: cfg.Destination.Endpoint, Backend: dstConn, Range: dstRange},
		verify.Options{
			Step:         cfg.Verify.Step,
			AllowedDrift: cfg.Verify.AllowedDrift,
			Concurrency:  cfg.Verify.Concurrency,
			Retry: verify.RetryPolicy{
				MaxAttempts: cfg.Verify.RetryAttempts,
				BaseDelay:   cfg.Verify.RetryDelay,
				MaxDelay:    cfg.Verify.MaxRetryDelay,
			},
			TrailingWindow: cfg.Verify.TrailingWindow,
		},
	)
	verifier.SetMetrics(metricsManager)

	run, err := verifier.Run(ctx, cfg.Verify.Signature, contract)
	if err != nil {
		return err
	}

	persistRun(ctx, cfg, run)
	notifyMismatch(ctx, cfg, run)

	if jsonOutput {
		if err := report.WriteJSON(os.Stdout, run); err != nil {
			return err
		}
	} else {
		report.WriteText(os.Stdout, run)
	}

	os.Exit(report.VerdictExitCode(run))
	return nil
}

// resolveRange turns configured block bounds into a verifier range. Fully
// unset bounds stay nil so the verifier resolves its own trailing window;
// a partially set range is completed from the chain head here.
func resolveRange(ctx context.Context, chain *config.ChainConfig, conn *connection.ChainConnection, window uint64) (*verify.BlockRange, error) {
	if chain.FromBlock < 0 && chain.ToBlock < 0 {
		return nil, nil
	}

	if chain.FromBlock >= 0 && chain.ToBlock >= 0 {
		rng, err := verify.NewBlockRange(uint64(chain.FromBlock), uint64(chain.ToBlock))
		if err != nil {
			return nil, err
		}
		return &rng, nil
	}

	latest, err := conn.BlockNumber(ctx)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeBlockchain, "Failed to resolve chain head", err.Error())
	}

	from := uint64(0)
	if chain.FromBlock >= 0 {
		from = uint64(chain.FromBlock)
	} else if latest > window {
		from = latest - window
	}
	to := latest
	if chain.ToBlock >= 0 {
		to = uint64(chain.ToBlock)
	}

	rng, err := verify.NewBlockRange(from, to)
	if err != nil {
		return nil, err
	}
	return &rng, nil
}

// persistRun saves the run to the configured history store. Persistence
// problems are logged, not fatal: the verdict already exists.
func persistRun(ctx context.Context, cfg *config.Config, run *models.VerificationRun) {
	if !cfg.Storage.Enabled {
		return
	}
	logger := utils.GetLogger()

	store, err := storage.NewStorage(&cfg.Storage)
	if err != nil {
		logger.WithError(err).Warn("Failed to create run history store")
		return
	}
	if err := store.Connect(); err != nil {
		logger.WithError(err).Warn("Failed to connect run history store")
		return
	}
	defer store.Close()

	if err := store.Migrate(); err != nil {
		logger.WithError(err).Warn("Failed to migrate run history store")
		return
	}
	if err := store.SaveRun(ctx, run); err != nil {
		logger.WithError(err).Warn("Failed to save verification run")
		return
	}
	if err := store.Cleanup(ctx, cfg.Storage.RetentionDays); err != nil {
		logger.WithError(err).Warn("Failed to clean up old runs")
	}
}

// notifyMismatch posts an unsound verdict to the configured webhook
func notifyMismatch(ctx context.Context, cfg *config.Config, run *models.VerificationRun) {
	if run.Verdict.Sound || !cfg.Notification.Enabled {
		return
	}
	notifier := notification.NewWebhookNotifier(&cfg.Notification)
	if err := notifier.NotifyMismatch(ctx, run); err != nil {
		utils.GetLogger().WithError(err).Warn("Failed to deliver mismatch notification")
	}
}

// versionCmd prints the version number
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("evmirror %s\n", AppVersion)
	},
}

// configCmd groups configuration management commands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
}

// validateConfigCmd validates the configuration
var validateConfigCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(viper.GetString("config"))
		if err != nil {
			return utils.NewAppError(utils.ErrCodeConfiguration, "Failed to load configuration", err.Error())
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		fmt.Println("Configuration is valid!")
		fmt.Printf("Contract: %s\n", cfg.Verify.ContractAddress)
		fmt.Printf("Event: %s\n", cfg.Verify.Signature)
		fmt.Printf("Source RPC: %s\n", cfg.Source.Endpoint)
		fmt.Printf("Destination RPC: %s\n", cfg.Destination.Endpoint)
		return nil
	},
}

// serveCmd runs the HTTP API over the run history
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve run history, health and metrics over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(viper.GetString("config"))
		if err != nil {
			return utils.NewAppError(utils.ErrCodeConfiguration, "Failed to load configuration", err.Error())
		}

		logCfg := cfg.Logging
		if err := utils.InitLogger(logCfg.Level, logCfg.Format, logCfg.Output, logCfg.File); err != nil {
			return utils.NewAppError(utils.ErrCodeConfiguration, "Failed to initialize logger", err.Error())
		}

		if !cfg.Storage.Enabled {
			return utils.NewAppError(utils.ErrCodeConfiguration,
				"Run history storage must be enabled for serve mode")
		}

		store, err := storage.NewStorage(&cfg.Storage)
		if err != nil {
			return err
		}
		if err := store.Connect(); err != nil {
			return err
		}
		defer store.Close()
		if err := store.Migrate(); err != nil {
			return err
		}

		srv := server.NewHTTPServer(&cfg.Server, store, metrics.GetManager())
		if err := srv.Start(); err != nil {
			return err
		}

		signalChan := make(chan os.Signal, 1)
		signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
		<-signalChan

		utils.GetLogger().Info("Received shutdown signal, stopping server")
		return srv.Stop()
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))

	flags := rootCmd.Flags()
	flags.String("src-rpc", "", "source chain RPC URL")
	flags.String("dst-rpc", "", "destination chain RPC URL")
	flags.String("address", "", "contract address to inspect on both chains")
	flags.String("signature", "", "event signature, e.g. Transfer(address,address,uint256)")
	flags.Int64("src-from", -1, "source chain start block (inclusive)")
	flags.Int64("src-to", -1, "source chain end block (inclusive)")
	flags.Int64("dst-from", -1, "destination chain start block (inclusive)")
	flags.Int64("dst-to", -1, "destination chain end block (inclusive)")
	flags.Uint64("step", 2000, "block chunk size per request")
	flags.Uint64("allow-drift", 0, "allowed difference in counts before marking mismatch")
	flags.Int("concurrency", 4, "concurrent chunk queries per chain")
	flags.Duration("timeout", 30*time.Second, "per-request RPC timeout")
	flags.BoolVar(&jsonOutput, "json", false, "emit JSON summary to stdout")

	viper.BindPFlag("source.endpoint", flags.Lookup("src-rpc"))
	viper.BindPFlag("destination.endpoint", flags.Lookup("dst-rpc"))
	viper.BindPFlag("verify.contract_address", flags.Lookup("address"))
	viper.BindPFlag("verify.signature", flags.Lookup("signature"))
	viper.BindPFlag("source.from_block", flags.Lookup("src-from"))
	viper.BindPFlag("source.to_block", flags.Lookup("src-to"))
	viper.BindPFlag("destination.from_block", flags.Lookup("dst-from"))
	viper.BindPFlag("destination.to_block", flags.Lookup("dst-to"))
	viper.BindPFlag("verify.step", flags.Lookup("step"))
	viper.BindPFlag("verify.allowed_drift", flags.Lookup("allow-drift"))
	viper.BindPFlag("verify.concurrency", flags.Lookup("concurrency"))
	viper.BindPFlag("source.request_timeout", flags.Lookup("timeout"))
	viper.BindPFlag("destination.request_timeout", flags.Lookup("timeout"))

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
	configCmd.AddCommand(validateConfigCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(report.ErrorExitCode(err))
	}
}
