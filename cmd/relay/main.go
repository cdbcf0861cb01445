// Command relay processes a manifest workbook from disk and relays its rows
// to the configured sheet endpoints, showing progress in the terminal.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"manifest-relay/internal/config"
	"manifest-relay/internal/logger"
	"manifest-relay/internal/pipeline"

	"github.com/spf13/cobra"
)

var (
	configPath string
	tomorrow   bool
	pickupURL  string
	dropoffURL string
	rowDelay   time.Duration
	dryRun     bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "relay",
		Short: "Relay rental pickup and dropoff manifests to the shared sheets",
		// errors are reported once, in operator wording, below
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: $CONFIG_PATH or config.yaml)")

	runCmd := &cobra.Command{
		Use:   "run [manifest.xlsx]",
		Short: "Clean, order and upload one manifest workbook",
		Args:  cobra.ExactArgs(1),
		RunE:  run,
	}
	runCmd.Flags().BoolVar(&tomorrow, "tomorrow", false, "Upload to the next-day sheets")
	runCmd.Flags().StringVar(&pickupURL, "pickup-url", "", "Override the pickup endpoint")
	runCmd.Flags().StringVar(&dropoffURL, "dropoff-url", "", "Override the dropoff endpoint")
	runCmd.Flags().DurationVar(&rowDelay, "delay", -1, "Pause between rows (default from config)")
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the ordered rows as JSON instead of uploading")

	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, describe(err))
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if rowDelay >= 0 {
		cfg.Sink.RowDelay = rowDelay
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.Get()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("could not read the selected file: %w", err)
	}

	dest := cfg.Destinations(tomorrow)
	if pickupURL != "" {
		dest.Pickup = pickupURL
	}
	if dropoffURL != "" {
		dest.Dropoff = dropoffURL
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p := pipeline.NewFromConfig(cfg)

	if dryRun {
		batches, err := p.Prepare(ctx, data, dest, tomorrow)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(batches)
	}

	log.Info().Str("file", args[0]).Bool("tomorrow", tomorrow).Msg("Processing file")

	obs := newConsoleObserver(cmd.ErrOrStderr())
	if err := p.Run(ctx, data, dest, tomorrow, obs); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "File submitted successfully!")
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	cfg, err := config.Load()
	if errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	return cfg, err
}
