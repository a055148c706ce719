package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/himanishpuri/AmramAI/internal/config"
	"github.com/himanishpuri/AmramAI/pkg/amram"
	"github.com/himanishpuri/AmramAI/pkg/logger"
)

var version = "dev"

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "amram",
		Short:         "AmramAI - split songs into stems and remix them",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMenu(cmd)
		},
	}

	addGlobalFlags(rootCmd)

	rootCmd.AddCommand(newInfoCmd())
	rootCmd.AddCommand(newDownloadCmd())
	rootCmd.AddCommand(newSeparateCmd())
	rootCmd.AddCommand(newMixCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newDeleteCmd())
	rootCmd.AddCommand(newMenuCmd())
	return rootCmd
}

func addGlobalFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.String("config", getEnvOrDefault("AMRAM_CONFIG", ""), "Path to config.yaml (env: AMRAM_CONFIG, default: ~/.config/amram/config.yaml)")
	f.String("data", "", "Data directory for downloads, stems and history (env: AMRAM_DATA_DIR)")
	f.String("model", "", "Separation model: htdemucs, htdemucs_ft, htdemucs_6s, mdx_extra (env: AMRAM_MODEL)")
	f.String("device", "", "Inference device: cpu, cuda or auto (env: AMRAM_DEVICE)")
	f.Int("rate", 0, "Processing sample rate in Hz (env: AMRAM_SAMPLE_RATE)")
	f.Float64("window", 0, "Window length in seconds (env: AMRAM_SEGMENT_SECONDS)")
	f.Float64("overlap", 0, "Overlap between windows in seconds (env: AMRAM_OVERLAP_SECONDS)")
	f.String("log-level", "", "DEBUG, INFO, WARN or ERROR (env: AMRAM_LOG_LEVEL)")
}

// loadConfig reads the config file and environment, then applies any flags
// set on the command line.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("data") {
		cfg.DataDir, _ = flags.GetString("data")
	}
	if flags.Changed("model") {
		cfg.Model, _ = flags.GetString("model")
	}
	if flags.Changed("device") {
		cfg.Device, _ = flags.GetString("device")
	}
	if flags.Changed("rate") {
		cfg.SampleRate, _ = flags.GetInt("rate")
	}
	if flags.Changed("window") {
		cfg.Segment.WindowSeconds, _ = flags.GetFloat64("window")
	}
	if flags.Changed("overlap") {
		cfg.Segment.OverlapSeconds, _ = flags.GetFloat64("overlap")
	}
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.ApplyLogging(); err != nil {
		return nil, fmt.Errorf("log file: %w", err)
	}
	return cfg, nil
}

// createService creates the AmramAI service from the resolved configuration.
func createService(cmd *cobra.Command) (amram.Service, *config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	logger.GetLogger().Debugf("Using data dir %s, model %s on %s", cfg.DataDir, cfg.Model, cfg.Device)

	svc, err := amram.NewService(cfg.ServiceOptions()...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create service: %w", err)
	}
	return svc, cfg, nil
}
