// Package cli implements the deepdrugkit command tree: preprocess, split,
// train, and evaluate over a shared configuration and logging context.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/deepdrugkit/deepdrugkit/internal/config"
	"github.com/deepdrugkit/deepdrugkit/internal/infrastructure/monitoring/logging"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// RootOptions holds the global CLI flags.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
	Verbose    bool
}

// CLIContext carries initialised dependencies through the command tree.
type CLIContext struct {
	Config *config.Config
	Logger logging.Logger
	// RunID tags every log line and artifact of one invocation.
	RunID string
}

type cliContextKey struct{}

// NewRootCommand creates the root command with global flags and subcommands.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:     "deepdrugkit",
		Short:   "Drug-target interaction and affinity prediction toolkit",
		Long:    "deepdrugkit trains and evaluates drug-target interaction (DTI) and\nbinding-affinity (DTA) models over SMILES/protein-sequence datasets, with\nconfigurable preprocessing pipelines and deterministic splits.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return persistentPreRun(cmd, opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default: ./deepdrugkit.yaml)")
	pf.StringVar(&opts.LogLevel, "log-level", "", "log level override (debug, info, warn, error)")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(
		newPreprocessCmd(),
		newSplitCmd(),
		newTrainCmd(),
		newEvaluateCmd(),
	)
	return cmd
}

func persistentPreRun(cmd *cobra.Command, opts *RootOptions) error {
	cfg, err := initConfig(opts)
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	logger, err := initLogger(cfg, opts)
	if err != nil {
		return fmt.Errorf("logger initialization failed: %w", err)
	}
	logging.SetDefault(logger)

	cliCtx := &CLIContext{
		Config: cfg,
		Logger: logger,
		RunID:  uuid.NewString(),
	}
	cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey{}, cliCtx))
	return nil
}

// GetCLIContext extracts the CLIContext stored by persistentPreRun.
func GetCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	v := cmd.Context().Value(cliContextKey{})
	cliCtx, ok := v.(*CLIContext)
	if !ok {
		return nil, fmt.Errorf("CLI context not initialised")
	}
	return cliCtx, nil
}

// initConfig loads configuration with priority flags > env > file > defaults.
func initConfig(opts *RootOptions) (*config.Config, error) {
	if opts.ConfigPath != "" {
		return config.Load(opts.ConfigPath)
	}

	searchPaths := []string{"./deepdrugkit.yaml"}
	if homeDir, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(homeDir, ".deepdrugkit", "config.yaml"))
	}
	for _, p := range searchPaths {
		if _, statErr := os.Stat(p); statErr == nil {
			return config.Load(p)
		}
	}
	return config.LoadFromEnv()
}

// initLogger builds a console logger on stderr so command output stays clean
// on stdout.
func initLogger(cfg *config.Config, opts *RootOptions) (logging.Logger, error) {
	level := cfg.Log.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	if opts.Verbose {
		level = "debug"
	}
	return logging.NewLogger(logging.LogConfig{
		Level:            level,
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}
