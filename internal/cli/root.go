// Package cli implements the zrc command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/RobinHuo/zrc-benchmarks/internal/config"
	"github.com/RobinHuo/zrc-benchmarks/internal/repo"
)

var (
	cfgFile string
	verbose bool
	quiet   bool
	cfg     *config.Config
	logger  *slog.Logger
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "zrc",
	Short: "Zero Resource speech benchmark toolkit",
	Long: `zrc validates and scores submissions to the Zero Resource speech
benchmarks, and manages the datasets they are scored against.

A submission is a directory laid out per the benchmark's schema plus
optional meta.yaml and params.yaml sidecars. Scoring writes CSV
reports into the submission's score directory.

Typical flow:
  zrc update-index
  zrc datasets pull sLM21-dataset
  zrc submission init sLM21 ./my-submission
  zrc submission verify ./my-submission
  zrc benchmarks run sLM21 ./my-submission`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for help
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		if quiet {
			level = slog.LevelError
		}
		logger = slog.New(tint.NewHandler(os.Stderr, &tint.Options{
			Level: level,
		}))

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		return nil
	},
}

// Execute runs the root command, mapping typed errors onto process
// exit codes.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./zrc.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress progress output")

	rootCmd.AddCommand(benchmarksCmd)
	rootCmd.AddCommand(datasetsCmd)
	rootCmd.AddCommand(checkpointsCmd)
	rootCmd.AddCommand(submissionCmd)
	rootCmd.AddCommand(updateIndexCmd)
	rootCmd.AddCommand(versionCmd)
}

// newRegistry builds the item registry without download support, for
// commands that only read local state.
func newRegistry() *repo.Registry {
	return repo.NewRegistry(cfg, nil, logger)
}

// newPullRegistry builds a registry that can download items.
func newPullRegistry(ctx context.Context) (*repo.Registry, error) {
	dl, err := repo.NewDownloader(ctx, logger)
	if err != nil {
		return nil, err
	}
	return repo.NewRegistry(cfg, dl, logger), nil
}

// Version information (set by build flags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("zrc version %s\n", Version)
		fmt.Printf("  commit: %s\n", Commit)
		fmt.Printf("  built:  %s\n", BuildDate)
	},
}
