package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/RobinHuo/zrc-benchmarks/internal/benchmark"
	"github.com/RobinHuo/zrc-benchmarks/internal/submission"
	"github.com/RobinHuo/zrc-benchmarks/internal/validation"
)

var (
	runOutput         string
	runSkipValidation bool
	runSets           []string
	runTasks          []string
)

var benchmarksCmd = &cobra.Command{
	Use:   "benchmarks",
	Short: "List and run the available benchmarks",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("Available benchmarks: %s\n", strings.Join(benchmark.Names(), ", "))
		return nil
	},
}

var benchmarksInfoCmd = &cobra.Command{
	Use:   "info <name>",
	Short: "Describe a benchmark",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entry, err := lookupBenchmark(args[0])
		if err != nil {
			return err
		}
		fmt.Println(entry.Doc)
		return nil
	},
}

var benchmarksRunCmd = &cobra.Command{
	Use:   "run <name> <submission_dir>",
	Short: "Score a submission directory",
	Long: `Validates a submission directory and runs the benchmark's scoring
tasks over it, writing CSV reports into the score directory
(default: <submission_dir>/scores).

Examples:
  zrc benchmarks run sLM21 ./my-submission
  zrc benchmarks run sLM21 ./my-submission -o ./results -s dev -t lexical`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		entry, err := lookupBenchmark(args[0])
		if err != nil {
			return err
		}
		location := args[1]
		if err := checkDir(location); err != nil {
			return err
		}

		reg := newRegistry()
		sub, err := entry.Load(reg, location, submission.Options{
			Sets:      runSets,
			Tasks:     runTasks,
			ScoreRoot: runOutput,
			Quiet:     quiet,
		})
		if err != nil {
			return err
		}

		if !runSkipValidation && !sub.Valid() {
			validation.Show(os.Stderr, sub.ValidationOutput())
			return exitErrf(ExitInvalidSubmission, "found errors in submission: %s", location)
		}

		b := entry.New(reg, logger)
		if err := b.Run(cmd.Context(), sub); err != nil {
			return err
		}

		outDir, err := sub.ScoreDir()
		if err != nil {
			return err
		}
		logger.Info("benchmark complete", "benchmark", entry.Name, "scores", outDir)
		return nil
	},
}

var benchmarksParamsCmd = &cobra.Command{
	Use:   "params <name> <submission_dir>",
	Short: "Reset a submission's params.yaml to the benchmark defaults",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		entry, err := lookupBenchmark(args[0])
		if err != nil {
			return err
		}
		if err := checkDir(args[1]); err != nil {
			return err
		}

		path := filepath.Join(args[1], submission.ParamsFile)
		if err := entry.DefaultParams().Export(path); err != nil {
			return err
		}
		fmt.Printf("params file created at %s\n", path)
		return nil
	},
}

func init() {
	benchmarksRunCmd.Flags().StringVarP(&runOutput, "output", "o", "", "score output directory (default: <submission_dir>/scores)")
	benchmarksRunCmd.Flags().BoolVar(&runSkipValidation, "skip-validation", false, "skip submission validation")
	benchmarksRunCmd.Flags().StringSliceVarP(&runSets, "sets", "s", nil, "limit the sets the benchmark runs on")
	benchmarksRunCmd.Flags().StringSliceVarP(&runTasks, "tasks", "t", nil, "limit the tasks the benchmark runs")

	benchmarksCmd.AddCommand(benchmarksInfoCmd)
	benchmarksCmd.AddCommand(benchmarksRunCmd)
	benchmarksCmd.AddCommand(benchmarksParamsCmd)
}

// lookupBenchmark resolves a benchmark name, attaching the exit code
// for unknown names.
func lookupBenchmark(name string) (benchmark.Entry, error) {
	entry, err := benchmark.Lookup(name)
	if err != nil {
		return benchmark.Entry{}, exitErrf(ExitUnknownBenchmark,
			"%s (available: %s)", err, strings.Join(benchmark.Names(), ", "))
	}
	return entry, nil
}

// checkDir fails with the bad-location exit code when location is not
// an existing directory.
func checkDir(location string) error {
	info, err := os.Stat(location)
	if err != nil || !info.IsDir() {
		return exitErrf(ExitBadLocation, "not a directory: %s", location)
	}
	return nil
}
