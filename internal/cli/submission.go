package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/template"
	"time"

	"github.com/spf13/cobra"

	"github.com/RobinHuo/zrc-benchmarks/internal/archive"
	"github.com/RobinHuo/zrc-benchmarks/internal/benchmark"
	"github.com/RobinHuo/zrc-benchmarks/internal/repo"
	"github.com/RobinHuo/zrc-benchmarks/internal/submission"
	"github.com/RobinHuo/zrc-benchmarks/internal/validation"
	"github.com/RobinHuo/zrc-benchmarks/templates"
)

var (
	paramsReset bool
	verifyWatch bool
)

var submissionCmd = &cobra.Command{
	Use:   "submission",
	Short: "Create, check and package submission directories",
}

var submissionInitCmd = &cobra.Command{
	Use:   "init <name> <location>",
	Short: "Scaffold an empty submission directory for a benchmark",
	Long: `Creates the directory layout a benchmark expects, with a meta.yaml
template and a default params.yaml. The location must not exist yet.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		entry, err := lookupBenchmark(args[0])
		if err != nil {
			return err
		}
		location := args[1]
		if _, err := os.Stat(location); err == nil {
			return exitErrf(ExitBadLocation, "location already exists: %s", location)
		}

		if err := initSubmissionDir(entry, location); err != nil {
			return err
		}
		fmt.Printf("submission directory created at %s\n", location)
		return nil
	},
}

var submissionParamsCmd = &cobra.Command{
	Use:   "params <location>",
	Short: "Show a submission's parameters, creating the file when absent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		location := args[0]
		if err := checkDir(location); err != nil {
			return err
		}
		entry, err := benchmarkOf(location)
		if err != nil {
			return err
		}

		path := filepath.Join(location, submission.ParamsFile)
		if paramsReset {
			if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
		}
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			if err := entry.DefaultParams().Export(path); err != nil {
				return err
			}
			logger.Info("params file created", "path", path)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		fmt.Print(string(data))
		return nil
	},
}

var submissionVerifyCmd = &cobra.Command{
	Use:   "verify <location>",
	Short: "Validate a submission directory against its benchmark",
	Long: `Validates a submission directory against the schema of the benchmark
named in its meta.yaml.

In watch mode (--watch), the directory is re-validated after every
change until interrupted.

Examples:
  zrc submission verify ./my-submission
  zrc submission verify ./my-submission --watch`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		location := args[0]
		if err := checkDir(location); err != nil {
			return err
		}
		entry, err := benchmarkOf(location)
		if err != nil {
			return err
		}
		reg := newRegistry()

		if !verifyWatch {
			return verifyOnce(entry, reg, location)
		}

		if err := verifyOnce(entry, reg, location); err != nil {
			var exitErr *ExitError
			if !errors.As(err, &exitErr) {
				return err
			}
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigCh)
		go func() {
			<-sigCh
			cancel()
		}()

		logger.Info("watching for changes", "location", location)
		w := submission.NewWatcher(location, 500*time.Millisecond, func() {
			if err := verifyOnce(entry, reg, location); err != nil {
				var exitErr *ExitError
				if !errors.As(err, &exitErr) {
					logger.Error("validation failed", "error", err)
				}
			}
		}, logger)
		if err := w.Watch(ctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

var submissionZipCmd = &cobra.Command{
	Use:   "zip <name> <location> <archive>",
	Short: "Pack a submission directory into a zip archive",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := lookupBenchmark(args[0]); err != nil {
			return err
		}
		location, archivePath := args[1], args[2]
		if err := checkDir(location); err != nil {
			return err
		}
		if _, err := os.Stat(archivePath); err == nil {
			return exitErrf(ExitInvalidSubmission, "archive already exists: %s", archivePath)
		}

		if err := archive.CreateZip(location, archivePath); err != nil {
			return err
		}
		fmt.Printf("submission written to %s\n", archivePath)
		return nil
	},
}

var submissionUploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload a submission to zerospeech.com",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("functionality not yet implemented")
		return nil
	},
}

func init() {
	submissionParamsCmd.Flags().BoolVarP(&paramsReset, "reset", "r", false, "reset params.yaml to default values")
	submissionVerifyCmd.Flags().BoolVar(&verifyWatch, "watch", false, "re-validate after every change")

	submissionCmd.AddCommand(submissionInitCmd)
	submissionCmd.AddCommand(submissionParamsCmd)
	submissionCmd.AddCommand(submissionVerifyCmd)
	submissionCmd.AddCommand(submissionZipCmd)
	submissionCmd.AddCommand(submissionUploadCmd)
}

// benchmarkOf resolves the benchmark a submission directory targets
// via its meta sidecar.
func benchmarkOf(location string) (benchmark.Entry, error) {
	name, err := submission.BenchmarkFromDir(location)
	if err != nil {
		return benchmark.Entry{}, exitErrf(ExitUnknownBenchmark, "%s", err)
	}
	return lookupBenchmark(name)
}

// verifyOnce loads and validates the submission, printing the verdict.
func verifyOnce(entry benchmark.Entry, reg *repo.Registry, location string) error {
	sub, err := entry.Load(reg, location, submission.Options{Quiet: true})
	if err != nil {
		return err
	}
	if sub.Valid() {
		validation.ShowValid(os.Stdout, location)
		return nil
	}
	validation.Show(os.Stdout, sub.ValidationOutput())
	return exitErrf(ExitInvalidSubmission, "found errors in submission: %s", location)
}

// initSubmissionDir creates the slot layout of a benchmark's schema
// plus the meta template and default params.
func initSubmissionDir(entry benchmark.Entry, location string) error {
	for _, slot := range entry.Schema {
		path := filepath.Join(location, slot.Path)
		dir := path
		if !slot.List {
			dir = filepath.Dir(path)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	tmpl, err := template.ParseFS(templates.FS, "meta.yaml")
	if err != nil {
		return fmt.Errorf("loading meta template: %w", err)
	}
	metaFile, err := os.Create(filepath.Join(location, submission.MetaFile))
	if err != nil {
		return err
	}
	defer metaFile.Close()
	if err := tmpl.Execute(metaFile, struct{ Benchmark string }{entry.Name}); err != nil {
		return fmt.Errorf("writing meta template: %w", err)
	}

	return entry.DefaultParams().Export(filepath.Join(location, submission.ParamsFile))
}
