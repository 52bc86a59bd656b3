package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/bjaus/evproc"
	"github.com/bjaus/evproc/internal/rules"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	RulesPath string
	InputPath string
}

// RunSummary is printed after all events are processed.
type RunSummary struct {
	Events int `json:"events"`
	Failed int `json:"failed"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Dispatch events through a rules file",
		Long: `Read newline-delimited JSON events and dispatch each one through the
rules in the rules file. Every emitted action is printed as it happens.

Events are read from stdin unless --input is given. Settings such as the
dispatch timeout and log destination come from EVPROC_* variables.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().StringVar(&opts.RulesPath, "rules", "", "path to the rules file (required)")
	cmd.Flags().StringVar(&opts.InputPath, "input", "", "path to an NDJSON events file (default stdin)")
	_ = cmd.MarkFlagRequired("rules")

	return cmd
}

func runRun(cmd *cobra.Command, rootOpts *RootOptions, opts *RunOptions) error {
	printer := &Printer{
		Format:    rootOpts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   rootOpts.Verbose,
	}

	cfg, err := evproc.LoadConfig()
	if err != nil {
		return WrapExitError(ExitCommandError, "load config", err)
	}

	file, err := rules.Load(opts.RulesPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "load rules", err)
	}
	registry, err := rules.Compile(file)
	if err != nil {
		return WrapExitError(ExitFailure, "compile rules", err)
	}
	printer.VerboseLog("loaded %d rule(s) from %s", registry.Len(), opts.RulesPath)

	input, closeInput, err := openInput(cmd, opts.InputPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "open input", err)
	}
	defer closeInput()

	logger, logCloser := newLogger(cfg, rootOpts.Verbose, cmd.ErrOrStderr())
	defer logCloser.Close()

	runner := rules.NewRunner(printer.Emission)
	processor := evproc.New(registry, runner, cfg.Options(logger)...)

	var summary RunSummary
	var readErr *rules.ReadError
	decoder := rules.NewDecoder(input)
	for {
		if err := cmd.Context().Err(); err != nil {
			return WrapExitError(ExitFailure, "interrupted", err)
		}

		ev, err := decoder.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.As(err, &readErr) {
			logger.ErrorContext(cmd.Context(), "read events", "error", err)
			break
		}
		summary.Events++
		if err != nil {
			summary.Failed++
			logger.ErrorContext(cmd.Context(), "decode event", "error", err)
			continue
		}
		if err := processor.Process(cmd.Context(), ev); err != nil {
			summary.Failed++
		}
	}

	if printer.Format == "json" {
		_ = printer.JSON(summary)
	} else {
		fmt.Fprintf(printer.Writer, "processed %d event(s), %d failed\n", summary.Events, summary.Failed)
	}

	if readErr != nil {
		return WrapExitError(ExitFailure, "input aborted", readErr)
	}
	if summary.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d event(s) failed", summary.Failed, summary.Events))
	}
	return nil
}

func openInput(cmd *cobra.Command, path string) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}
