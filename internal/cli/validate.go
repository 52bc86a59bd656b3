package cli

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/bjaus/evproc/internal/rules"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Handlers []string `json:"handlers,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var rulesPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a rules file without processing events",
		Long: `Parse the rules file, compile every expression and build the handler
registry. All problems are reported at once.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			printer := &Printer{
				Format:    rootOpts.Format,
				Writer:    cmd.OutOrStdout(),
				ErrWriter: cmd.ErrOrStderr(),
				Verbose:   rootOpts.Verbose,
			}
			return runValidate(printer, rulesPath)
		},
	}

	cmd.Flags().StringVar(&rulesPath, "rules", "", "path to the rules file (required)")
	_ = cmd.MarkFlagRequired("rules")

	return cmd
}

func runValidate(printer *Printer, rulesPath string) error {
	file, err := rules.Load(rulesPath)
	if err != nil {
		return outputValidation(printer, ValidationResult{Errors: []string{err.Error()}})
	}

	registry, err := rules.Compile(file)
	if err != nil {
		return outputValidation(printer, ValidationResult{Errors: flatten(err)})
	}

	printer.VerboseLog("validated %s", rulesPath)
	return outputValidation(printer, ValidationResult{Valid: true, Handlers: registry.Names()})
}

func outputValidation(printer *Printer, result ValidationResult) error {
	if printer.Format == "json" {
		if err := printer.JSON(result); err != nil {
			return err
		}
	} else if result.Valid {
		fmt.Fprintf(printer.Writer, "✓ %d rule(s) valid\n", len(result.Handlers))
	} else {
		fmt.Fprintln(printer.Writer, "✗ Validation failed")
		for _, msg := range result.Errors {
			fmt.Fprintf(printer.Writer, "  %s\n", msg)
		}
	}

	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
	}
	return nil
}

// flatten lists the individual errors of a multierror, or err itself.
func flatten(err error) []string {
	var merr *multierror.Error
	if !errors.As(err, &merr) {
		return []string{err.Error()}
	}
	msgs := make([]string, 0, len(merr.Errors))
	for _, e := range merr.Errors {
		msgs = append(msgs, flatten(e)...)
	}
	return msgs
}
