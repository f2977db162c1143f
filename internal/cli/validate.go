package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/specforge/specforge/internal/schema"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "validate <bundle.yaml>",
		Short:         "Validate a definition bundle without compiling it",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := formatterFor(opts, cmd)

	bundle, err := schema.LoadBundle(path)
	if err != nil {
		formatter.Error(ErrCodeLoadFailed, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}

	if errs := bundle.Validate(); len(errs) > 0 {
		details := make([]string, len(errs))
		for i, e := range errs {
			details[i] = e.Error()
		}
		formatter.Error(ErrCodeInvalidBundle,
			fmt.Sprintf("%d validation error(s)", len(errs)), details)
		return NewExitError(ExitFailure, "bundle is invalid")
	}

	actions := 0
	for _, e := range bundle.Entities {
		actions += len(e.Actions)
	}
	return formatter.Success(fmt.Sprintf("%s: %d entity(ies), %d action(s), ok",
		path, len(bundle.Entities), actions))
}
