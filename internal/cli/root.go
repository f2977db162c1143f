// Package cli implements the specforge command line interface.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/specforge/specforge/internal/compiler"
	"github.com/specforge/specforge/internal/config"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the specforge CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "specforge",
		Short: "Compile declarative entity actions into atomic PL/pgSQL",
		Long: "specforge compiles per-entity action definitions into PostgreSQL\n" +
			"functions that run each action as a single atomic mutation with a\n" +
			"uniform result envelope.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewDeployCommand(opts))
	cmd.AddCommand(NewInvokeCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// formatterFor builds the formatter wired to a command's streams.
func formatterFor(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// compilerOptions maps loaded configuration onto compiler options.
func compilerOptions(cfg *config.Config) compiler.Options {
	return compiler.Options{
		EnvelopeSchema: cfg.EnvelopeSchema,
		TablePrefix:    cfg.TablePrefix,
		IdentifierMax:  cfg.IdentifierMax,
	}
}
