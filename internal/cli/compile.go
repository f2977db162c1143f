package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/specforge/specforge/internal/compiler"
	"github.com/specforge/specforge/internal/config"
	"github.com/specforge/specforge/internal/schema"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output directory; empty prints to stdout
}

// compileSummary is the structured result of a compile run.
type compileSummary struct {
	Entities  int      `json:"entities"`
	Functions []string `json:"functions"`
	Output    string   `json:"output,omitempty"`
}

func (s compileSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "compiled %d function(s)", len(s.Functions))
	if s.Output != "" {
		fmt.Fprintf(&b, " to %s", s.Output)
	}
	for _, fn := range s.Functions {
		fmt.Fprintf(&b, "\n  %s", fn)
	}
	return b.String()
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <bundle.yaml>",
		Short: "Compile a definition bundle to PL/pgSQL",
		Long: `Compile a definition bundle into deployable SQL.

Without --output the full SQL is printed to stdout. With --output the
artifact is written as one file per statement group: envelope prelude,
entity helpers, then one file per action.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output directory")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := formatterFor(opts.RootOptions, cmd)

	artifact, bundle, err := compileBundle(opts.RootOptions, path, formatter)
	if err != nil {
		return err
	}

	summary := compileSummary{Entities: len(bundle.Entities), Output: opts.Output}
	for _, action := range artifact.Actions {
		summary.Functions = append(summary.Functions, action.FunctionName)
	}

	if opts.Output == "" && opts.Format == "text" {
		fmt.Fprintln(cmd.OutOrStdout(), renderArtifact(artifact))
		return nil
	}
	if opts.Output != "" {
		if err := writeArtifact(artifact, opts.Output); err != nil {
			formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
			return NewExitError(ExitCommandError, err.Error())
		}
	}
	return formatter.Success(summary)
}

// compileBundle loads, validates and compiles one bundle file; shared by
// compile and deploy.
func compileBundle(opts *RootOptions, path string, formatter *OutputFormatter) (*compiler.Artifact, *schema.Bundle, error) {
	bundle, err := schema.LoadBundle(path)
	if err != nil {
		formatter.Error(ErrCodeLoadFailed, err.Error(), nil)
		return nil, nil, NewExitError(ExitCommandError, err.Error())
	}

	if errs := bundle.Validate(); len(errs) > 0 {
		details := make([]string, len(errs))
		for i, e := range errs {
			details[i] = e.Error()
		}
		formatter.Error(ErrCodeInvalidBundle,
			fmt.Sprintf("%d validation error(s)", len(errs)), details)
		return nil, nil, NewExitError(ExitFailure, "bundle is invalid")
	}

	cfg, err := config.Load(filepath.Dir(path))
	if err != nil {
		formatter.Error(ErrCodeLoadFailed, err.Error(), nil)
		return nil, nil, NewExitError(ExitCommandError, err.Error())
	}

	formatter.VerboseLog("compiling %s (%d entities)", path, len(bundle.Entities))
	artifact, err := compiler.New(bundle, compilerOptions(cfg)).Compile()
	if err != nil {
		formatter.Error(ErrCodeCompileFailed, err.Error(), nil)
		return nil, nil, NewExitError(ExitFailure, err.Error())
	}
	return artifact, bundle, nil
}

// renderArtifact joins every statement of the artifact in deployment order.
func renderArtifact(artifact *compiler.Artifact) string {
	var stmts []string
	stmts = append(stmts, artifact.Prelude...)
	stmts = append(stmts, artifact.Helpers...)
	for _, action := range artifact.Actions {
		if action.InputTypeDDL != "" {
			stmts = append(stmts, action.InputTypeDDL)
		}
		stmts = append(stmts, action.SQL)
	}
	return strings.Join(stmts, "\n\n")
}

func writeArtifact(artifact *compiler.Artifact, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	write := func(name, content string) error {
		return os.WriteFile(filepath.Join(dir, name), []byte(content+"\n"), 0o644)
	}

	if err := write("00_envelope.sql", strings.Join(artifact.Prelude, "\n\n")); err != nil {
		return err
	}
	if err := write("01_helpers.sql", strings.Join(artifact.Helpers, "\n\n")); err != nil {
		return err
	}
	for _, action := range artifact.Actions {
		content := action.SQL
		if action.InputTypeDDL != "" {
			content = action.InputTypeDDL + "\n\n" + content
		}
		name := fmt.Sprintf("%s_%s.sql",
			strings.ToLower(action.EntityName), strings.ToLower(action.ActionName))
		if err := write(name, content); err != nil {
			return err
		}
	}
	return nil
}
