package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/specforge/specforge/internal/runtime"
)

// InvokeOptions holds flags for the invoke command.
type InvokeOptions struct {
	*RootOptions
	DSN  string
	Args []string // name=value pairs
}

// NewInvokeCommand creates the invoke command.
func NewInvokeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InvokeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "invoke <function>",
		Short: "Invoke a deployed action function",
		Long: `Invoke a deployed action function by its generated name, e.g.

  specforge invoke crm.contact_qualify_lead \
      --arg p_contact_id=0b44c5c7-... \
      --arg p_tenant_id=... --arg p_caller_id=...

The result envelope is printed as JSON. A failed envelope exits 1.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvoke(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DSN, "dsn", "", "database connection string")
	cmd.Flags().StringArrayVar(&opts.Args, "arg", nil, "argument as name=value (repeatable)")

	return cmd
}

func runInvoke(opts *InvokeOptions, function string, cmd *cobra.Command) error {
	formatter := formatterFor(opts.RootOptions, cmd)

	callArgs, err := parseCallArgs(opts.Args)
	if err != nil {
		formatter.Error(ErrCodeActionFailed, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}

	dsn, err := resolveDSN(opts.DSN, ".")
	if err != nil {
		formatter.Error(ErrCodeDatabaseFailed, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}

	ctx := cmd.Context()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		formatter.Error(ErrCodeDatabaseFailed, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}
	defer pool.Close()

	result, err := runtime.NewInvoker(pool, nil).Invoke(ctx, function, callArgs)
	if err != nil {
		formatter.Error(ErrCodeDatabaseFailed, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}

	// The envelope is the output in both formats; error_code is the
	// machine-readable contract.
	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return NewExitError(ExitCommandError, err.Error())
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(encoded))

	if !result.Success {
		return NewExitError(ExitFailure, fmt.Sprintf("action failed: %s", result.ErrorCode))
	}
	return nil
}

// parseCallArgs turns repeated name=value flags into the invocation map.
// A value of "null" passes SQL NULL.
func parseCallArgs(pairs []string) (map[string]any, error) {
	args := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		name, value, found := strings.Cut(pair, "=")
		if !found || name == "" {
			return nil, fmt.Errorf("malformed --arg %q: want name=value", pair)
		}
		if value == "null" {
			args[name] = nil
			continue
		}
		args[name] = value
	}
	return args, nil
}
