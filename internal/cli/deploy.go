package cli

import (
	"fmt"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/specforge/specforge/internal/config"
	"github.com/specforge/specforge/internal/runtime"
)

// DeployOptions holds flags for the deploy command.
type DeployOptions struct {
	*RootOptions
	DSN string
}

// NewDeployCommand creates the deploy command.
func NewDeployCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeployOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "deploy <bundle.yaml>",
		Short: "Compile a bundle and apply it to a database",
		Long: `Compile a definition bundle and apply the artifact to PostgreSQL in
one transaction. The connection string comes from --dsn, the project
config, or SPECFORGE_DATABASE__DSN.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeploy(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DSN, "dsn", "", "database connection string")

	return cmd
}

func runDeploy(opts *DeployOptions, path string, cmd *cobra.Command) error {
	formatter := formatterFor(opts.RootOptions, cmd)

	artifact, _, err := compileBundle(opts.RootOptions, path, formatter)
	if err != nil {
		return err
	}

	dsn, err := resolveDSN(opts.DSN, filepath.Dir(path))
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

	if err := runtime.NewDeployer(pool, nil).Deploy(ctx, artifact); err != nil {
		formatter.Error(ErrCodeDatabaseFailed, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}

	return formatter.Success(fmt.Sprintf("deployed %d function(s)", len(artifact.Actions)))
}

// resolveDSN picks the connection string: explicit flag first, then project
// configuration (which includes the environment override).
func resolveDSN(flag, dir string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return "", err
	}
	if cfg.Database.DSN == "" {
		return "", fmt.Errorf("no database DSN configured; pass --dsn or set SPECFORGE_DATABASE__DSN")
	}
	return cfg.Database.DSN, nil
}
