package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/specforge/specforge/internal/compiler"
)

// Deployer applies a compiled artifact to a database. The whole artifact
// goes in one transaction: either every function of the bundle is replaced
// or none is.
type Deployer struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewDeployer(pool *pgxpool.Pool, log *slog.Logger) *Deployer {
	if log == nil {
		log = slog.Default()
	}
	return &Deployer{pool: pool, log: log}
}

func (d *Deployer) Deploy(ctx context.Context, artifact *compiler.Artifact) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning deploy transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, stmt := range artifact.Prelude {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("applying envelope prelude: %w", err)
		}
	}
	for _, stmt := range artifact.Helpers {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("applying entity helpers: %w", err)
		}
	}
	for _, action := range artifact.Actions {
		if action.InputTypeDDL != "" {
			if _, err := tx.Exec(ctx, action.InputTypeDDL); err != nil {
				return fmt.Errorf("applying input type for %s: %w", action.FunctionName, err)
			}
		}
		if _, err := tx.Exec(ctx, action.SQL); err != nil {
			return fmt.Errorf("applying %s: %w", action.FunctionName, err)
		}
		d.log.DebugContext(ctx, "function deployed", "function", action.FunctionName)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing deploy transaction: %w", err)
	}
	d.log.InfoContext(ctx, "artifact deployed",
		"helpers", len(artifact.Helpers),
		"actions", len(artifact.Actions),
	)
	return nil
}
