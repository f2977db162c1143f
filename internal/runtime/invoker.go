package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// identPattern matches the schema-qualified function names and parameter
// names the compiler generates. Anything else is rejected before it reaches
// the statement text.
var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*(\.[a-z_][a-z0-9_]*)?$`)

// Invoker calls compiled action functions and decodes their envelopes.
// Argument values always travel as bind parameters; only vetted identifiers
// are interpolated into the statement.
type Invoker struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewInvoker(pool *pgxpool.Pool, log *slog.Logger) *Invoker {
	if log == nil {
		log = slog.Default()
	}
	return &Invoker{pool: pool, log: log}
}

// buildInvocation renders the SELECT wrapping a function call with named
// arguments. Arguments are sorted by name so the statement text is stable
// for a given argument set.
func buildInvocation(function string, args map[string]any) (string, []any, error) {
	if !identPattern.MatchString(function) {
		return "", nil, fmt.Errorf("invalid function name %q", function)
	}

	names := make([]string, 0, len(args))
	for name := range args {
		if !identPattern.MatchString(name) {
			return "", nil, fmt.Errorf("invalid argument name %q", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	values := make([]any, 0, len(names))
	for i, name := range names {
		parts = append(parts, fmt.Sprintf("%s => $%d", name, i+1))
		values = append(values, args[name])
	}
	return fmt.Sprintf("SELECT to_jsonb(%s(%s))", function, strings.Join(parts, ", ")), values, nil
}

// Invoke calls one compiled action by its generated function name. args map
// parameter names (p_contact_id, p_threshold, p_tenant_id, p_caller_id) to
// values. A failed envelope is returned as a result, not as an error; err
// covers transport and decoding failures only.
func (inv *Invoker) Invoke(ctx context.Context, function string, args map[string]any) (*MutationResult, error) {
	sql, values, err := buildInvocation(function, args)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var raw []byte
	if err := inv.pool.QueryRow(ctx, sql, values...).Scan(&raw); err != nil {
		return nil, fmt.Errorf("invoking %s: %w", function, err)
	}
	result, err := DecodeResult(raw)
	if err != nil {
		return nil, fmt.Errorf("invoking %s: %w", function, err)
	}

	inv.log.DebugContext(ctx, "action invoked",
		"function", function,
		"success", result.Success,
		"error_code", result.ErrorCode,
		"duration", time.Since(start),
	)
	return result, nil
}
