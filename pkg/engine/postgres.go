package engine

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lucentdata/metricplane/pkg/models"
	"github.com/lucentdata/metricplane/pkg/retry"
)

// PostgresEngine executes rendered queries against PostgreSQL. Queries
// arrive with $N placeholders; pgx binds parameters natively, so values
// never touch the query text.
type PostgresEngine struct {
	pool     *pgxpool.Pool
	retryCfg *retry.Config
}

// NewPostgresEngine connects a pgx pool to the given connection string.
func NewPostgresEngine(ctx context.Context, connString string) (*PostgresEngine, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return &PostgresEngine{pool: pool, retryCfg: retry.DefaultConfig()}, nil
}

// NewPostgresEngineFromPool wraps an existing pool (shared with the
// metadata store in single-database deployments).
func NewPostgresEngineFromPool(pool *pgxpool.Pool) *PostgresEngine {
	return &PostgresEngine{pool: pool, retryCfg: retry.DefaultConfig()}
}

func (e *PostgresEngine) Type() string { return models.EngineTypePostgres }

// Execute runs the query and collects all rows, retrying transient
// connection failures with backoff. Query errors (bad SQL, missing
// relations) surface immediately.
func (e *PostgresEngine) Execute(ctx context.Context, query string, params []any) (*Result, error) {
	return retry.DoWithResult(ctx, e.retryCfg, func() (*Result, error) {
		return e.run(ctx, query, params)
	})
}

func (e *PostgresEngine) run(ctx context.Context, query string, params []any) (*Result, error) {
	rows, err := e.pool.Query(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]string, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = string(fd.Name)
	}

	resultRows := make([]map[string]any, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row values: %w", err)
		}
		rowMap := make(map[string]any, len(columns))
		for i, col := range columns {
			rowMap[col] = values[i]
		}
		resultRows = append(resultRows, rowMap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return &Result{Columns: columns, Rows: resultRows, RowCount: len(resultRows)}, nil
}

func (e *PostgresEngine) Close() error {
	e.pool.Close()
	return nil
}
