package engine

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/microsoft/go-mssqldb" // SQL Server driver

	"github.com/lucentdata/metricplane/pkg/models"
	"github.com/lucentdata/metricplane/pkg/retry"
)

// MSSQLEngine executes rendered queries against SQL Server. Queries arrive
// with @pN placeholders, which the driver binds positionally.
type MSSQLEngine struct {
	db       *sql.DB
	retryCfg *retry.Config
}

// NewMSSQLEngine opens a SQL Server connection for the given DSN.
func NewMSSQLEngine(dsn string) (*MSSQLEngine, error) {
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlserver connection: %w", err)
	}
	return &MSSQLEngine{db: db, retryCfg: retry.DefaultConfig()}, nil
}

func (e *MSSQLEngine) Type() string { return models.EngineTypeMSSQL }

// Execute runs the query and collects all rows, retrying transient
// connection failures with backoff. Query errors surface immediately.
func (e *MSSQLEngine) Execute(ctx context.Context, query string, params []any) (*Result, error) {
	return retry.DoWithResult(ctx, e.retryCfg, func() (*Result, error) {
		return e.run(ctx, query, params)
	})
}

func (e *MSSQLEngine) run(ctx context.Context, query string, params []any) (*Result, error) {
	rows, err := e.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	resultRows := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		rowMap := make(map[string]any, len(columns))
		for i, col := range columns {
			// Byte slices are driver-owned; copy into strings for the response.
			if b, ok := values[i].([]byte); ok {
				rowMap[col] = string(b)
			} else {
				rowMap[col] = values[i]
			}
		}
		resultRows = append(resultRows, rowMap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return &Result{Columns: columns, Rows: resultRows, RowCount: len(resultRows)}, nil
}

func (e *MSSQLEngine) Close() error {
	return e.db.Close()
}
