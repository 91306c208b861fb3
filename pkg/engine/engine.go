// Package engine abstracts the query execution backends. The pipeline hands
// an engine a rendered query plus bound parameters and gets rows or a
// structured error back. Transient connection failures are retried inside
// the adapters; callers see a single outcome per call and never retry it
// themselves.
package engine

import (
	"context"
	"fmt"
)

// Result is an ordered sequence of column-to-value rows.
type Result struct {
	Columns  []string         `json:"columns"`
	Rows     []map[string]any `json:"rows"`
	RowCount int              `json:"row_count"`
}

// Engine executes rendered queries for one engine class. Parameters arrive
// out-of-band in the engine's native positional style.
type Engine interface {
	// Type returns the engine class ("postgres", "mssql").
	Type() string

	// Execute runs the query with the given bound parameters.
	Execute(ctx context.Context, query string, params []any) (*Result, error)

	// Close releases the engine's connections.
	Close() error
}

// Registry resolves an engine by type. Mappings name the engine class they
// target; the registry is how the orchestrator finds the backend.
type Registry struct {
	engines map[string]Engine
}

// NewRegistry creates an empty engine registry.
func NewRegistry() *Registry {
	return &Registry{engines: make(map[string]Engine)}
}

// Register adds an engine, replacing any previous engine of the same type.
func (r *Registry) Register(e Engine) {
	r.engines[e.Type()] = e
}

// Get returns the engine for the given type.
func (r *Registry) Get(engineType string) (Engine, error) {
	e, ok := r.engines[engineType]
	if !ok {
		return nil, fmt.Errorf("no execution engine registered for type %q", engineType)
	}
	return e, nil
}

// Types lists the registered engine types.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.engines))
	for t := range r.engines {
		types = append(types, t)
	}
	return types
}

// Close closes every registered engine, returning the first error.
func (r *Registry) Close() error {
	var first error
	for _, e := range r.engines {
		if err := e.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
