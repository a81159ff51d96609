// Package store persists validation and estimation runs. The core
// packages never touch storage; commands and the server write through
// the Store after the core returns.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/torqueline/estimator/internal/model"
)

// ErrRunNotFound marks lookups and updates that matched no run.
var ErrRunNotFound = eris.New("store: run not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Kind         model.RunKind   `json:"kind,omitempty"`
	Status       model.RunStatus `json:"status,omitempty"`
	CreatedAfter time.Time       `json:"created_after,omitempty"`
	Limit        int             `json:"limit,omitempty"`
	Offset       int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for run history.
type Store interface {
	// CreateRun records the start of a pass in status running.
	CreateRun(ctx context.Context, kind model.RunKind, query string) (*model.Run, error)
	// CompleteRun attaches the marshalled result and marks the run complete.
	CompleteRun(ctx context.Context, runID string, result any) error
	// FailRun records the error and its transient/permanent class.
	FailRun(ctx context.Context, runID string, runErr error) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// Open builds the Store for the given driver. An empty driver means
// sqlite.
func Open(ctx context.Context, driver, databaseURL string) (Store, error) {
	switch driver {
	case "", "sqlite":
		return NewSQLite(databaseURL)
	case "postgres":
		return NewPostgres(ctx, databaseURL, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}
