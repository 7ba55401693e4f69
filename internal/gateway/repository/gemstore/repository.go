// Package gemstore holds the package stores behind the dependency index:
// an in-memory store for local runs and tests, and a PostgreSQL store.
package gemstore

import (
	"time"

	"depindex/internal/index"
)

// Store is the store contract the index consumes.
type Store = index.Store

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
)

type rowScanner interface {
	Scan(dest ...any) error
}

// versionRow is a stored version, live or tombstoned.
type versionRow struct {
	ID         int64
	Number     string
	Platform   string
	Prerelease bool
	Indexed    bool
	CreatedAt  time.Time
	RemovedAt  *time.Time
	Deps       []index.Dependency
}

func (r versionRow) toIndex() index.Version {
	deps := make([]index.Dependency, len(r.Deps))
	copy(deps, r.Deps)
	return index.Version{
		Number:       r.Number,
		Platform:     r.Platform,
		Prerelease:   r.Prerelease,
		Dependencies: deps,
		Sequence:     r.ID,
	}
}
