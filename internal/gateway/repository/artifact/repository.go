// Package artifact stores published index snapshots: encoded global
// artifacts and their fingerprint sidecars, grouped under a mirror name.
package artifact

import (
	"context"
	"errors"
)

// Store defines operations for persisting published artifacts.
type Store interface {
	Put(ctx context.Context, mirror, path string, content []byte) error
	Get(ctx context.Context, mirror, path string) ([]byte, error)
}

var ErrNotFound = errors.New("artifact not found")
