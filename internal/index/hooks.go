package index

import (
	"context"
	"fmt"
)

// Hooks recompute the per-package fingerprint inside a write transaction so
// that the fingerprint and the data it describes become visible together.
type Hooks struct {
	fp Fingerprinter
}

func NewHooks(fp Fingerprinter) Hooks {
	return Hooks{fp: fp}
}

// OnVersionAdded is the Hook for version registration.
func (h Hooks) OnVersionAdded(ctx context.Context, tx Tx, name string) error {
	return h.recompute(ctx, tx, name)
}

// OnVersionRemoved is the Hook for version removal.
func (h Hooks) OnVersionRemoved(ctx context.Context, tx Tx, name string) error {
	return h.recompute(ctx, tx, name)
}

// recompute stores the fingerprint of the package's dependency list as the
// transaction sees it, or clears it when no live version remains.
func (h Hooks) recompute(ctx context.Context, tx Tx, name string) error {
	pkg, err := tx.Package(ctx, name)
	if err != nil {
		return fmt.Errorf("reload package %s: %w", name, err)
	}
	var fp Fingerprint
	if len(pkg.Versions) > 0 {
		fp = h.fp.Sum(EncodeDependencies(pkg))
	}
	if err := tx.SetFingerprint(ctx, name, fp); err != nil {
		return fmt.Errorf("store fingerprint for %s: %w", name, err)
	}
	return nil
}
