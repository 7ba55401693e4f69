package index

import "context"

// Source is the read side of the package store.
type Source interface {
	// PackageNames returns every known package name, in any order.
	PackageNames(ctx context.Context) ([]string, error)

	// Packages returns every package with at least one live version, in any
	// order.
	Packages(ctx context.Context) ([]Package, error)

	// PackagesByName returns the named packages that have live versions, in
	// any order. Unknown names are omitted.
	PackagesByName(ctx context.Context, names []string) ([]Package, error)

	// PackageState returns a package's live versions together with its
	// persisted fingerprint, read from one consistent snapshot. An unknown
	// package yields a zero PackageState with the requested name.
	PackageState(ctx context.Context, name string) (PackageState, error)

	// Fingerprint returns the persisted dependency-list fingerprint, or ""
	// when absent.
	Fingerprint(ctx context.Context, name string) (Fingerprint, error)
}

// Tx is the view of an in-flight write transaction handed to mutation
// hooks. Reads observe the transaction's own writes.
type Tx interface {
	Package(ctx context.Context, name string) (Package, error)
	SetFingerprint(ctx context.Context, name string, fp Fingerprint) error
}

// Hook runs inside a store write transaction after the version change has
// been applied. A non-nil error aborts the whole write.
type Hook func(ctx context.Context, tx Tx, name string) error

// Store is a Source that also accepts version writes. Each write method
// applies its change and runs hook within a single atomic transaction.
type Store interface {
	Source

	// AddVersion registers spec, creating the package if needed. A live
	// duplicate fails with ErrVersionExists; a removed one is revived.
	AddVersion(ctx context.Context, spec VersionSpec, hook Hook) error

	// RemoveVersion tombstones a live version. Unknown or already removed
	// versions fail with ErrNotFound.
	RemoveVersion(ctx context.Context, ref VersionRef, hook Hook) error

	// Refresh runs hook for name in a write transaction without changing
	// versions. Unknown packages fail with ErrNotFound.
	Refresh(ctx context.Context, name string, hook Hook) error
}
