package index

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a package has no live versions, or when a
	// version to deregister does not exist.
	ErrNotFound = errors.New("not found")

	// ErrVersionExists is returned when registering a live (version, platform)
	// pair a second time.
	ErrVersionExists = errors.New("version already exists")

	// ErrInvalidSpec is returned for a version spec without name or number.
	ErrInvalidSpec = errors.New("invalid version spec")

	// ErrUnknownFormat is returned for an unsupported format selector.
	ErrUnknownFormat = errors.New("unknown format")

	// ErrEncodingInvariant reports that a persisted fingerprint disagrees
	// with the fingerprint of a fresh encode of the same data. It means a
	// write skipped its mutation hook; the read path never repairs it.
	ErrEncodingInvariant = errors.New("encoding invariant violated")
)

// NotFoundError wraps ErrNotFound with the package (and version) involved.
type NotFoundError struct {
	Name     string
	Number   string
	Platform string
}

func (e *NotFoundError) Error() string {
	if e.Number != "" {
		return fmt.Sprintf("package %s version %s (%s) not found", e.Name, e.Number, e.Platform)
	}
	return fmt.Sprintf("package %s not found", e.Name)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// InvariantError carries both fingerprints of a failed agreement check.
type InvariantError struct {
	Package  string
	Stored   Fingerprint
	Computed Fingerprint
}

func (e *InvariantError) Error() string {
	stored := string(e.Stored)
	if stored == "" {
		stored = "<absent>"
	}
	return fmt.Sprintf("package %s: stored fingerprint %s != computed %s: %v",
		e.Package, stored, e.Computed, ErrEncodingInvariant)
}

func (e *InvariantError) Unwrap() error {
	return ErrEncodingInvariant
}
