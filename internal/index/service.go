package index

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"unicode"
)

type Config struct {
	Fingerprinter Fingerprinter
}

func DefaultConfig() Config {
	return Config{}
}

type MetricsSnapshot struct {
	NotModified  uint64
	Builds       uint64
	InvariantErr uint64
}

type metrics struct {
	notModified  atomic.Uint64
	builds       atomic.Uint64
	invariantErr atomic.Uint64
}

// Service exposes the index operations consumed by the request shell.
type Service struct {
	store   Store
	fp      Fingerprinter
	builder *Builder
	hooks   Hooks
	metrics metrics
}

func NewService(store Store, cfg Config) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store is nil")
	}
	return &Service{
		store:   store,
		fp:      cfg.Fingerprinter,
		builder: NewBuilder(store, cfg.Fingerprinter),
		hooks:   NewHooks(cfg.Fingerprinter),
	}, nil
}

// Fingerprinter returns the hash used for every artifact.
func (s *Service) Fingerprinter() Fingerprinter {
	return s.fp
}

// Names returns the name list. client may be empty.
func (s *Service) Names(ctx context.Context, client Fingerprint) (Result, error) {
	return s.global(ctx, GlobalNames, client)
}

// Versions returns the version list. client may be empty.
func (s *Service) Versions(ctx context.Context, client Fingerprint) (Result, error) {
	return s.global(ctx, GlobalVersions, client)
}

func (s *Service) global(ctx context.Context, format GlobalFormat, client Fingerprint) (Result, error) {
	art, err := s.builder.BuildGlobal(ctx, format)
	if err != nil {
		return Result{}, err
	}
	s.metrics.builds.Add(1)
	return s.evaluate(client, art), nil
}

// PackageDependencies returns the dependency list of one package. A client
// fingerprint equal to the persisted one answers NotModified without loading
// versions; any other read encodes the current state and verifies it against
// the persisted fingerprint.
func (s *Service) PackageDependencies(ctx context.Context, name string, client Fingerprint) (Result, error) {
	if name == "" {
		return Result{}, &NotFoundError{Name: name}
	}
	stored, err := s.store.Fingerprint(ctx, name)
	if err != nil {
		return Result{}, fmt.Errorf("load fingerprint for %s: %w", name, err)
	}
	if stored != "" && client == stored {
		return s.evaluate(client, Artifact{Fingerprint: stored}), nil
	}

	art, err := s.builder.BuildForPackage(ctx, name)
	if err != nil {
		if errors.Is(err, ErrEncodingInvariant) {
			s.metrics.invariantErr.Add(1)
		}
		return Result{}, err
	}
	s.metrics.builds.Add(1)
	return s.evaluate(client, art), nil
}

// Dependencies returns bulk dependency records for names. A query matching
// nothing returns an empty, non-nil byte slice.
func (s *Service) Dependencies(ctx context.Context, names []string, format BulkFormat) ([]byte, error) {
	return s.builder.BuildBulk(ctx, names, format)
}

// RegisterVersion adds a version and updates the package fingerprint in the
// same store transaction.
func (s *Service) RegisterVersion(ctx context.Context, spec VersionSpec) (VersionRef, error) {
	spec = spec.Normalize()
	if err := validateRef(spec.Ref()); err != nil {
		return VersionRef{}, err
	}
	if err := s.store.AddVersion(ctx, spec, s.hooks.OnVersionAdded); err != nil {
		return VersionRef{}, err
	}
	return spec.Ref(), nil
}

// DeregisterVersion removes a version and updates the package fingerprint
// in the same store transaction.
func (s *Service) DeregisterVersion(ctx context.Context, ref VersionRef) (VersionRef, error) {
	ref = ref.Normalize()
	if err := validateRef(ref); err != nil {
		return VersionRef{}, err
	}
	if err := s.store.RemoveVersion(ctx, ref, s.hooks.OnVersionRemoved); err != nil {
		return VersionRef{}, err
	}
	return ref, nil
}

// Reindex recomputes the persisted fingerprint of every package, one write
// transaction per package. It is the repair path after an algorithm change
// or a bulk import that bypassed the hooks.
func (s *Service) Reindex(ctx context.Context) (int, error) {
	names, err := s.store.PackageNames(ctx)
	if err != nil {
		return 0, fmt.Errorf("list package names: %w", err)
	}
	count := 0
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		if err := s.store.Refresh(ctx, name, s.hooks.recompute); err != nil {
			return count, fmt.Errorf("reindex %s: %w", name, err)
		}
		count++
	}
	return count, nil
}

func (s *Service) Metrics() MetricsSnapshot {
	if s == nil {
		return MetricsSnapshot{}
	}
	return MetricsSnapshot{
		NotModified:  s.metrics.notModified.Load(),
		Builds:       s.metrics.builds.Load(),
		InvariantErr: s.metrics.invariantErr.Load(),
	}
}

func (s *Service) evaluate(client Fingerprint, art Artifact) Result {
	res := Evaluate(client, art)
	if res.NotModified {
		s.metrics.notModified.Add(1)
	}
	return res
}

// validateRef rejects identities that would break the line-oriented
// indexes. Dependency names and requirements are not checked.
func validateRef(ref VersionRef) error {
	if ref.Name == "" || ref.Number == "" {
		return fmt.Errorf("name and version are required: %w", ErrInvalidSpec)
	}
	for _, field := range []string{ref.Name, ref.Number, ref.Platform} {
		if strings.IndexFunc(field, func(r rune) bool { return unicode.IsSpace(r) || unicode.IsControl(r) }) >= 0 {
			return fmt.Errorf("%q contains whitespace: %w", field, ErrInvalidSpec)
		}
	}
	return nil
}
