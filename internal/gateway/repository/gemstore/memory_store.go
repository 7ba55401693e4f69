package gemstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"depindex/internal/index"
)

// MemoryStore keeps packages in process memory. A write holds the lock for
// the version change and its hook, so readers see either the state before
// the write or the state after it, fingerprint included.
type MemoryStore struct {
	mu       sync.RWMutex
	packages map[string]*memoryPackage
	nextID   int64
	now      func() time.Time
}

type memoryPackage struct {
	name        string
	versions    []versionRow
	fingerprint index.Fingerprint
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		packages: make(map[string]*memoryPackage),
		now:      time.Now,
	}
}

func (s *MemoryStore) PackageNames(ctx context.Context) ([]string, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.packages))
	for name := range s.packages {
		out = append(out, name)
	}
	return out, nil
}

func (s *MemoryStore) Packages(ctx context.Context) ([]index.Package, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]index.Package, 0, len(s.packages))
	for _, p := range s.packages {
		if live := p.live(); len(live.Versions) > 0 {
			out = append(out, live)
		}
	}
	return out, nil
}

func (s *MemoryStore) PackagesByName(ctx context.Context, names []string) ([]index.Package, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]index.Package, 0, len(names))
	for _, name := range names {
		p, ok := s.packages[name]
		if !ok {
			continue
		}
		if live := p.live(); len(live.Versions) > 0 {
			out = append(out, live)
		}
	}
	return out, nil
}

func (s *MemoryStore) PackageState(ctx context.Context, name string) (index.PackageState, error) {
	if s == nil {
		return index.PackageState{}, fmt.Errorf("store is nil")
	}
	if err := ctx.Err(); err != nil {
		return index.PackageState{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.packages[name]
	if !ok {
		return index.PackageState{Package: index.Package{Name: name}}, nil
	}
	return index.PackageState{Package: p.live(), Fingerprint: p.fingerprint}, nil
}

func (s *MemoryStore) Fingerprint(ctx context.Context, name string) (index.Fingerprint, error) {
	if s == nil {
		return "", fmt.Errorf("store is nil")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.packages[name]; ok {
		return p.fingerprint, nil
	}
	return "", nil
}

func (s *MemoryStore) AddVersion(ctx context.Context, spec index.VersionSpec, hook index.Hook) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, existed := s.packages[spec.Name]
	var backup *memoryPackage
	if existed {
		backup = p.clone()
	} else {
		p = &memoryPackage{name: spec.Name}
		s.packages[spec.Name] = p
	}

	deps := append([]index.Dependency(nil), spec.Dependencies...)
	if i := p.find(spec.Number, spec.Platform); i >= 0 {
		if p.versions[i].Indexed {
			return fmt.Errorf("%s %s (%s): %w", spec.Name, spec.Number, spec.Platform, index.ErrVersionExists)
		}
		v := &p.versions[i]
		v.Indexed = true
		v.RemovedAt = nil
		v.Prerelease = spec.Prerelease
		v.Deps = deps
	} else {
		s.nextID++
		p.versions = append(p.versions, versionRow{
			ID:         s.nextID,
			Number:     spec.Number,
			Platform:   spec.Platform,
			Prerelease: spec.Prerelease,
			Indexed:    true,
			CreatedAt:  s.now(),
			Deps:       deps,
		})
	}

	if err := hook(ctx, memoryTx{s: s}, spec.Name); err != nil {
		s.restore(spec.Name, backup)
		return err
	}
	return nil
}

func (s *MemoryStore) RemoveVersion(ctx context.Context, ref index.VersionRef, hook index.Hook) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.packages[ref.Name]
	if !ok {
		return &index.NotFoundError{Name: ref.Name, Number: ref.Number, Platform: ref.Platform}
	}
	i := p.find(ref.Number, ref.Platform)
	if i < 0 || !p.versions[i].Indexed {
		return &index.NotFoundError{Name: ref.Name, Number: ref.Number, Platform: ref.Platform}
	}
	backup := p.clone()
	removedAt := s.now()
	p.versions[i].Indexed = false
	p.versions[i].RemovedAt = &removedAt

	if err := hook(ctx, memoryTx{s: s}, ref.Name); err != nil {
		s.restore(ref.Name, backup)
		return err
	}
	return nil
}

func (s *MemoryStore) Refresh(ctx context.Context, name string, hook index.Hook) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.packages[name]
	if !ok {
		return &index.NotFoundError{Name: name}
	}
	backup := p.clone()
	if err := hook(ctx, memoryTx{s: s}, name); err != nil {
		s.restore(name, backup)
		return err
	}
	return nil
}

// SetFingerprintUnsafe overwrites a persisted fingerprint without running
// any hook. Only tests use it, to simulate a write that skipped the hook.
func (s *MemoryStore) SetFingerprintUnsafe(name string, fp index.Fingerprint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.packages[name]; ok {
		p.fingerprint = fp
	}
}

// restore undoes a failed write; a nil backup means the package was created
// by that write.
func (s *MemoryStore) restore(name string, backup *memoryPackage) {
	if backup == nil {
		delete(s.packages, name)
		return
	}
	s.packages[name] = backup
}

// memoryTx is handed to hooks while MemoryStore's write lock is held.
type memoryTx struct {
	s *MemoryStore
}

func (tx memoryTx) Package(_ context.Context, name string) (index.Package, error) {
	p, ok := tx.s.packages[name]
	if !ok {
		return index.Package{Name: name}, nil
	}
	return p.live(), nil
}

func (tx memoryTx) SetFingerprint(_ context.Context, name string, fp index.Fingerprint) error {
	p, ok := tx.s.packages[name]
	if !ok {
		return &index.NotFoundError{Name: name}
	}
	p.fingerprint = fp
	return nil
}

func (p *memoryPackage) find(number, platform string) int {
	for i, v := range p.versions {
		if v.Number == number && v.Platform == platform {
			return i
		}
	}
	return -1
}

func (p *memoryPackage) live() index.Package {
	out := index.Package{Name: p.name}
	for _, v := range p.versions {
		if v.Indexed {
			out.Versions = append(out.Versions, v.toIndex())
		}
	}
	return out
}

func (p *memoryPackage) clone() *memoryPackage {
	cp := &memoryPackage{
		name:        p.name,
		fingerprint: p.fingerprint,
		versions:    make([]versionRow, len(p.versions)),
	}
	for i, v := range p.versions {
		v.Deps = append([]index.Dependency(nil), v.Deps...)
		cp.versions[i] = v
	}
	return cp
}
