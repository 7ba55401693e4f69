// Package publish copies the global index artifacts into an artifact store
// together with fingerprint sidecars, so static mirrors can serve them.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	artifactrepo "depindex/internal/gateway/repository/artifact"
	"depindex/internal/index"
)

// Indexer is the part of the index service the publisher reads from.
type Indexer interface {
	Names(ctx context.Context, client index.Fingerprint) (index.Result, error)
	Versions(ctx context.Context, client index.Fingerprint) (index.Result, error)
}

// FingerprintSuffix names the sidecar holding an artifact's fingerprint.
const FingerprintSuffix = ".fingerprint"

// Report describes one published artifact.
type Report struct {
	Path        string
	Fingerprint index.Fingerprint
	Skipped     bool
}

type Service struct {
	mu     sync.Mutex
	index  Indexer
	store  artifactrepo.Store
	mirror string
}

func New(idx Indexer, store artifactrepo.Store, mirror string) *Service {
	mirror = strings.TrimSpace(mirror)
	if mirror == "" {
		mirror = "default"
	}
	return &Service{index: idx, store: store, mirror: mirror}
}

// Publish writes names.list and versions.list. An artifact whose published
// fingerprint still matches is skipped. The body is written before its
// sidecar so a sidecar never names bytes that are not there yet. Runs are
// serialized.
func (s *Service) Publish(ctx context.Context) ([]Report, error) {
	if s == nil || s.index == nil || s.store == nil {
		return nil, fmt.Errorf("publisher is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	targets := []struct {
		path  string
		build func(context.Context, index.Fingerprint) (index.Result, error)
	}{
		{path: "names.list", build: s.index.Names},
		{path: "versions.list", build: s.index.Versions},
	}

	reports := make([]Report, 0, len(targets))
	for _, t := range targets {
		prev, err := s.publishedFingerprint(ctx, t.path)
		if err != nil {
			return reports, err
		}
		res, err := t.build(ctx, prev)
		if err != nil {
			return reports, fmt.Errorf("build %s: %w", t.path, err)
		}
		if res.NotModified {
			reports = append(reports, Report{Path: t.path, Fingerprint: prev, Skipped: true})
			continue
		}
		if err := s.store.Put(ctx, s.mirror, t.path, res.Artifact.Body); err != nil {
			return reports, fmt.Errorf("put %s: %w", t.path, err)
		}
		fp := res.Artifact.Fingerprint
		if err := s.store.Put(ctx, s.mirror, t.path+FingerprintSuffix, []byte(fp)); err != nil {
			return reports, fmt.Errorf("put %s%s: %w", t.path, FingerprintSuffix, err)
		}
		log.Printf("publish: mirror=%s path=%s fingerprint=%s bytes=%d", s.mirror, t.path, fp, len(res.Artifact.Body))
		reports = append(reports, Report{Path: t.path, Fingerprint: fp})
	}
	return reports, nil
}

func (s *Service) publishedFingerprint(ctx context.Context, path string) (index.Fingerprint, error) {
	raw, err := s.store.Get(ctx, s.mirror, path+FingerprintSuffix)
	if errors.Is(err, artifactrepo.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s%s: %w", path, FingerprintSuffix, err)
	}
	return index.Fingerprint(strings.TrimSpace(string(raw))), nil
}
