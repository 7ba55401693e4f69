package artifact

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	artifactrepo "depindex/internal/gateway/repository/artifact"
)

type fakeOriginStore struct {
	mu sync.Mutex

	data map[string][]byte

	getCalls int
	putCalls int

	failPut bool
}

func newFakeOriginStore() *fakeOriginStore {
	return &fakeOriginStore{data: map[string][]byte{}}
}

func (s *fakeOriginStore) Put(_ context.Context, mirror, path string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putCalls++
	if s.failPut {
		return fmt.Errorf("put failed")
	}
	s.data[mirror+"/"+path] = append([]byte(nil), content...)
	return nil
}

func (s *fakeOriginStore) Get(_ context.Context, mirror, path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	raw, ok := s.data[mirror+"/"+path]
	if !ok {
		return nil, artifactrepo.ErrNotFound
	}
	return append([]byte(nil), raw...), nil
}

func TestCachedStoreReadThroughAndMetrics(t *testing.T) {
	origin := newFakeOriginStore()
	origin.data["default/names.list"] = []byte("rack\n")
	store := NewCachedStore(origin, CacheConfig{
		BlobTTL: time.Minute, BlobMaxEntries: 8,
	})

	got1, err := store.Get(context.Background(), "default", "names.list")
	if err != nil {
		t.Fatalf("first get failed: %v", err)
	}
	got2, err := store.Get(context.Background(), "default", "names.list")
	if err != nil {
		t.Fatalf("second get failed: %v", err)
	}
	if string(got1) != "rack\n" || string(got2) != "rack\n" {
		t.Fatalf("unexpected content: %q %q", got1, got2)
	}
	if origin.getCalls != 1 {
		t.Fatalf("expected one origin get call, got %d", origin.getCalls)
	}
	m := store.Metrics()
	if m.BlobHits != 1 || m.BlobMisses != 1 || m.OriginReads != 1 {
		t.Fatalf("unexpected metrics: %+v", m)
	}
}

func TestCachedStoreWriteThrough(t *testing.T) {
	origin := newFakeOriginStore()
	store := NewCachedStore(origin, DefaultCacheConfig())

	if err := store.Put(context.Background(), "default", "names.list.fingerprint", []byte("abc")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	got, err := store.Get(context.Background(), "default", "names.list.fingerprint")
	if err != nil {
		t.Fatalf("get after put failed: %v", err)
	}
	if string(got) != "abc" {
		t.Fatalf("unexpected content: %q", got)
	}
	if origin.getCalls != 0 {
		t.Fatalf("expected get to be served from cache, got %d origin calls", origin.getCalls)
	}

	origin.failPut = true
	if err := store.Put(context.Background(), "default", "versions.list", []byte("bad")); err == nil {
		t.Fatalf("expected put error")
	}
	if _, err := store.Get(context.Background(), "default", "versions.list"); !errors.Is(err, artifactrepo.ErrNotFound) {
		t.Fatalf("expected not found for failed write, got %v", err)
	}
	if m := store.Metrics(); m.OriginWriteErr != 1 {
		t.Fatalf("expected one write error, got %+v", m)
	}
}

func TestCachedStoreTTLAndLRU(t *testing.T) {
	origin := newFakeOriginStore()
	origin.data["default/a"] = []byte("A")
	origin.data["default/b"] = []byte("B")

	store := NewCachedStore(origin, CacheConfig{
		BlobTTL: time.Minute, BlobMaxEntries: 1,
	})
	for _, path := range []string{"a", "b", "a"} {
		if _, err := store.Get(context.Background(), "default", path); err != nil {
			t.Fatalf("get %s failed: %v", path, err)
		}
	}
	if origin.getCalls != 3 {
		t.Fatalf("expected 3 origin get calls with LRU eviction, got %d", origin.getCalls)
	}

	origin.getCalls = 0
	store2 := NewCachedStore(origin, CacheConfig{
		BlobTTL: 10 * time.Millisecond, BlobMaxEntries: 8,
	})
	if _, err := store2.Get(context.Background(), "default", "a"); err != nil {
		t.Fatalf("ttl get first failed: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if _, err := store2.Get(context.Background(), "default", "a"); err != nil {
		t.Fatalf("ttl get second failed: %v", err)
	}
	if origin.getCalls != 2 {
		t.Fatalf("expected 2 origin reads after ttl expiry, got %d", origin.getCalls)
	}
}

func TestCachedStoreKeysByMirror(t *testing.T) {
	origin := newFakeOriginStore()
	origin.data["default/names.list.fingerprint"] = []byte("aaa")
	origin.data["other/names.list.fingerprint"] = []byte("bbb")
	store := NewCachedStore(origin, DefaultCacheConfig())

	for _, want := range []struct{ mirror, content string }{
		{"default", "aaa"},
		{"other", "bbb"},
		{" default ", "aaa"},
	} {
		got, err := store.Get(context.Background(), want.mirror, "names.list.fingerprint")
		if err != nil {
			t.Fatalf("get %q failed: %v", want.mirror, err)
		}
		if string(got) != want.content {
			t.Fatalf("mirror %q: expected %q, got %q", want.mirror, want.content, got)
		}
	}
	if origin.getCalls != 2 {
		t.Fatalf("expected one origin read per mirror, got %d", origin.getCalls)
	}
}
