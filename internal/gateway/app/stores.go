package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cenk/backoff"

	artifactcache "depindex/internal/cache/artifact"
	"depindex/internal/gateway/config"
	artifactrepo "depindex/internal/gateway/repository/artifact"
	"depindex/internal/gateway/repository/gemstore"
)

type gatewayStores struct {
	gems    gemstore.Store
	mirror  *artifactcache.CachedStore
	closers []func() error
}

func initStores(ctx context.Context, cfg *config.Config) (*gatewayStores, error) {
	mirror, err := chooseArtifactStore(cfg)
	if err != nil {
		return nil, err
	}
	if dsn := strings.TrimSpace(cfg.DatabaseURL); dsn != "" {
		pgStore, err := openPostgresWithRetry(ctx, dsn)
		if err != nil {
			return nil, err
		}
		log.Printf("gem store: postgres")
		return &gatewayStores{
			gems:    pgStore,
			mirror:  mirror,
			closers: []func() error{pgStore.Close},
		}, nil
	}
	log.Printf("gem store: in-memory")
	return &gatewayStores{
		gems:   gemstore.NewMemoryStore(),
		mirror: mirror,
	}, nil
}

// openPostgresWithRetry waits for the database to accept connections, which
// matters when the service and the database start together.
func openPostgresWithRetry(ctx context.Context, dsn string) (*gemstore.PostgresStore, error) {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 500 * time.Millisecond
	expBackoff.MaxInterval = 5 * time.Second
	expBackoff.MaxElapsedTime = 30 * time.Second
	expBackoff.Reset()

	var store *gemstore.PostgresStore
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		s, err := gemstore.OpenPostgres(ctx, dsn)
		if err != nil {
			log.Printf("gem store: postgres not ready (attempt %d): %v", attempt, err)
			return err
		}
		store = s
		return nil
	}, backoff.WithContext(expBackoff, ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	return store, nil
}

// chooseArtifactStore picks the mirror origin and puts the sidecar cache in
// front of it. The cache lives as long as the serve process, so repeated
// publishes read unchanged fingerprints from memory.
func chooseArtifactStore(cfg *config.Config) (*artifactcache.CachedStore, error) {
	var origin artifactrepo.Store
	switch {
	case cfg.Artifact.CanUseS3():
		s3Cfg := artifactrepo.S3Config{
			Endpoint:  cfg.Artifact.Endpoint,
			Region:    cfg.Artifact.Region,
			AccessKey: cfg.Artifact.AccessKey,
			SecretKey: cfg.Artifact.SecretKey,
			Bucket:    cfg.Artifact.Bucket,
			UseSSL:    cfg.Artifact.UseSSL,
		}
		s3Store, err := artifactrepo.NewS3Store(s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize artifact s3 store: %w", err)
		}
		log.Printf("artifact store: s3 bucket=%s endpoint=%s", s3Cfg.Bucket, s3Cfg.Endpoint)
		origin = s3Store
	case strings.TrimSpace(cfg.Artifact.Dir) != "":
		log.Printf("artifact store: disk dir=%s", cfg.Artifact.Dir)
		origin = artifactrepo.NewDiskStore(cfg.Artifact.Dir)
	default:
		log.Printf("artifact store: in-memory")
		origin = artifactrepo.NewMemoryStore()
	}
	return artifactcache.NewCachedStore(origin, artifactcache.DefaultCacheConfig()), nil
}
