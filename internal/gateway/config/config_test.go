package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "APP_ENV", "DATABASE_URL", "FINGERPRINT_ALGORITHM", "UPSTREAM_URL",
		"MAX_BULK_NAMES", "HTTP_GZIP", "CONFIG_FILE",
		"ARTIFACT_MIRROR", "ARTIFACT_DIR", "ARTIFACT_S3_ENDPOINT", "ARTIFACT_S3_REGION",
		"ARTIFACT_S3_ACCESS_KEY", "ARTIFACT_S3_SECRET_KEY", "ARTIFACT_S3_BUCKET", "ARTIFACT_S3_USE_SSL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, ":8081", cfg.Port)
	assert.Equal(t, "blake3", cfg.Index.FingerprintAlgorithm)
	assert.Equal(t, 200, cfg.HTTP.MaxBulkNames)
	assert.Equal(t, "https://www.rubygems.org", cfg.HTTP.UpstreamURL)
	assert.True(t, cfg.HTTP.Gzip)
	assert.Equal(t, "tmp/mirror", cfg.Artifact.Dir)
	assert.False(t, cfg.Artifact.CanUseS3())
}

func TestLoadPrecedence(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "depindex.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: ":9000"
env: production
index:
  fingerprint_algorithm: sha256
http:
  max_bulk_names: 50
artifact:
  mirror: primary
`), 0o644))

	t.Setenv("MAX_BULK_NAMES", "75")
	t.Setenv("PORT", "9100")

	cfg, err := Load([]string{"--config", path, "--fingerprint", "md5"})
	require.NoError(t, err)
	assert.Equal(t, ":9100", cfg.Port)
	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, "md5", cfg.Index.FingerprintAlgorithm)
	assert.Equal(t, 75, cfg.HTTP.MaxBulkNames)
	assert.Equal(t, "primary", cfg.Artifact.Mirror)
	assert.Empty(t, cfg.Artifact.Dir)

	cfg, err = Load([]string{"--config", path, "--port", "7000"})
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Port)
}

func TestLoadRejectsBadValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("MAX_BULK_NAMES", "lots")
	_, err := Load(nil)
	assert.Error(t, err)

	clearEnv(t)
	_, err = Load([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}

func TestCanUseS3(t *testing.T) {
	a := ArtifactConfig{Endpoint: "localhost:9000", AccessKey: "k", SecretKey: "s"}
	assert.False(t, a.CanUseS3())
	a.Bucket = "index"
	assert.True(t, a.CanUseS3())
}
