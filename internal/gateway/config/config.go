package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port        string         `yaml:"port"`
	Env         string         `yaml:"env"`
	DatabaseURL string         `yaml:"database_url"`
	Index       IndexConfig    `yaml:"index"`
	HTTP        HTTPConfig     `yaml:"http"`
	Artifact    ArtifactConfig `yaml:"artifact"`
}

type IndexConfig struct {
	FingerprintAlgorithm string `yaml:"fingerprint_algorithm"`
}

type HTTPConfig struct {
	MaxBulkNames int    `yaml:"max_bulk_names"`
	UpstreamURL  string `yaml:"upstream_url"`
	Gzip         bool   `yaml:"gzip"`
}

type ArtifactConfig struct {
	Mirror    string `yaml:"mirror"`
	Dir       string `yaml:"dir"`
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// CanUseS3 reports whether every setting the S3 store needs is present.
func (a ArtifactConfig) CanUseS3() bool {
	return strings.TrimSpace(a.Endpoint) != "" &&
		strings.TrimSpace(a.AccessKey) != "" &&
		strings.TrimSpace(a.SecretKey) != "" &&
		strings.TrimSpace(a.Bucket) != ""
}

func defaults() Config {
	return Config{
		Port: ":8081",
		Env:  "local",
		Index: IndexConfig{
			FingerprintAlgorithm: "blake3",
		},
		HTTP: HTTPConfig{
			MaxBulkNames: 200,
			UpstreamURL:  "https://www.rubygems.org",
			Gzip:         true,
		},
		Artifact: ArtifactConfig{
			Mirror: "default",
			Region: "us-east-1",
		},
	}
}

// Load resolves configuration in increasing precedence: defaults, the YAML
// file named by --config or CONFIG_FILE, the environment (after loading
// .env), then flags given explicitly on the command line.
func Load(args []string) (*Config, error) {
	_ = godotenv.Load()

	fs := pflag.NewFlagSet("depindex", pflag.ContinueOnError)
	port := fs.String("port", ":8081", "server port")
	configFile := fs.String("config", "", "YAML config file")
	databaseURL := fs.String("database-url", "", "PostgreSQL DSN; empty uses the in-memory store")
	algorithm := fs.String("fingerprint", "", "fingerprint algorithm: blake3, sha256 or md5")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := defaults()
	path := firstNonEmpty(strings.TrimSpace(*configFile), strings.TrimSpace(os.Getenv("CONFIG_FILE")))
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if strings.EqualFold(cfg.Env, "local") {
		applyLocal(&cfg)
	}

	if fs.Changed("port") {
		cfg.Port = normalizePort(*port)
	}
	if fs.Changed("database-url") {
		cfg.DatabaseURL = strings.TrimSpace(*databaseURL)
	}
	if fs.Changed("fingerprint") {
		cfg.Index.FingerprintAlgorithm = strings.TrimSpace(*algorithm)
	}
	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		cfg.Port = normalizePort(v)
	}
	cfg.Env = firstNonEmpty(strings.TrimSpace(os.Getenv("APP_ENV")), cfg.Env)
	cfg.DatabaseURL = firstNonEmpty(strings.TrimSpace(os.Getenv("DATABASE_URL")), cfg.DatabaseURL)
	cfg.Index.FingerprintAlgorithm = firstNonEmpty(strings.TrimSpace(os.Getenv("FINGERPRINT_ALGORITHM")), cfg.Index.FingerprintAlgorithm)
	cfg.HTTP.UpstreamURL = firstNonEmpty(strings.TrimSpace(os.Getenv("UPSTREAM_URL")), cfg.HTTP.UpstreamURL)

	var err error
	if cfg.HTTP.MaxBulkNames, err = envInt("MAX_BULK_NAMES", cfg.HTTP.MaxBulkNames); err != nil {
		return err
	}
	cfg.HTTP.Gzip = envBool("HTTP_GZIP", cfg.HTTP.Gzip)

	a := &cfg.Artifact
	a.Mirror = firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_MIRROR")), a.Mirror)
	a.Dir = firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_DIR")), a.Dir)
	a.Endpoint = firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_ENDPOINT")), a.Endpoint)
	a.Region = firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_REGION")), a.Region)
	a.AccessKey = firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_ACCESS_KEY")), a.AccessKey)
	a.SecretKey = firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_SECRET_KEY")), a.SecretKey)
	a.Bucket = firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_BUCKET")), a.Bucket)
	a.UseSSL = envBool("ARTIFACT_S3_USE_SSL", a.UseSSL)
	return nil
}

func envInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func envBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}

func normalizePort(port string) string {
	if strings.HasPrefix(port, ":") || strings.Contains(port, ":") {
		return port
	}
	return ":" + port
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
