package config

// applyLocal fills development defaults: snapshots go to a local directory
// unless S3 is configured.
func applyLocal(cfg *Config) {
	if cfg.Artifact.Dir == "" && !cfg.Artifact.CanUseS3() {
		cfg.Artifact.Dir = "tmp/mirror"
	}
}
