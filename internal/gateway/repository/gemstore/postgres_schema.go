package gemstore

import "context"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS rubygems (
  id BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL UNIQUE,
  deps_fingerprint TEXT,
  created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS versions (
  id BIGSERIAL PRIMARY KEY,
  rubygem_id BIGINT NOT NULL REFERENCES rubygems (id),
  number TEXT NOT NULL,
  platform TEXT NOT NULL DEFAULT 'ruby',
  prerelease BOOLEAN NOT NULL DEFAULT FALSE,
  indexed BOOLEAN NOT NULL DEFAULT TRUE,
  created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
  removed_at TIMESTAMP WITH TIME ZONE,
  UNIQUE (rubygem_id, number, platform)
);
CREATE INDEX IF NOT EXISTS idx_versions_rubygem_id ON versions (rubygem_id);

CREATE TABLE IF NOT EXISTS dependencies (
  id BIGSERIAL PRIMARY KEY,
  version_id BIGINT NOT NULL REFERENCES versions (id) ON DELETE CASCADE,
  name TEXT NOT NULL,
  requirements TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_dependencies_version_id ON dependencies (version_id);
`

// ensureSchema applies schemaSQL until it succeeds once. The statement
// ignores the caller's cancellation; a failed attempt is retried on the next
// call.
func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()
	if s.schemaReady {
		return nil
	}
	if _, err := s.db.ExecContext(context.WithoutCancel(ctx), schemaSQL); err != nil {
		return err
	}
	s.schemaReady = true
	return nil
}
