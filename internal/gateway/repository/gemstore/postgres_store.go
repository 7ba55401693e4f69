package gemstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	_ "github.com/jackc/pgx/v5/stdlib"

	"depindex/internal/index"
)

// pg builds read queries with Postgres placeholders.
var pg = entsql.Dialect(dialect.Postgres)

// PostgresStore keeps packages in PostgreSQL. Writes lock the package row,
// apply the change, run the hook and commit in one transaction; per-package
// reads use a read-only repeatable-read transaction so versions and
// fingerprint come from the same snapshot.
type PostgresStore struct {
	db *sql.DB

	schemaMu    sync.Mutex
	schemaReady bool
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// OpenPostgres connects with the pgx driver, verifies the connection and
// applies the schema.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	store := NewPostgresStore(db)
	if err := store.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return store, nil
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *PostgresStore) ready(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store is nil")
	}
	if err := s.ensureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) PackageNames(ctx context.Context) ([]string, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	query, args := pg.Select("name").From(pg.Table("rubygems")).Query()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *PostgresStore) Packages(ctx context.Context) ([]index.Package, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return loadPackages(ctx, s.db, nil)
}

func (s *PostgresStore) PackagesByName(ctx context.Context, names []string) ([]index.Package, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, nil
	}
	return loadPackages(ctx, s.db, names)
}

func (s *PostgresStore) PackageState(ctx context.Context, name string) (index.PackageState, error) {
	if err := s.ready(ctx); err != nil {
		return index.PackageState{}, err
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return index.PackageState{}, err
	}
	defer func() { _ = tx.Rollback() }()

	pkg, err := loadPackage(ctx, tx, name)
	if err != nil {
		return index.PackageState{}, err
	}
	fp, err := loadFingerprint(ctx, tx, name)
	if err != nil {
		return index.PackageState{}, err
	}
	if err := tx.Commit(); err != nil {
		return index.PackageState{}, err
	}
	return index.PackageState{Package: pkg, Fingerprint: fp}, nil
}

func (s *PostgresStore) Fingerprint(ctx context.Context, name string) (index.Fingerprint, error) {
	if err := s.ready(ctx); err != nil {
		return "", err
	}
	return loadFingerprint(ctx, s.db, name)
}

func (s *PostgresStore) AddVersion(ctx context.Context, spec index.VersionSpec, hook index.Hook) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rubygems (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, spec.Name); err != nil {
			return fmt.Errorf("create package: %w", err)
		}
		gemID, err := lockPackage(ctx, tx, spec.Name)
		if err != nil {
			return err
		}

		var versionID int64
		var indexed bool
		err = tx.QueryRowContext(ctx, `
SELECT id, indexed FROM versions
WHERE rubygem_id = $1 AND number = $2 AND platform = $3`,
			gemID, spec.Number, spec.Platform).Scan(&versionID, &indexed)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			err = tx.QueryRowContext(ctx, `
INSERT INTO versions (rubygem_id, number, platform, prerelease)
VALUES ($1, $2, $3, $4)
RETURNING id`,
				gemID, spec.Number, spec.Platform, spec.Prerelease).Scan(&versionID)
			if err != nil {
				return fmt.Errorf("insert version: %w", err)
			}
		case err != nil:
			return fmt.Errorf("find version: %w", err)
		case indexed:
			return fmt.Errorf("%s %s (%s): %w", spec.Name, spec.Number, spec.Platform, index.ErrVersionExists)
		default:
			if _, err := tx.ExecContext(ctx, `
UPDATE versions SET indexed = TRUE, removed_at = NULL, prerelease = $2
WHERE id = $1`, versionID, spec.Prerelease); err != nil {
				return fmt.Errorf("revive version: %w", err)
			}
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM dependencies WHERE version_id = $1`, versionID); err != nil {
				return fmt.Errorf("clear dependencies: %w", err)
			}
		}

		for _, d := range spec.Dependencies {
			if _, err := tx.ExecContext(ctx, `
INSERT INTO dependencies (version_id, name, requirements)
VALUES ($1, $2, $3)`, versionID, d.Name, d.Requirement); err != nil {
				return fmt.Errorf("insert dependency %s: %w", d.Name, err)
			}
		}
		return hook(ctx, postgresTx{tx: tx}, spec.Name)
	})
}

func (s *PostgresStore) RemoveVersion(ctx context.Context, ref index.VersionRef, hook index.Hook) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		gemID, err := lockPackage(ctx, tx, ref.Name)
		if errors.Is(err, index.ErrNotFound) {
			return &index.NotFoundError{Name: ref.Name, Number: ref.Number, Platform: ref.Platform}
		}
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
UPDATE versions SET indexed = FALSE, removed_at = NOW()
WHERE rubygem_id = $1 AND number = $2 AND platform = $3 AND indexed`,
			gemID, ref.Number, ref.Platform)
		if err != nil {
			return fmt.Errorf("remove version: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return &index.NotFoundError{Name: ref.Name, Number: ref.Number, Platform: ref.Platform}
		}
		return hook(ctx, postgresTx{tx: tx}, ref.Name)
	})
}

func (s *PostgresStore) Refresh(ctx context.Context, name string, hook index.Hook) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		if _, err := lockPackage(ctx, tx, name); err != nil {
			return err
		}
		return hook(ctx, postgresTx{tx: tx}, name)
	})
}

// write runs fn in a transaction and commits only if fn succeeds.
func (s *PostgresStore) write(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// lockPackage takes the row lock that serializes writers of one package.
func lockPackage(ctx context.Context, tx *sql.Tx, name string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM rubygems WHERE name = $1 FOR UPDATE`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, &index.NotFoundError{Name: name}
	}
	if err != nil {
		return 0, fmt.Errorf("lock package %s: %w", name, err)
	}
	return id, nil
}

// postgresTx is the hook view of a write transaction.
type postgresTx struct {
	tx *sql.Tx
}

func (t postgresTx) Package(ctx context.Context, name string) (index.Package, error) {
	return loadPackage(ctx, t.tx, name)
}

func (t postgresTx) SetFingerprint(ctx context.Context, name string, fp index.Fingerprint) error {
	value := sql.NullString{String: string(fp), Valid: fp != ""}
	res, err := t.tx.ExecContext(ctx,
		`UPDATE rubygems SET deps_fingerprint = $2 WHERE name = $1`, name, value)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &index.NotFoundError{Name: name}
	}
	return nil
}

func loadFingerprint(ctx context.Context, q queryer, name string) (index.Fingerprint, error) {
	query, args := pg.Select("deps_fingerprint").
		From(pg.Table("rubygems")).
		Where(entsql.EQ("name", name)).
		Query()
	var fp sql.NullString
	err := q.QueryRowContext(ctx, query, args...).Scan(&fp)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load fingerprint: %w", err)
	}
	return index.Fingerprint(fp.String), nil
}

func loadPackage(ctx context.Context, q queryer, name string) (index.Package, error) {
	pkgs, err := loadPackages(ctx, q, []string{name})
	if err != nil {
		return index.Package{}, err
	}
	if len(pkgs) == 0 {
		return index.Package{Name: name}, nil
	}
	return pkgs[0], nil
}

// loadPackages returns packages with live versions; names == nil means all.
func loadPackages(ctx context.Context, q queryer, names []string) ([]index.Package, error) {
	g := pg.Table("rubygems").As("g")
	v := pg.Table("versions").As("v")
	sel := pg.Select(g.C("name"), v.C("id"), v.C("number"), v.C("platform"), v.C("prerelease"), v.C("created_at")).
		From(g).
		Join(v).On(g.C("id"), v.C("rubygem_id")).
		Where(entsql.EQ(v.C("indexed"), true)).
		OrderBy(g.C("name"), v.C("id"))
	if names != nil {
		args := make([]any, len(names))
		for i, n := range names {
			args[i] = n
		}
		sel.Where(entsql.In(g.C("name"), args...))
	}
	query, args := sel.Query()
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query versions: %w", err)
	}

	var (
		order  []string
		byName = make(map[string][]versionRow)
		ids    []any
	)
	for rows.Next() {
		var name string
		var row versionRow
		if err := scanVersion(rows, &name, &row); err != nil {
			rows.Close()
			return nil, err
		}
		row.Indexed = true
		if _, ok := byName[name]; !ok {
			order = append(order, name)
		}
		byName[name] = append(byName[name], row)
		ids = append(ids, row.ID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	if len(ids) == 0 {
		return nil, nil
	}

	deps, err := loadDependencies(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	out := make([]index.Package, 0, len(order))
	for _, name := range order {
		rowsFor := byName[name]
		pkg := index.Package{Name: name, Versions: make([]index.Version, 0, len(rowsFor))}
		for i := range rowsFor {
			rowsFor[i].Deps = deps[rowsFor[i].ID]
			pkg.Versions = append(pkg.Versions, rowsFor[i].toIndex())
		}
		out = append(out, pkg)
	}
	return out, nil
}

func scanVersion(row rowScanner, name *string, v *versionRow) error {
	return row.Scan(name, &v.ID, &v.Number, &v.Platform, &v.Prerelease, &v.CreatedAt)
}

func loadDependencies(ctx context.Context, q queryer, versionIDs []any) (map[int64][]index.Dependency, error) {
	d := pg.Table("dependencies")
	query, args := pg.Select(d.C("version_id"), d.C("name"), d.C("requirements")).
		From(d).
		Where(entsql.In(d.C("version_id"), versionIDs...)).
		OrderBy(d.C("id")).
		Query()
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query dependencies: %w", err)
	}
	defer rows.Close()
	out := make(map[int64][]index.Dependency)
	for rows.Next() {
		var versionID int64
		var dep index.Dependency
		if err := rows.Scan(&versionID, &dep.Name, &dep.Requirement); err != nil {
			return nil, err
		}
		out[versionID] = append(out[versionID], dep)
	}
	return out, rows.Err()
}
