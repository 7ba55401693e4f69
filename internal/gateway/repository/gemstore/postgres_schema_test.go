package gemstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// schemaConn records schema statements without a database. Only ExecContext
// is supported.
type schemaConn struct {
	mu        sync.Mutex
	execs     int
	failFirst int
	ctxErrs   []error
}

func (c *schemaConn) Connect(context.Context) (driver.Conn, error) { return c, nil }
func (c *schemaConn) Driver() driver.Driver                        { return schemaDriver{c} }

func (c *schemaConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepare not supported")
}
func (c *schemaConn) Close() error              { return nil }
func (c *schemaConn) Begin() (driver.Tx, error) { return nil, errors.New("transactions not supported") }

func (c *schemaConn) ExecContext(ctx context.Context, _ string, _ []driver.NamedValue) (driver.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.execs++
	c.ctxErrs = append(c.ctxErrs, ctx.Err())
	if c.failFirst > 0 {
		c.failFirst--
		return nil, errors.New("relation lock timeout")
	}
	return driver.RowsAffected(0), nil
}

type schemaDriver struct{ c *schemaConn }

func (d schemaDriver) Open(string) (driver.Conn, error) { return d.c, nil }

func newSchemaStore(t *testing.T, conn *schemaConn) *PostgresStore {
	t.Helper()
	db := sql.OpenDB(conn)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresStore(db)
}

func TestSchemaSurvivesCancelledRequest(t *testing.T) {
	conn := &schemaConn{}
	store := newSchemaStore(t, conn)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, store.ready(ctx))

	require.Equal(t, 1, conn.execs)
	assert.NoError(t, conn.ctxErrs[0])

	require.NoError(t, store.ready(context.Background()))
	assert.Equal(t, 1, conn.execs)
}

func TestSchemaFailureIsRetried(t *testing.T) {
	conn := &schemaConn{failFirst: 1}
	store := newSchemaStore(t, conn)
	ctx := context.Background()

	err := store.ready(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ensure schema")

	require.NoError(t, store.ready(ctx))
	assert.Equal(t, 2, conn.execs)

	require.NoError(t, store.ready(ctx))
	assert.Equal(t, 2, conn.execs)
}
