package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"sync"
	"testing"
)

type recordedCall struct {
	query string
	args  []driver.NamedValue
}

// fakeConn answers every query with the configured rows and every exec with
// execErr, recording what it was asked.
type fakeConn struct {
	mu      sync.Mutex
	calls   []recordedCall
	columns []string
	rows    [][]driver.Value
	execErr error
}

func (c *fakeConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepare not supported")
}

func (c *fakeConn) Close() error { return nil }

func (c *fakeConn) Begin() (driver.Tx, error) {
	return nil, errors.New("transactions not supported")
}

func (c *fakeConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, recordedCall{query: query, args: args})
	return &fakeRows{columns: c.columns, values: c.rows}, nil
}

func (c *fakeConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, recordedCall{query: query, args: args})
	if c.execErr != nil {
		return nil, c.execErr
	}
	return driver.RowsAffected(1), nil
}

type fakeRows struct {
	columns []string
	values  [][]driver.Value
	next    int
}

func (r *fakeRows) Columns() []string { return r.columns }

func (r *fakeRows) Close() error { return nil }

func (r *fakeRows) Next(dest []driver.Value) error {
	if r.next >= len(r.values) {
		return io.EOF
	}
	copy(dest, r.values[r.next])
	r.next++
	return nil
}

type fakeConnector struct {
	conn *fakeConn
}

func (c fakeConnector) Connect(context.Context) (driver.Conn, error) { return c.conn, nil }

func (c fakeConnector) Driver() driver.Driver { return fakeDriver{conn: c.conn} }

type fakeDriver struct {
	conn *fakeConn
}

func (d fakeDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

func openFakeDB(t *testing.T, conn *fakeConn) *sql.DB {
	t.Helper()
	db := sql.OpenDB(fakeConnector{conn: conn})
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}
