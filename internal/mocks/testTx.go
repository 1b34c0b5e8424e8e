package mocks

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"

	"github.com/jmoiron/sqlx"
)

// NewTestTx returns a transaction backed by a no-op driver. The repository
// mocks ignore the transaction handle entirely, so this is enough to run a
// transactional flow end to end: Commit and Rollback succeed, and any
// attempt to actually query through the handle fails loudly.
func NewTestTx() (*sqlx.Tx, error) {
	db := sqlx.NewDb(sql.OpenDB(noopConnector{}), "postgres")
	return db.Beginx()
}

type noopConnector struct{}

func (noopConnector) Connect(ctx context.Context) (driver.Conn, error) { return noopConn{}, nil }
func (noopConnector) Driver() driver.Driver                            { return noopDriver{} }

type noopDriver struct{}

func (noopDriver) Open(name string) (driver.Conn, error) { return noopConn{}, nil }

type noopConn struct{}

func (noopConn) Prepare(query string) (driver.Stmt, error) {
	return nil, errors.New("mock transaction does not execute queries")
}
func (noopConn) Close() error              { return nil }
func (noopConn) Begin() (driver.Tx, error) { return noopTx{}, nil }

type noopTx struct{}

func (noopTx) Commit() error   { return nil }
func (noopTx) Rollback() error { return nil }
