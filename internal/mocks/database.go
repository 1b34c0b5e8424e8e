package mocks

import (
	"context"
	"database/sql"
	"errors"

	"github.com/kehindemorol/vestra/internal/repository"

	"github.com/jmoiron/sqlx"
)

// MockDatabase hands out whatever repositories the test wires in. BeginTx
// fails by default; paths under test that must not reach the database can
// assert they never see this error. Tests that exercise a transactional
// flow set TxProvider, usually to NewTestTx.
type MockDatabase struct {
	BalanceRepo       repository.BalanceRepository
	ChecksumRepo      repository.ChecksumRepository
	TransactionRepo   repository.TransactionLogRepository
	AuditRepo         repository.SecurityAuditRepository
	WithdrawalRepo    repository.WithdrawalRepository
	QueueRepo         repository.QueueRepository
	BusinessHoursRepo repository.BusinessHoursRepository
	AdminRepo         repository.AdminRepository

	TxProvider func() (*sqlx.Tx, error)
}

var ErrNoTestTransaction = errors.New("mock database does not support transactions")

func (d *MockDatabase) Balance() repository.BalanceRepository            { return d.BalanceRepo }
func (d *MockDatabase) Checksum() repository.ChecksumRepository          { return d.ChecksumRepo }
func (d *MockDatabase) TransactionLog() repository.TransactionLogRepository {
	return d.TransactionRepo
}
func (d *MockDatabase) SecurityAudit() repository.SecurityAuditRepository { return d.AuditRepo }
func (d *MockDatabase) Withdrawal() repository.WithdrawalRepository       { return d.WithdrawalRepo }
func (d *MockDatabase) Queue() repository.QueueRepository                 { return d.QueueRepo }
func (d *MockDatabase) BusinessHours() repository.BusinessHoursRepository {
	return d.BusinessHoursRepo
}
func (d *MockDatabase) Admin() repository.AdminRepository { return d.AdminRepo }

func (d *MockDatabase) Close() error { return nil }

func (d *MockDatabase) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	if d.TxProvider != nil {
		return d.TxProvider()
	}
	return nil, ErrNoTestTransaction
}
