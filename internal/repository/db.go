package repository

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/kehindemorol/vestra/assets"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/lib/pq"
)

const defaultTimeout = 3 * time.Second

// Database interface defines available repositories
type Database interface {
	Balance() BalanceRepository
	Checksum() ChecksumRepository
	TransactionLog() TransactionLogRepository
	SecurityAudit() SecurityAuditRepository
	Withdrawal() WithdrawalRepository
	Queue() QueueRepository
	BusinessHours() BusinessHoursRepository
	Admin() AdminRepository

	Close() error
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// DatabaseImpl implements the Database interface
type DatabaseImpl struct {
	db                *sqlx.DB
	balanceRepo       BalanceRepository
	checksumRepo      ChecksumRepository
	txLogRepo         TransactionLogRepository
	auditRepo         SecurityAuditRepository
	withdrawalRepo    WithdrawalRepository
	queueRepo         QueueRepository
	businessHoursRepo BusinessHoursRepository
	adminRepo         AdminRepository

	mu sync.Mutex
}

// New initializes a database connection and runs migrations if enabled
func New(dsn string, automigrate bool) (Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	db, err := sqlx.ConnectContext(ctx, "postgres", "postgres://"+dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(2 * time.Hour)

	if automigrate {
		iofsDriver, err := iofs.New(assets.EmbeddedFiles, "migrations")
		if err != nil {
			return nil, err
		}

		migrator, err := migrate.NewWithSourceInstance("iofs", iofsDriver, "postgres://"+dsn)
		if err != nil {
			return nil, err
		}

		if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return nil, err
		}
	}

	return &DatabaseImpl{db: db}, nil
}

func (d *DatabaseImpl) Close() error {
	return d.db.Close()
}

func (d *DatabaseImpl) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	tx, err := d.db.BeginTxx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (d *DatabaseImpl) Balance() BalanceRepository {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.balanceRepo == nil {
		d.balanceRepo = NewBalanceRepository(d.db)
	}
	return d.balanceRepo
}

func (d *DatabaseImpl) Checksum() ChecksumRepository {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.checksumRepo == nil {
		d.checksumRepo = NewChecksumRepository(d.db)
	}
	return d.checksumRepo
}

func (d *DatabaseImpl) TransactionLog() TransactionLogRepository {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.txLogRepo == nil {
		d.txLogRepo = NewTransactionLogRepository(d.db)
	}
	return d.txLogRepo
}

func (d *DatabaseImpl) SecurityAudit() SecurityAuditRepository {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.auditRepo == nil {
		d.auditRepo = NewSecurityAuditRepository(d.db)
	}
	return d.auditRepo
}

func (d *DatabaseImpl) Withdrawal() WithdrawalRepository {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.withdrawalRepo == nil {
		d.withdrawalRepo = NewWithdrawalRepository(d.db)
	}
	return d.withdrawalRepo
}

func (d *DatabaseImpl) Queue() QueueRepository {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.queueRepo == nil {
		d.queueRepo = NewQueueRepository(d.db)
	}
	return d.queueRepo
}

func (d *DatabaseImpl) BusinessHours() BusinessHoursRepository {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.businessHoursRepo == nil {
		d.businessHoursRepo = NewBusinessHoursRepository(d.db)
	}
	return d.businessHoursRepo
}

func (d *DatabaseImpl) Admin() AdminRepository {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.adminRepo == nil {
		d.adminRepo = NewAdminRepository(d.db)
	}
	return d.adminRepo
}
