// Every security-relevant action ends up in the audit log, whether it came
// from the ledger, the scheduler, or the HTTP surface. The core never reads
// this table back; it is written for operators and investigations.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
)

type SecurityAuditEntry struct {
	ID        string         `db:"id"`
	EventType string         `db:"event_type"`
	UserID    sql.NullString `db:"user_id"`
	AdminID   sql.NullString `db:"admin_id"`
	Details   string         `db:"details"`
	Severity  string         `db:"severity"`
	IPAddress string         `db:"ip_address"`
	UserAgent string         `db:"user_agent"`
	CreatedAt time.Time      `db:"created_at"`
}

const (
	SeverityInfo      = "info"
	SeverityWarning   = "warning"
	SeverityCritical  = "critical"
	SeverityEmergency = "emergency"
)

type SecurityAuditRepository interface {
	Insert(entry *SecurityAuditEntry) (string, error)
}

type SecurityAuditRepositoryImpl struct {
	db *sqlx.DB
}

func NewSecurityAuditRepository(db *sqlx.DB) SecurityAuditRepository {
	return &SecurityAuditRepositoryImpl{db: db}
}

// Insert deliberately takes no transaction: audit entries recording a failed
// operation must survive that operation's rollback.
func (repo *SecurityAuditRepositoryImpl) Insert(entry *SecurityAuditEntry) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var id string

	query := `
		INSERT INTO security_audit_log (
			event_type, user_id, admin_id, details, severity, ip_address,
			user_agent
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	err := repo.db.GetContext(ctx, &id, query,
		entry.EventType,
		entry.UserID,
		entry.AdminID,
		entry.Details,
		entry.Severity,
		entry.IPAddress,
		entry.UserAgent,
	)

	if err != nil {
		return "", err
	}

	return id, nil
}
