package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

type AdminUser struct {
	ID             string       `db:"id"`
	Email          string       `db:"email"`
	FullName       string       `db:"full_name"`
	HashedPassword string       `db:"hashed_password"`
	Status         string       `db:"status"`
	CreatedAt      time.Time    `db:"created_at"`
	UpdatedAt      sql.NullTime `db:"updated_at"`
}

const (
	AdminAccountActiveStatus = "active"
	AdminAccountLockedStatus = "locked"
)

type AdminRepository interface {
	Insert(admin *AdminUser, tx *sqlx.Tx) (string, error)
	GetOne(id string) (*AdminUser, bool, error)
	GetByEmail(email string) (*AdminUser, bool, error)
}

type AdminRepositoryImpl struct {
	db *sqlx.DB
}

func NewAdminRepository(db *sqlx.DB) AdminRepository {
	return &AdminRepositoryImpl{db: db}
}

func (repo *AdminRepositoryImpl) Insert(admin *AdminUser, tx *sqlx.Tx) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var id string

	query := `
		INSERT INTO admin_users (email, full_name, hashed_password)
		VALUES ($1, $2, $3)
		RETURNING id`

	if tx != nil {
		err := tx.QueryRowContext(ctx, query,
			admin.Email,
			admin.FullName,
			admin.HashedPassword,
		).Scan(&id)
		if err != nil {
			return "", err
		}
		return id, nil
	}

	err := repo.db.GetContext(ctx, &id, query,
		admin.Email,
		admin.FullName,
		admin.HashedPassword,
	)
	if err != nil {
		return "", err
	}

	return id, nil
}

func (repo *AdminRepositoryImpl) GetOne(id string) (*AdminUser, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var admin AdminUser

	query := `
		SELECT id, email, full_name, hashed_password, status, created_at, updated_at
		FROM admin_users WHERE id=$1`

	err := repo.db.GetContext(ctx, &admin, query, id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return &admin, true, nil
}

func (repo *AdminRepositoryImpl) GetByEmail(email string) (*AdminUser, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var admin AdminUser

	query := `
		SELECT id, email, full_name, hashed_password, status, created_at, updated_at
		FROM admin_users WHERE email=$1`

	err := repo.db.GetContext(ctx, &admin, query, email)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return &admin, true, nil
}
