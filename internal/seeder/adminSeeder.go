package seeders

import (
	"context"
	"log"

	"github.com/kehindemorol/vestra/internal/env"

	"github.com/cradoe/gopass"
)

// seedBootstrapAdmin creates the first admin account so a fresh deployment
// can log in. The password must be rotated after first login; on conflict
// the existing account is left untouched.
func (seeder *Seeder) seedBootstrapAdmin() {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	email := env.GetString("BOOTSTRAP_ADMIN_EMAIL", "admin@example.org")
	password := env.GetString("BOOTSTRAP_ADMIN_PASSWORD", "")

	if password == "" {
		log.Println("BOOTSTRAP_ADMIN_PASSWORD not set, skipping admin seeding")
		return
	}

	hashedPassword, err := gopass.Hash(password)
	if err != nil {
		log.Fatalf("Failed to hash bootstrap admin password: %v", err)
	}

	tx, err := seeder.DB.BeginTx(ctx, nil)
	if err != nil {
		log.Fatalf("Failed to start transaction: %v", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO admin_users (email, full_name, hashed_password)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO NOTHING;`,
		email, "Bootstrap Admin", hashedPassword,
	)
	if err != nil {
		tx.Rollback()
		log.Fatalf("Failed to insert bootstrap admin: %v", err)
	}

	if err = tx.Commit(); err != nil {
		log.Fatalf("Failed to commit transaction: %v", err)
	}
}
