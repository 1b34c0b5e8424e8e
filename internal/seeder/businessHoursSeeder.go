package seeders

import (
	"context"
	"database/sql"
	"log"
)

// seedBusinessHours seeds the default Monday-Friday 09:00-16:00 processing
// window. Existing rows are left alone so admin overrides survive restarts.
func (seeder *Seeder) seedBusinessHours() {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	tx, err := seeder.DB.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		log.Fatalf("Failed to start transaction: %v", err)
	}

	// weekday 0 is Sunday; Saturday and Sunday get no row and are therefore
	// not business days
	businessDays := []struct {
		Weekday   int
		StartHour int
		EndHour   int
	}{
		{Weekday: 1, StartHour: 9, EndHour: 16},
		{Weekday: 2, StartHour: 9, EndHour: 16},
		{Weekday: 3, StartHour: 9, EndHour: 16},
		{Weekday: 4, StartHour: 9, EndHour: 16},
		{Weekday: 5, StartHour: 9, EndHour: 16},
	}

	for _, day := range businessDays {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO business_hours (weekday, start_hour, end_hour, is_active)
			VALUES ($1, $2, $3, true)
			ON CONFLICT (weekday) DO NOTHING;`,
			day.Weekday, day.StartHour, day.EndHour,
		)
		if err != nil {
			tx.Rollback()
			log.Fatalf("Failed to insert business hours for weekday %d: %v", day.Weekday, err)
		}
	}

	if err = tx.Commit(); err != nil {
		log.Fatalf("Failed to commit transaction: %v", err)
	}
}
