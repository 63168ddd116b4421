package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Migrate crea las tablas si no existen. Es idempotente.
// medications, reminder_preferences y care_team pertenecen a otros servicios;
// se crean acá solo para desarrollo local.
func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		createDosesTable,
		createDosesIndexes,
		createMedicationsTable,
		createPreferencesTable,
		createCareTeamTable,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

const (
	createDosesTable = `
		CREATE TABLE IF NOT EXISTS doses (
			id TEXT PRIMARY KEY,
			medication_id TEXT NOT NULL,
			patient_id TEXT NOT NULL,
			scheduled_time TIMESTAMPTZ NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending'
				CHECK (status IN ('pending', 'taken', 'missed', 'skipped')),
			actual_time TIMESTAMPTZ NULL,
			notes TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			CONSTRAINT doses_medication_time_uniq UNIQUE (medication_id, scheduled_time),
			CONSTRAINT doses_actual_time_chk
				CHECK ((status IN ('pending', 'missed')) = (actual_time IS NULL))
		);`

	createDosesIndexes = `
		CREATE INDEX IF NOT EXISTS doses_patient_time_idx ON doses (patient_id, scheduled_time);
		CREATE INDEX IF NOT EXISTS doses_pending_time_idx ON doses (scheduled_time) WHERE status = 'pending';`

	createMedicationsTable = `
		CREATE TABLE IF NOT EXISTS medications (
			id TEXT PRIMARY KEY,
			patient_id TEXT NOT NULL,
			name TEXT NOT NULL,
			dosage_amount DOUBLE PRECISION NOT NULL DEFAULT 0,
			dosage_unit TEXT NOT NULL DEFAULT '',
			form TEXT NOT NULL DEFAULT '',
			frequency TEXT NOT NULL,
			times TEXT NOT NULL DEFAULT '',
			start_date DATE NOT NULL,
			end_date DATE NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			CONSTRAINT medications_dates_chk CHECK (end_date IS NULL OR end_date >= start_date)
		);`

	createPreferencesTable = `
		CREATE TABLE IF NOT EXISTS reminder_preferences (
			user_id TEXT PRIMARY KEY,
			push_enabled BOOLEAN NOT NULL DEFAULT TRUE,
			email_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			medication_reminders_enabled BOOLEAN NOT NULL DEFAULT TRUE,
			offsets_minutes TEXT NOT NULL DEFAULT '15',
			quiet_hours_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			quiet_hours_start TEXT NOT NULL DEFAULT '22:00',
			quiet_hours_end TEXT NOT NULL DEFAULT '07:00',
			timezone TEXT NOT NULL DEFAULT 'UTC'
		);`

	createCareTeamTable = `
		CREATE TABLE IF NOT EXISTS care_team (
			patient_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			PRIMARY KEY (patient_id, user_id)
		);`
)
