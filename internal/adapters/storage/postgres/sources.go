package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/starstech/medtrack-sub001/internal/domain/doses"
	"github.com/starstech/medtrack-sub001/internal/domain/medications"
	"github.com/starstech/medtrack-sub001/internal/domain/reminders"
)

const medicationColumns = `
	id, patient_id, name,
	dosage_amount, dosage_unit, form,
	frequency, times,
	start_date, end_date, active`

// MedicationsSource lee la tabla medications. Nunca escribe.
type MedicationsSource struct {
	db *sql.DB
}

func NewMedicationsSource(db *sql.DB) *MedicationsSource {
	return &MedicationsSource{db: db}
}

func (s *MedicationsSource) GetByID(ctx context.Context, id string) (medications.Medication, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return medications.Medication{}, medications.ErrNotFound
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+medicationColumns+` FROM medications WHERE id = $1`, id)
	m, err := scanMedication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return medications.Medication{}, medications.ErrNotFound
	}
	return m, err
}

func (s *MedicationsSource) ListActive(ctx context.Context, patientID string) ([]medications.Medication, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+medicationColumns+`
		FROM medications
		WHERE patient_id = $1 AND active = TRUE
		ORDER BY id ASC
	`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]medications.Medication, 0)
	for rows.Next() {
		m, err := scanMedication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMedication(row rowScanner) (medications.Medication, error) {
	var (
		m         medications.Medication
		form      string
		frequency string
		times     string
		end       sql.NullTime
	)
	if err := row.Scan(
		&m.ID,
		&m.PatientID,
		&m.Name,
		&m.DosageAmount,
		&m.DosageUnit,
		&form,
		&frequency,
		&times,
		&m.StartDate,
		&end,
		&m.Active,
	); err != nil {
		return medications.Medication{}, err
	}

	m.Form = medications.Form(form)
	m.Frequency = medications.FrequencyRule(frequency)
	m.Times = splitCSV(times)
	if end.Valid {
		e := end.Time
		m.EndDate = &e
	}
	return m, nil
}

// PreferencesSource lee reminder_preferences.
type PreferencesSource struct {
	db *sql.DB
}

func NewPreferencesSource(db *sql.DB) *PreferencesSource {
	return &PreferencesSource{db: db}
}

func (s *PreferencesSource) Get(ctx context.Context, userID string) (reminders.Preference, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT
			user_id,
			push_enabled, email_enabled, medication_reminders_enabled,
			offsets_minutes,
			quiet_hours_enabled, quiet_hours_start, quiet_hours_end,
			timezone
		FROM reminder_preferences
		WHERE user_id = $1
	`, userID)

	var (
		p                    reminders.Preference
		offsets              string
		quietStart, quietEnd string
	)
	if err := row.Scan(
		&p.UserID,
		&p.PushEnabled,
		&p.EmailEnabled,
		&p.MedicationRemindersEnabled,
		&offsets,
		&p.QuietHours.Enabled,
		&quietStart,
		&quietEnd,
		&p.Timezone,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return reminders.Preference{}, reminders.ErrPreferenceNotFound
		}
		return reminders.Preference{}, err
	}

	for _, raw := range splitCSV(offsets) {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return reminders.Preference{}, fmt.Errorf("%w: offset %q", reminders.ErrInvalidOffset, raw)
		}
		p.OffsetsMinutes = append(p.OffsetsMinutes, n)
	}

	var err error
	if p.QuietHours.Start, err = doses.ParseTimeOfDay(quietStart); err != nil {
		return reminders.Preference{}, fmt.Errorf("%w: quiet_hours_start: %v", reminders.ErrInvalidPreference, err)
	}
	if p.QuietHours.End, err = doses.ParseTimeOfDay(quietEnd); err != nil {
		return reminders.Preference{}, fmt.Errorf("%w: quiet_hours_end: %v", reminders.ErrInvalidPreference, err)
	}
	return p, nil
}

// CareTeam resuelve destinatarios desde care_team. El paciente va siempre primero.
type CareTeam struct {
	db *sql.DB
}

func NewCareTeam(db *sql.DB) *CareTeam {
	return &CareTeam{db: db}
}

func (c *CareTeam) RecipientsFor(ctx context.Context, patientID string) ([]string, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, nil
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT user_id FROM care_team
		WHERE patient_id = $1 AND user_id <> $1
		ORDER BY user_id ASC
	`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{patientID}
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
