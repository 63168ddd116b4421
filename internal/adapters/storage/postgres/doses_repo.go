package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starstech/medtrack-sub001/internal/domain/doses"
)

const doseColumns = `
	id, medication_id, patient_id,
	scheduled_time, status, actual_time, notes,
	created_at, updated_at`

type DosesRepo struct {
	db *sql.DB
}

func NewDosesRepo(db *sql.DB) *DosesRepo {
	return &DosesRepo{db: db}
}

// Create inserta en una transacción. Las dosis que chocan con la clave
// (medication_id, scheduled_time) o con el id se ignoran.
func (r *DosesRepo) Create(ctx context.Context, ds []doses.Dose) ([]doses.Dose, error) {
	out := make([]doses.Dose, 0, len(ds))
	if len(ds) == 0 {
		return out, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create doses: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, d := range ds {
		if strings.TrimSpace(d.ID) == "" {
			return nil, errors.New("dose id required")
		}
		d.ScheduledTime = d.ScheduledTime.UTC()

		res, err := tx.ExecContext(ctx, `
			INSERT INTO doses (
				id, medication_id, patient_id,
				scheduled_time, status, actual_time, notes,
				created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			ON CONFLICT DO NOTHING
		`,
			d.ID,
			d.MedicationID,
			d.PatientID,
			d.ScheduledTime,
			string(d.Status),
			nullTime(d.ActualTime),
			d.Notes,
			d.CreatedAt,
			d.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("insert dose %s: %w", d.ID, err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if n == 1 {
			out = append(out, d)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create doses: %w", err)
	}
	return out, nil
}

func (r *DosesRepo) GetByID(ctx context.Context, id string) (doses.Dose, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return doses.Dose{}, doses.ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `SELECT `+doseColumns+` FROM doses WHERE id = $1`, id)
	d, err := scanDose(row)
	if errors.Is(err, sql.ErrNoRows) {
		return doses.Dose{}, doses.ErrNotFound
	}
	return d, err
}

func (r *DosesRepo) List(ctx context.Context, filter doses.ListFilter) ([]doses.Dose, error) {
	sb := strings.Builder{}
	sb.WriteString(`SELECT ` + doseColumns + ` FROM doses WHERE TRUE`)

	args := []any{}
	argN := 1

	if filter.PatientID != "" {
		sb.WriteString(fmt.Sprintf(" AND patient_id = $%d", argN))
		args = append(args, filter.PatientID)
		argN++
	}
	if filter.MedicationID != "" {
		sb.WriteString(fmt.Sprintf(" AND medication_id = $%d", argN))
		args = append(args, filter.MedicationID)
		argN++
	}
	if filter.From != nil {
		sb.WriteString(fmt.Sprintf(" AND scheduled_time >= $%d", argN))
		args = append(args, filter.From.UTC())
		argN++
	}
	if filter.To != nil {
		sb.WriteString(fmt.Sprintf(" AND scheduled_time < $%d", argN))
		args = append(args, filter.To.UTC())
		argN++
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			placeholders = append(placeholders, fmt.Sprintf("$%d", argN))
			args = append(args, string(s))
			argN++
		}
		sb.WriteString(" AND status IN (" + strings.Join(placeholders, ",") + ")")
	}

	sb.WriteString(" ORDER BY scheduled_time ASC, id ASC")
	if filter.Limit > 0 {
		sb.WriteString(fmt.Sprintf(" LIMIT $%d", argN))
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]doses.Dose, 0)
	for rows.Next() {
		d, err := scanDose(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Transition es un UPDATE condicionado al estado actual: de dos escrituras
// concurrentes sobre la misma dosis, solo una encuentra la fila en t.From.
func (r *DosesRepo) Transition(ctx context.Context, t doses.Transition) (doses.Dose, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE doses
		SET status = $1,
			actual_time = $2,
			notes = COALESCE($3, notes),
			updated_at = $4
		WHERE id = $5 AND status = $6
		RETURNING `+doseColumns,
		string(t.To),
		nullTime(t.ActualTime),
		nullString(t.Notes),
		t.At,
		t.DoseID,
		string(t.From),
	)

	d, err := scanDose(row)
	if errors.Is(err, sql.ErrNoRows) {
		return doses.Dose{}, r.missOrConflict(ctx, t.DoseID)
	}
	return d, err
}

func (r *DosesRepo) UpdateNotes(ctx context.Context, id, notes string, at time.Time) (doses.Dose, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE doses SET notes = $1, updated_at = $2
		WHERE id = $3
		RETURNING `+doseColumns,
		notes, at, id,
	)

	d, err := scanDose(row)
	if errors.Is(err, sql.ErrNoRows) {
		return doses.Dose{}, doses.ErrNotFound
	}
	return d, err
}

func (r *DosesRepo) DeletePending(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM doses WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return r.missOrConflict(ctx, id)
	}
	return nil
}

func (r *DosesRepo) DeletePendingByMedication(ctx context.Context, medicationID string, from time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM doses
		WHERE medication_id = $1 AND status = 'pending' AND scheduled_time >= $2
	`, medicationID, from.UTC())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// missOrConflict distingue "no existe" de "cambió de estado" tras un UPDATE/DELETE vacío.
func (r *DosesRepo) missOrConflict(ctx context.Context, id string) error {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM doses WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return doses.ErrNotFound
	}
	return doses.ErrConflict
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDose(row rowScanner) (doses.Dose, error) {
	var (
		d      doses.Dose
		status string
		actual sql.NullTime
	)
	if err := row.Scan(
		&d.ID,
		&d.MedicationID,
		&d.PatientID,
		&d.ScheduledTime,
		&status,
		&actual,
		&d.Notes,
		&d.CreatedAt,
		&d.UpdatedAt,
	); err != nil {
		return doses.Dose{}, err
	}

	st, err := doses.ParseStatus(status)
	if err != nil {
		return doses.Dose{}, err
	}
	d.Status = st
	d.ScheduledTime = d.ScheduledTime.UTC()
	if actual.Valid {
		at := actual.Time.UTC()
		d.ActualTime = &at
	}
	return d, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
