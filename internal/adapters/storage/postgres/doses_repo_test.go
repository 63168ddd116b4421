package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starstech/medtrack-sub001/internal/domain/doses"
	"github.com/starstech/medtrack-sub001/internal/domain/medications"
	"github.com/starstech/medtrack-sub001/internal/domain/reminders"
)

var (
	doseCols = []string{
		"id", "medication_id", "patient_id",
		"scheduled_time", "status", "actual_time", "notes",
		"created_at", "updated_at",
	}
	at = time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC)
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestDosesRepo_CreateSkipsConflicts(t *testing.T) {
	db, mock := newMock(t)
	repo := NewDosesRepo(db)

	a := doses.Dose{ID: "d1", MedicationID: "m1", PatientID: "p1", ScheduledTime: at, Status: doses.StatusPending}
	b := doses.Dose{ID: "d2", MedicationID: "m1", PatientID: "p1", ScheduledTime: at.Add(12 * time.Hour), Status: doses.StatusPending}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO doses").
		WithArgs("d1", "m1", "p1", sqlmock.AnyArg(), "pending", nil, "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO doses").
		WithArgs("d2", "m1", "p1", sqlmock.AnyArg(), "pending", nil, "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	created, err := repo.Create(context.Background(), []doses.Dose{a, b})
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "d1", created[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDosesRepo_CreateRollsBackOnError(t *testing.T) {
	db, mock := newMock(t)
	repo := NewDosesRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO doses").WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), []doses.Dose{{ID: "d1", MedicationID: "m1", ScheduledTime: at, Status: doses.StatusPending}})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDosesRepo_GetByID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewDosesRepo(db)

	taken := at.Add(3 * time.Minute)
	mock.ExpectQuery(`SELECT (.+) FROM doses WHERE id = \$1`).
		WithArgs("d1").
		WillReturnRows(sqlmock.NewRows(doseCols).
			AddRow("d1", "m1", "p1", at, "taken", taken, "with food", at, taken))

	d, err := repo.GetByID(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, doses.StatusTaken, d.Status)
	require.NotNil(t, d.ActualTime)
	assert.True(t, d.ActualTime.Equal(taken))
	assert.Equal(t, "with food", d.Notes)

	mock.ExpectQuery(`SELECT (.+) FROM doses WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(doseCols))

	_, err = repo.GetByID(context.Background(), "missing")
	assert.True(t, errors.Is(err, doses.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDosesRepo_ListBuildsFilter(t *testing.T) {
	db, mock := newMock(t)
	repo := NewDosesRepo(db)

	from, to := at, at.Add(24*time.Hour)
	mock.ExpectQuery(`SELECT (.+) FROM doses WHERE TRUE AND patient_id = \$1 AND scheduled_time >= \$2 AND scheduled_time < \$3 AND status IN \(\$4,\$5\) ORDER BY scheduled_time ASC, id ASC LIMIT \$6`).
		WithArgs("p1", sqlmock.AnyArg(), sqlmock.AnyArg(), "pending", "missed", 10).
		WillReturnRows(sqlmock.NewRows(doseCols).
			AddRow("d1", "m1", "p1", at, "pending", nil, "", at, at).
			AddRow("d2", "m1", "p1", at.Add(time.Hour), "missed", nil, "", at, at))

	got, err := repo.List(context.Background(), doses.ListFilter{
		PatientID: "p1",
		From:      &from,
		To:        &to,
		Statuses:  []doses.Status{doses.StatusPending, doses.StatusMissed},
		Limit:     10,
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Nil(t, got[1].ActualTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDosesRepo_TransitionConditionalUpdate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewDosesRepo(db)
	ctx := context.Background()

	taken := at.Add(2 * time.Minute)
	notes := "ok"

	mock.ExpectQuery(`UPDATE doses SET status = \$1`).
		WithArgs("taken", sqlmock.AnyArg(), "ok", sqlmock.AnyArg(), "d1", "pending").
		WillReturnRows(sqlmock.NewRows(doseCols).
			AddRow("d1", "m1", "p1", at, "taken", taken, "ok", at, taken))

	d, err := repo.Transition(ctx, doses.Transition{
		DoseID: "d1", From: doses.StatusPending, To: doses.StatusTaken,
		ActualTime: &taken, Notes: &notes, At: taken,
	})
	require.NoError(t, err)
	assert.Equal(t, doses.StatusTaken, d.Status)

	// perdió la carrera: la fila existe pero ya no está pending
	mock.ExpectQuery(`UPDATE doses SET status = \$1`).
		WithArgs("missed", nil, nil, sqlmock.AnyArg(), "d1", "pending").
		WillReturnRows(sqlmock.NewRows(doseCols))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("d1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	_, err = repo.Transition(ctx, doses.Transition{DoseID: "d1", From: doses.StatusPending, To: doses.StatusMissed, At: taken})
	assert.True(t, errors.Is(err, doses.ErrConflict))

	mock.ExpectQuery(`UPDATE doses SET status = \$1`).
		WillReturnRows(sqlmock.NewRows(doseCols))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	_, err = repo.Transition(ctx, doses.Transition{DoseID: "nope", From: doses.StatusPending, To: doses.StatusMissed, At: taken})
	assert.True(t, errors.Is(err, doses.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDosesRepo_Deletes(t *testing.T) {
	db, mock := newMock(t)
	repo := NewDosesRepo(db)
	ctx := context.Background()

	mock.ExpectExec(`DELETE FROM doses WHERE id = \$1 AND status = 'pending'`).
		WithArgs("d1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("d1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := repo.DeletePending(ctx, "d1")
	assert.True(t, errors.Is(err, doses.ErrConflict))

	mock.ExpectExec(`DELETE FROM doses WHERE medication_id = \$1`).
		WithArgs("m1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.DeletePendingByMedication(ctx, "m1", at)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate(t *testing.T) {
	db, mock := newMock(t)

	for i := 0; i < 5; i++ {
		mock.ExpectExec("CREATE").WillReturnResult(sqlmock.NewResult(0, 0))
	}
	require.NoError(t, Migrate(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMedicationsSource(t *testing.T) {
	db, mock := newMock(t)
	src := NewMedicationsSource(db)

	cols := []string{"id", "patient_id", "name", "dosage_amount", "dosage_unit", "form", "frequency", "times", "start_date", "end_date", "active"}
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT (.+) FROM medications WHERE patient_id = \$1 AND active = TRUE`).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("m1", "p1", "Metformin", 500.0, "mg", "tablet", "twice_daily", "08:00, 20:00", start, nil, true))

	meds, err := src.ListActive(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, meds, 1)
	assert.Equal(t, medications.FrequencyTwiceDaily, meds[0].Frequency)
	assert.Equal(t, []string{"08:00", "20:00"}, meds[0].Times)
	assert.Nil(t, meds[0].EndDate)
	assert.Equal(t, "Metformin 500 mg", meds[0].Label())

	mock.ExpectQuery(`SELECT (.+) FROM medications WHERE id = \$1`).
		WithArgs("zz").
		WillReturnRows(sqlmock.NewRows(cols))

	_, err = src.GetByID(context.Background(), "zz")
	assert.True(t, errors.Is(err, medications.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPreferencesSource(t *testing.T) {
	db, mock := newMock(t)
	src := NewPreferencesSource(db)

	cols := []string{
		"user_id", "push_enabled", "email_enabled", "medication_reminders_enabled",
		"offsets_minutes", "quiet_hours_enabled", "quiet_hours_start", "quiet_hours_end", "timezone",
	}
	mock.ExpectQuery(`FROM reminder_preferences`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("u1", true, false, true, "15,60", true, "22:00", "07:00", "Europe/Madrid"))

	p, err := src.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []int{15, 60}, p.OffsetsMinutes)
	assert.Equal(t, "22:00", p.QuietHours.Start.String())
	assert.Equal(t, []reminders.Channel{reminders.ChannelPush}, p.Channels())

	mock.ExpectQuery(`FROM reminder_preferences`).
		WithArgs("u2").
		WillReturnRows(sqlmock.NewRows(cols))

	_, err = src.Get(context.Background(), "u2")
	assert.True(t, errors.Is(err, reminders.ErrPreferenceNotFound))

	mock.ExpectQuery(`FROM reminder_preferences`).
		WithArgs("u3").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("u3", true, false, true, "15,x", false, "22:00", "07:00", "UTC"))

	_, err = src.Get(context.Background(), "u3")
	assert.True(t, errors.Is(err, reminders.ErrInvalidOffset))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCareTeam(t *testing.T) {
	db, mock := newMock(t)
	team := NewCareTeam(db)

	mock.ExpectQuery(`SELECT user_id FROM care_team`).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("c1").AddRow("c2"))

	users, err := team.RecipientsFor(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "c1", "c2"}, users)
	assert.NoError(t, mock.ExpectationsWereMet())
}
