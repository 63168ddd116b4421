package reminders

import (
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starstech/medtrack-sub001/internal/domain/doses"
	"github.com/starstech/medtrack-sub001/internal/domain/medications"
)

var doseTime = time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC)

func pendingDose() doses.Dose {
	return doses.Dose{
		ID:            "dose-1",
		MedicationID:  "med-1",
		PatientID:     "patient-1",
		ScheduledTime: doseTime,
		Status:        doses.StatusPending,
	}
}

func activeMed() medications.Medication {
	return medications.Medication{
		ID:           "med-1",
		PatientID:    "patient-1",
		Name:         "Metformin",
		DosageAmount: 500,
		DosageUnit:   "mg",
		Frequency:    medications.FrequencyTwiceDaily,
		Active:       true,
	}
}

func basePref() Preference {
	return Preference{
		UserID:                     "patient-1",
		PushEnabled:                true,
		MedicationRemindersEnabled: true,
		OffsetsMinutes:             []int{60, 15},
	}
}

func TestComputeReminders_Monotonicity(t *testing.T) {
	pref := basePref()

	// now < T-60: dos intenciones
	out, err := ComputeReminders(pendingDose(), activeMed(), pref, doseTime.Add(-90*time.Minute))
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, doseTime.Add(-60*time.Minute), out[0].FireAt)
	assert.Equal(t, 60, out[0].OffsetMinutes)
	assert.Equal(t, doseTime.Add(-15*time.Minute), out[1].FireAt)
	assert.Equal(t, 15, out[1].OffsetMinutes)

	// T-60 <= now < T-15: solo T-15
	out, err = ComputeReminders(pendingDose(), activeMed(), pref, doseTime.Add(-60*time.Minute))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, doseTime.Add(-15*time.Minute), out[0].FireAt)

	// now >= T-15: nada
	out, err = ComputeReminders(pendingDose(), activeMed(), pref, doseTime.Add(-15*time.Minute))
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestComputeReminders_CarriesDoseContext(t *testing.T) {
	pref := basePref()
	pref.EmailEnabled = true

	out, err := ComputeReminders(pendingDose(), activeMed(), pref, doseTime.Add(-2*time.Hour))
	require.NoError(t, err)
	require.NotEmpty(t, out)

	in := out[0]
	assert.Equal(t, "dose-1", in.DoseID)
	assert.Equal(t, "patient-1", in.RecipientUserID)
	assert.Equal(t, "patient-1", in.PatientID)
	assert.Equal(t, "med-1", in.MedicationID)
	assert.Equal(t, "Metformin 500 mg", in.MedicationName)
	assert.Equal(t, doseTime, in.ScheduledTime)
	assert.Equal(t, []Channel{ChannelPush, ChannelEmail}, in.Channels)
}

func TestComputeReminders_QuietHoursMarksNotDrops(t *testing.T) {
	pref := basePref()
	pref.OffsetsMinutes = []int{60}
	pref.QuietHours = QuietHours{
		Enabled: true,
		Start:   doses.MustTimeOfDay("22:00"),
		End:     doses.MustTimeOfDay("07:00"),
	}

	d := pendingDose()
	d.ScheduledTime = time.Date(2024, 6, 4, 0, 0, 0, 0, time.UTC) // fireAt 23:00

	out, err := ComputeReminders(d, activeMed(), pref, time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 23, out[0].FireAt.Hour())
	assert.True(t, out[0].SuppressedByQuietHours)

	// misma regla, fireAt 07:00 => fuera de la ventana (fin exclusivo)
	out, err = ComputeReminders(pendingDose(), activeMed(), pref, doseTime.Add(-3*time.Hour))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.False(t, out[0].SuppressedByQuietHours)
}

func TestComputeReminders_QuietHoursUseUserTimezone(t *testing.T) {
	pref := basePref()
	pref.OffsetsMinutes = []int{30}
	pref.Timezone = "Etc/GMT+5" // UTC-5
	pref.QuietHours = QuietHours{
		Enabled: true,
		Start:   doses.MustTimeOfDay("22:00"),
		End:     doses.MustTimeOfDay("07:00"),
	}

	// 08:00Z - 30m = 07:30Z = 02:30 local
	out, err := ComputeReminders(pendingDose(), activeMed(), pref, doseTime.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.True(t, out[0].SuppressedByQuietHours)

	pref.Timezone = "Not/AZone"
	_, err = ComputeReminders(pendingDose(), activeMed(), pref, doseTime.Add(-time.Hour))
	assert.True(t, errors.Is(err, ErrInvalidPreference))
}

func TestComputeReminders_NoopCases(t *testing.T) {
	now := doseTime.Add(-2 * time.Hour)

	disabled := basePref()
	disabled.MedicationRemindersEnabled = false

	noChannel := basePref()
	noChannel.PushEnabled = false
	noChannel.EmailEnabled = false

	taken := pendingDose()
	taken.Status = doses.StatusTaken

	inactive := activeMed()
	inactive.Active = false

	cases := map[string]struct {
		d    doses.Dose
		med  medications.Medication
		pref Preference
	}{
		"reminders disabled": {pendingDose(), activeMed(), disabled},
		"no channel":         {pendingDose(), activeMed(), noChannel},
		"dose not pending":   {taken, activeMed(), basePref()},
		"inactive med":       {pendingDose(), inactive, basePref()},
	}
	for name, c := range cases {
		out, err := ComputeReminders(c.d, c.med, c.pref, now)
		require.NoError(t, err, name)
		assert.Empty(t, out, name)
		assert.NotNil(t, out, name)
	}
}

func TestComputeReminders_InvalidOffset(t *testing.T) {
	for _, offsets := range [][]int{{0}, {15, -5}} {
		pref := basePref()
		pref.OffsetsMinutes = offsets

		_, err := ComputeReminders(pendingDose(), activeMed(), pref, doseTime.Add(-2*time.Hour))
		assert.True(t, errors.Is(err, ErrInvalidOffset), "%v", offsets)
	}
}

func TestComputeReminders_InvalidOffsetReportedWhileDisabled(t *testing.T) {
	pref := basePref()
	pref.MedicationRemindersEnabled = false
	pref.OffsetsMinutes = []int{-10}

	taken := pendingDose()
	taken.Status = doses.StatusTaken

	_, err := ComputeReminders(taken, activeMed(), pref, doseTime.Add(-2*time.Hour))
	assert.True(t, errors.Is(err, ErrInvalidOffset))
}

func TestComputeReminders_DeterministicAndDeduped(t *testing.T) {
	pref := basePref()
	pref.OffsetsMinutes = []int{15, 60, 15, 30}
	now := doseTime.Add(-3 * time.Hour)

	a, err := ComputeReminders(pendingDose(), activeMed(), pref, now)
	require.NoError(t, err)
	b, err := ComputeReminders(pendingDose(), activeMed(), pref, now)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	require.Len(t, a, 3)
	for i := 1; i < len(a); i++ {
		assert.True(t, a[i-1].FireAt.Before(a[i].FireAt))
	}
}

func TestQuietHours_Contains(t *testing.T) {
	at := func(h, m int) time.Time { return time.Date(2024, 6, 3, h, m, 0, 0, time.UTC) }

	wrap := QuietHours{Enabled: true, Start: doses.MustTimeOfDay("22:00"), End: doses.MustTimeOfDay("07:00")}
	assert.True(t, wrap.Contains(at(22, 0)))
	assert.True(t, wrap.Contains(at(23, 0)))
	assert.True(t, wrap.Contains(at(3, 0)))
	assert.False(t, wrap.Contains(at(7, 0)))
	assert.False(t, wrap.Contains(at(12, 0)))

	day := QuietHours{Enabled: true, Start: doses.MustTimeOfDay("13:00"), End: doses.MustTimeOfDay("15:00")}
	assert.True(t, day.Contains(at(13, 0)))
	assert.True(t, day.Contains(at(14, 59)))
	assert.False(t, day.Contains(at(15, 0)))
	assert.False(t, day.Contains(at(12, 59)))

	empty := QuietHours{Enabled: true, Start: doses.MustTimeOfDay("08:00"), End: doses.MustTimeOfDay("08:00")}
	assert.False(t, empty.Contains(at(8, 0)))

	off := wrap
	off.Enabled = false
	assert.False(t, off.Contains(at(23, 0)))
}
