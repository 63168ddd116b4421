package reminders

import (
	"sort"
	"time"

	"github.com/starstech/medtrack-sub001/internal/domain/doses"
	"github.com/starstech/medtrack-sub001/internal/domain/medications"
)

// ComputeReminders devuelve las intenciones futuras (fireAt > now) de una dosis,
// ordenadas por fireAt. No tiene efectos: se puede llamar en cada tick.
//
// Los offsets se validan siempre, aun con los recordatorios apagados. Después:
// lista vacía si los recordatorios están apagados, no hay canal, la dosis no
// está pending o el medicamento está inactivo. Las que caen en quiet hours se
// devuelven marcadas, no se descartan.
func ComputeReminders(d doses.Dose, med medications.Medication, pref Preference, now time.Time) ([]Intent, error) {
	offsets, err := pref.Offsets()
	if err != nil {
		return nil, err
	}

	out := []Intent{}

	if !pref.MedicationRemindersEnabled || d.Status != doses.StatusPending {
		return out, nil
	}
	channels := pref.Channels()
	if len(channels) == 0 {
		return out, nil
	}
	if med.ID != "" && !med.Active {
		return out, nil
	}

	loc, err := pref.Location()
	if err != nil {
		return nil, err
	}

	for _, off := range offsets {
		fireAt := d.ScheduledTime.Add(-time.Duration(off) * time.Minute)
		if !fireAt.After(now) {
			continue
		}

		out = append(out, Intent{
			DoseID:                 d.ID,
			FireAt:                 fireAt,
			OffsetMinutes:          off,
			SuppressedByQuietHours: pref.QuietHours.Contains(fireAt.In(loc)),
			RecipientUserID:        pref.UserID,
			PatientID:              d.PatientID,
			MedicationID:           d.MedicationID,
			MedicationName:         med.Label(),
			ScheduledTime:          d.ScheduledTime,
			Channels:               channels,
		})
	}

	// offsets ascendentes => fireAt descendente
	sort.Slice(out, func(i, j int) bool { return out[i].FireAt.Before(out[j].FireAt) })
	return out, nil
}
