package doses

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starstech/medtrack-sub001/internal/domain/medications"
)

// MaxGenerateDays acota un rango de generación.
const MaxGenerateDays = 400

// doseNamespace es el namespace UUIDv5 de los IDs de dosis.
var doseNamespace = uuid.MustParse("6f1c2a9e-3b47-4d2a-9c1e-5a8b7d3e2f10")

// DoseID es determinístico: el mismo (medicamento, horario) produce siempre el mismo ID.
func DoseID(medicationID string, scheduled time.Time) string {
	key := medicationID + "|" + scheduled.UTC().Format(time.RFC3339)
	return uuid.NewSHA1(doseNamespace, []byte(key)).String()
}

// TimeOfDay es una hora de reloj local ("08:00").
type TimeOfDay struct {
	Hour   int
	Minute int
}

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("%w: time of day %q must be HH:MM", ErrInvalidInput, s)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func MustTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Minutes desde medianoche.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

// On devuelve ese horario en el día calendario de date, en loc.
func (t TimeOfDay) On(date time.Time, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour, t.Minute, 0, 0, loc)
}

// DefaultSlots son los horarios por defecto por regla.
func DefaultSlots() map[medications.FrequencyRule][]TimeOfDay {
	return map[medications.FrequencyRule][]TimeOfDay{
		medications.FrequencyOnceDaily:       {MustTimeOfDay("08:00")},
		medications.FrequencyTwiceDaily:      {MustTimeOfDay("08:00"), MustTimeOfDay("20:00")},
		medications.FrequencyThreeTimesDaily: {MustTimeOfDay("08:00"), MustTimeOfDay("14:00"), MustTimeOfDay("20:00")},
		medications.FrequencyFourTimesDaily:  {MustTimeOfDay("08:00"), MustTimeOfDay("12:00"), MustTimeOfDay("16:00"), MustTimeOfDay("20:00")},
		medications.FrequencyWeekly:          {MustTimeOfDay("08:00")},
		medications.FrequencyMonthly:         {MustTimeOfDay("08:00")},
	}
}

type GeneratorOptions struct {
	// Location de los horarios de reloj. nil => UTC.
	Location *time.Location
	// Slots pisa los horarios por defecto de las reglas incluidas.
	Slots map[medications.FrequencyRule][]TimeOfDay
}

// Generator expande la regla de frecuencia de un medicamento en dosis concretas.
// Es puro: no persiste ni lee el reloj.
type Generator struct {
	loc   *time.Location
	slots map[medications.FrequencyRule][]TimeOfDay
}

func NewGenerator(opts GeneratorOptions) *Generator {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	slots := DefaultSlots()
	for rule, times := range opts.Slots {
		if len(times) > 0 {
			slots[rule] = normalizeSlots(times)
		}
	}

	return &Generator{loc: loc, slots: slots}
}

func (g *Generator) Location() *time.Location {
	return g.loc
}

// Generate devuelve las dosis pending de med para cada día calendario de
// [rangeStart, rangeEnd] intersectado con [StartDate, EndDate].
// Los extremos se toman como fechas (año/mes/día), sin convertir zona.
func (g *Generator) Generate(med medications.Medication, rangeStart, rangeEnd time.Time) ([]Dose, error) {
	if !med.Frequency.Valid() {
		return nil, fmt.Errorf("%w: unknown frequency %q", ErrInvalidSchedule, med.Frequency)
	}
	if !med.Frequency.Scheduled() {
		return nil, fmt.Errorf("%w: as_needed medications have no schedule", ErrInvalidSchedule)
	}
	if med.StartDate.IsZero() {
		return nil, fmt.Errorf("%w: start date required", ErrInvalidSchedule)
	}

	start := g.date(med.StartDate)
	var end *time.Time
	if med.EndDate != nil {
		e := g.date(*med.EndDate)
		if e.Before(start) {
			return nil, fmt.Errorf("%w: end date %s before start date %s",
				ErrInvalidSchedule, e.Format(time.DateOnly), start.Format(time.DateOnly))
		}
		end = &e
	}

	first, last := g.date(rangeStart), g.date(rangeEnd)
	if last.Before(first) {
		return nil, fmt.Errorf("%w: range end before range start", ErrInvalidRange)
	}
	if days := int(last.Sub(first).Hours()/24) + 1; days > MaxGenerateDays {
		return nil, fmt.Errorf("%w: range of %d days exceeds %d", ErrInvalidRange, days, MaxGenerateDays)
	}

	if first.Before(start) {
		first = start
	}
	if end != nil && end.Before(last) {
		last = *end
	}

	slots, err := g.slotsFor(med)
	if err != nil {
		return nil, err
	}

	out := make([]Dose, 0)
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		if !occursOn(med.Frequency, start, day) {
			continue
		}
		for _, slot := range slots {
			at := slot.On(day, g.loc).UTC()
			out = append(out, Dose{
				ID:            DoseID(med.ID, at),
				MedicationID:  med.ID,
				PatientID:     med.PatientID,
				ScheduledTime: at,
				Status:        StatusPending,
			})
		}
	}
	return out, nil
}

func (g *Generator) slotsFor(med medications.Medication) ([]TimeOfDay, error) {
	if len(med.Times) == 0 {
		slots := g.slots[med.Frequency]
		if len(slots) == 0 {
			return nil, fmt.Errorf("%w: no slot times configured for %s", ErrInvalidSchedule, med.Frequency)
		}
		return slots, nil
	}

	parsed := make([]TimeOfDay, 0, len(med.Times))
	for _, raw := range med.Times {
		t, err := ParseTimeOfDay(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: medication %s: %v", ErrInvalidSchedule, med.ID, err)
		}
		parsed = append(parsed, t)
	}
	return normalizeSlots(parsed), nil
}

// date trunca a día calendario en la location del generador.
func (g *Generator) date(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, g.loc)
}

func occursOn(rule medications.FrequencyRule, start, day time.Time) bool {
	switch rule {
	case medications.FrequencyWeekly:
		return day.Weekday() == start.Weekday()
	case medications.FrequencyMonthly:
		// día 31 en meses cortos => último día del mes
		want := start.Day()
		if last := daysIn(day.Year(), day.Month()); want > last {
			want = last
		}
		return day.Day() == want
	default:
		return true
	}
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func normalizeSlots(in []TimeOfDay) []TimeOfDay {
	seen := map[int]struct{}{}
	out := make([]TimeOfDay, 0, len(in))
	for _, t := range in {
		if _, ok := seen[t.Minutes()]; ok {
			continue
		}
		seen[t.Minutes()] = struct{}{}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Minutes() < out[j].Minutes() })
	return out
}

// DedupeDoses devuelve las dosis de generated que no están en existing
// (por Key), sin duplicados internos.
func DedupeDoses(existing, generated []Dose) []Dose {
	seen := make(map[Key]struct{}, len(existing)+len(generated))
	for _, d := range existing {
		seen[d.Key()] = struct{}{}
	}

	out := make([]Dose, 0, len(generated))
	for _, d := range generated {
		k := d.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, d)
	}
	return out
}
