package doses

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Stats resume los resultados de una ventana.
// Total = Taken + Missed + Skipped; las pending no cuentan.
type Stats struct {
	Taken         int
	Missed        int
	Skipped       int
	Total         int
	Pending       int
	AdherenceRate float64
}

func (s *Stats) add(d Dose) {
	switch d.Status {
	case StatusTaken:
		s.Taken++
	case StatusMissed:
		s.Missed++
	case StatusSkipped:
		s.Skipped++
	case StatusPending:
		s.Pending++
	}
}

func (s *Stats) finish() {
	s.Total = s.Taken + s.Missed + s.Skipped
	if s.Total == 0 {
		s.AdherenceRate = 0
		return
	}
	s.AdherenceRate = math.Round(float64(s.Taken)/float64(s.Total)*100*100) / 100
}

// MedicationStats es la adherencia de un medicamento dentro de la ventana.
type MedicationStats struct {
	MedicationID string
	Stats
}

func checkWindow(start, end time.Time) error {
	if !start.Before(end) {
		return fmt.Errorf("%w: window start %s must be before end %s",
			ErrInvalidRange, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return nil
}

func inWindow(d Dose, start, end time.Time) bool {
	return !d.ScheduledTime.Before(start) && d.ScheduledTime.Before(end)
}

// ComputeAdherence agrega las dosis con scheduled_time en [start, end).
func ComputeAdherence(ds []Dose, start, end time.Time) (Stats, error) {
	if err := checkWindow(start, end); err != nil {
		return Stats{}, err
	}

	var s Stats
	for _, d := range ds {
		if inWindow(d, start, end) {
			s.add(d)
		}
	}
	s.finish()
	return s, nil
}

// ComputeAdherenceByMedication igual que ComputeAdherence pero por medicamento,
// ordenado por MedicationID.
func ComputeAdherenceByMedication(ds []Dose, start, end time.Time) ([]MedicationStats, error) {
	if err := checkWindow(start, end); err != nil {
		return nil, err
	}

	byMed := map[string]*Stats{}
	for _, d := range ds {
		if !inWindow(d, start, end) {
			continue
		}
		s, ok := byMed[d.MedicationID]
		if !ok {
			s = &Stats{}
			byMed[d.MedicationID] = s
		}
		s.add(d)
	}

	out := make([]MedicationStats, 0, len(byMed))
	for id, s := range byMed {
		s.finish()
		out = append(out, MedicationStats{MedicationID: id, Stats: *s})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MedicationID < out[j].MedicationID })
	return out, nil
}
