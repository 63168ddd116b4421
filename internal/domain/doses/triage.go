package doses

import (
	"sort"
	"time"
)

// DefaultUpcomingHorizon es la ventana "upcoming" cuando no se configura otra.
const DefaultUpcomingHorizon = 120 * time.Minute

// @Enum overdue, upcoming, later, completed
type Bucket string

const (
	BucketOverdue   Bucket = "overdue"
	BucketUpcoming  Bucket = "upcoming"
	BucketLater     Bucket = "later"
	BucketCompleted Bucket = "completed"
)

// Buckets es una partición del input: cada dosis aparece exactamente una vez.
type Buckets struct {
	Overdue   []Dose
	Upcoming  []Dose
	Later     []Dose
	Completed []Dose
}

func (b Buckets) Len() int {
	return len(b.Overdue) + len(b.Upcoming) + len(b.Later) + len(b.Completed)
}

// BucketFor clasifica una dosis. diff == 0 es upcoming.
func BucketFor(d Dose, now time.Time, horizon time.Duration) Bucket {
	if d.Status.Terminal() {
		return BucketCompleted
	}
	if horizon <= 0 {
		horizon = DefaultUpcomingHorizon
	}

	diff := d.ScheduledTime.Sub(now)
	switch {
	case diff < 0:
		return BucketOverdue
	case diff <= horizon:
		return BucketUpcoming
	default:
		return BucketLater
	}
}

// Classify es puro: no guarda estado y "now" lo pasa el caller.
// Dentro de cada bucket el orden es scheduled_time asc (estable).
func Classify(ds []Dose, now time.Time, horizon time.Duration) Buckets {
	sorted := make([]Dose, len(ds))
	copy(sorted, ds)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ScheduledTime.Before(sorted[j].ScheduledTime)
	})

	out := Buckets{
		Overdue:   []Dose{},
		Upcoming:  []Dose{},
		Later:     []Dose{},
		Completed: []Dose{},
	}
	for _, d := range sorted {
		switch BucketFor(d, now, horizon) {
		case BucketOverdue:
			out.Overdue = append(out.Overdue, d)
		case BucketUpcoming:
			out.Upcoming = append(out.Upcoming, d)
		case BucketLater:
			out.Later = append(out.Later, d)
		case BucketCompleted:
			out.Completed = append(out.Completed, d)
		}
	}
	return out
}
