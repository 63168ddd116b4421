package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/starstech/medtrack-sub001/internal/domain/doses"
)

type doseRepo struct {
	mu    sync.RWMutex
	byID  map[string]doses.Dose
	byKey map[doses.Key]string
}

// NewDoseRepo es el DoseStore en memoria. Transition es un compare-and-swap bajo el mutex.
func NewDoseRepo() doses.Repository {
	return &doseRepo{
		byID:  make(map[string]doses.Dose),
		byKey: make(map[doses.Key]string),
	}
}

func (r *doseRepo) Create(ctx context.Context, ds []doses.Dose) ([]doses.Dose, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]doses.Dose, 0, len(ds))
	for _, d := range ds {
		if strings.TrimSpace(d.ID) == "" {
			return out, errors.New("dose id required")
		}
		if _, exists := r.byKey[d.Key()]; exists {
			continue
		}
		if _, exists := r.byID[d.ID]; exists {
			continue
		}

		d.ScheduledTime = d.ScheduledTime.UTC()
		r.byID[d.ID] = d
		r.byKey[d.Key()] = d.ID
		out = append(out, d)
	}
	return out, nil
}

func (r *doseRepo) GetByID(ctx context.Context, id string) (doses.Dose, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.byID[id]
	if !ok {
		return doses.Dose{}, doses.ErrNotFound
	}
	return d, nil
}

func (r *doseRepo) List(ctx context.Context, filter doses.ListFilter) ([]doses.Dose, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]doses.Dose, 0)
	for _, d := range r.byID {
		if filter.Matches(d) {
			out = append(out, d)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].ScheduledTime.Equal(out[j].ScheduledTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].ScheduledTime.Before(out[j].ScheduledTime)
	})

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *doseRepo) Transition(ctx context.Context, t doses.Transition) (doses.Dose, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.byID[t.DoseID]
	if !ok {
		return doses.Dose{}, doses.ErrNotFound
	}
	if d.Status != t.From {
		return doses.Dose{}, doses.ErrConflict
	}

	d.Status = t.To
	d.ActualTime = nil
	if t.ActualTime != nil {
		at := t.ActualTime.UTC()
		d.ActualTime = &at
	}
	if t.Notes != nil {
		d.Notes = *t.Notes
	}
	d.UpdatedAt = t.At

	r.byID[d.ID] = d
	return d, nil
}

func (r *doseRepo) UpdateNotes(ctx context.Context, id, notes string, at time.Time) (doses.Dose, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.byID[id]
	if !ok {
		return doses.Dose{}, doses.ErrNotFound
	}
	d.Notes = notes
	d.UpdatedAt = at
	r.byID[id] = d
	return d, nil
}

func (r *doseRepo) DeletePending(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.byID[id]
	if !ok {
		return doses.ErrNotFound
	}
	if d.Status != doses.StatusPending {
		return doses.ErrConflict
	}
	r.remove(d)
	return nil
}

func (r *doseRepo) DeletePendingByMedication(ctx context.Context, medicationID string, from time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, d := range r.byID {
		if d.MedicationID != medicationID || d.Status != doses.StatusPending {
			continue
		}
		if d.ScheduledTime.Before(from) {
			continue
		}
		r.remove(d)
		n++
	}
	return n, nil
}

// remove asume el lock tomado.
func (r *doseRepo) remove(d doses.Dose) {
	delete(r.byID, d.ID)
	delete(r.byKey, d.Key())
}
