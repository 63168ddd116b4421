package doses

import (
	"context"
	"time"
)

// Repository es el DoseStore. Los adapters (memory/postgres) lo implementan.
type Repository interface {
	// Create inserta las dosis ignorando las que ya existen para el mismo
	// (medication_id, scheduled_time). Devuelve solo las insertadas.
	Create(ctx context.Context, ds []Dose) ([]Dose, error)
	GetByID(ctx context.Context, id string) (Dose, error)
	List(ctx context.Context, filter ListFilter) ([]Dose, error)

	// Transition aplica el cambio solo si el estado actual es t.From.
	// Si no => ErrConflict. Si no existe => ErrNotFound.
	Transition(ctx context.Context, t Transition) (Dose, error)

	UpdateNotes(ctx context.Context, id, notes string, at time.Time) (Dose, error)

	// DeletePending borra solo si sigue pending (ErrConflict si no).
	DeletePending(ctx context.Context, id string) error
	DeletePendingByMedication(ctx context.Context, medicationID string, from time.Time) (int, error)
}

// ListFilter: From inclusivo, To exclusivo sobre scheduled_time.
// Orden de salida: scheduled_time asc.
type ListFilter struct {
	PatientID    string
	MedicationID string
	From         *time.Time
	To           *time.Time
	Statuses     []Status
	Limit        int
}

// Matches aplica el filtro en memoria (adapter memory y tests).
func (f ListFilter) Matches(d Dose) bool {
	if f.PatientID != "" && d.PatientID != f.PatientID {
		return false
	}
	if f.MedicationID != "" && d.MedicationID != f.MedicationID {
		return false
	}
	if f.From != nil && d.ScheduledTime.Before(*f.From) {
		return false
	}
	if f.To != nil && !d.ScheduledTime.Before(*f.To) {
		return false
	}
	if len(f.Statuses) > 0 {
		ok := false
		for _, s := range f.Statuses {
			if d.Status == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

type Transition struct {
	DoseID     string
	From       Status
	To         Status
	ActualTime *time.Time
	Notes      *string // nil => no tocar notas
	At         time.Time
}
