package doses

import (
	"fmt"
	"strings"
	"time"
)

// Status es el estado de una dosis. pending es el único estado no terminal.
// @Enum pending, taken, missed, skipped
type Status string

const (
	StatusPending Status = "pending"
	StatusTaken   Status = "taken"
	StatusMissed  Status = "missed"
	StatusSkipped Status = "skipped"
)

// ParseStatus valida strings externos (query params, filas de DB).
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusPending, StatusTaken, StatusMissed, StatusSkipped:
		return st, nil
	default:
		return "", fmt.Errorf("%w: unknown dose status %q", ErrInvalidInput, s)
	}
}

func (s Status) Terminal() bool {
	switch s {
	case StatusTaken, StatusMissed, StatusSkipped:
		return true
	default:
		return false
	}
}

// CanTransition: solo pending -> {taken, missed, skipped}.
func CanTransition(from, to Status) bool {
	if from != StatusPending {
		return false
	}
	switch to {
	case StatusTaken, StatusMissed, StatusSkipped:
		return true
	default:
		return false
	}
}

// Dose es una administración programada de un medicamento.
// ScheduledTime es inmutable; solo Status, ActualTime y Notes cambian.
// ActualTime es nil si y solo si Status es pending o missed.
type Dose struct {
	ID           string
	MedicationID string
	PatientID    string

	ScheduledTime time.Time

	Status     Status
	ActualTime *time.Time
	Notes      string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Key identifica una dosis por (medicamento, horario). Es la clave de deduplicación.
type Key struct {
	MedicationID  string
	ScheduledTime int64 // unix nanos en UTC
}

func (d Dose) Key() Key {
	return Key{MedicationID: d.MedicationID, ScheduledTime: d.ScheduledTime.UTC().UnixNano()}
}
