package medications

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("medication not found")
)

// Source es el puerto de solo lectura hacia el registro de medicamentos.
type Source interface {
	ListActive(ctx context.Context, patientID string) ([]Medication, error)
	GetByID(ctx context.Context, id string) (Medication, error)
}
