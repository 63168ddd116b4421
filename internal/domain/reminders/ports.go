package reminders

import (
	"context"
	"strings"
)

// PreferenceSource devuelve ErrPreferenceNotFound si el usuario no tiene preferencias.
type PreferenceSource interface {
	Get(ctx context.Context, userID string) (Preference, error)
}

// RecipientResolver dice qué usuarios reciben los recordatorios de un paciente
// (el paciente mismo, cuidadores).
type RecipientResolver interface {
	RecipientsFor(ctx context.Context, patientID string) ([]string, error)
}

// NotificationSink recibe intenciones. Fire-and-forget: no se espera la entrega.
type NotificationSink interface {
	Emit(ctx context.Context, in Intent) error
}

// PatientSelf es el resolver por defecto: el paciente recibe sus propios recordatorios.
type PatientSelf struct{}

func (PatientSelf) RecipientsFor(_ context.Context, patientID string) ([]string, error) {
	if strings.TrimSpace(patientID) == "" {
		return nil, nil
	}
	return []string{patientID}, nil
}
