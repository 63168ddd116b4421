package doses

import (
	"context"
	"strings"
)

// Access decide si userID puede ver y registrar las dosis de patientID.
type Access interface {
	CanAccess(ctx context.Context, userID, patientID string) (bool, error)
}

// CareTeam lista los usuarios asociados a un paciente (el paciente y sus cuidadores).
type CareTeam interface {
	RecipientsFor(ctx context.Context, patientID string) ([]string, error)
}

// CareTeamAccess: el paciente siempre accede a lo suyo; cualquier otro usuario
// solo si figura en el care team. Team nil => solo el paciente.
type CareTeamAccess struct {
	Team CareTeam
}

func (a CareTeamAccess) CanAccess(ctx context.Context, userID, patientID string) (bool, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" || strings.TrimSpace(patientID) == "" {
		return false, nil
	}
	if userID == patientID {
		return true, nil
	}
	if a.Team == nil {
		return false, nil
	}

	members, err := a.Team.RecipientsFor(ctx, patientID)
	if err != nil {
		return false, err
	}
	for _, m := range members {
		if m == userID {
			return true, nil
		}
	}
	return false, nil
}
