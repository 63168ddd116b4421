package reminders

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starstech/medtrack-sub001/internal/domain/doses"
	"github.com/starstech/medtrack-sub001/internal/domain/medications"
	"github.com/starstech/medtrack-sub001/internal/middleware"
)

// RegisterRoutes: access nil => solo el propio paciente.
func RegisterRoutes(r chi.Router, dosesSvc *doses.Service, meds medications.Source, prefs PreferenceSource, access doses.Access) {
	r.Get("/doses/{doseID}/reminders", previewHandler(dosesSvc, meds, prefs, access))
}

// intentResponse es un recordatorio calculado (no se envía).
type intentResponse struct {
	DoseID                 string    `json:"dose_id"`
	FireAt                 time.Time `json:"fire_at"`
	OffsetMinutes          int       `json:"offset_minutes"`
	SuppressedByQuietHours bool      `json:"suppressed_by_quiet_hours"`
	RecipientUserID        string    `json:"recipient_user_id"`
	MedicationName         string    `json:"medication_name"`
	Channels               []Channel `json:"channels"`
}

// previewHandler godoc
// @Summary Previsualizar recordatorios de una dosis
// @Description Calcula, con las preferencias del usuario autenticado, qué recordatorios dispararía la dosis después de "now". Los que caen en quiet hours se devuelven con suppressed_by_quiet_hours=true. No envía nada.
// @Tags reminders
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param doseID path string true "ID de la dosis"
// @Param now query string false "Instante de referencia (RFC3339). Por defecto la hora del servidor"
// @Success 200 {array} intentResponse
// @Failure 400 {string} string "offset o preferencia inválida"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "dose / preference not found"
// @Router /doses/{doseID}/reminders [get]
func previewHandler(dosesSvc *doses.Service, meds medications.Source, prefs PreferenceSource, access doses.Access) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, ok := doses.AuthorizeDose(w, r, dosesSvc, access)
		if !ok {
			return
		}
		claims, _ := middleware.GetClaims(r.Context())

		now := time.Now()
		if v := strings.TrimSpace(r.URL.Query().Get("now")); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				http.Error(w, "now must be RFC3339", http.StatusBadRequest)
				return
			}
			now = t
		}

		var (
			med medications.Medication
			err error
		)
		if meds != nil {
			med, err = meds.GetByID(r.Context(), d.MedicationID)
			if err != nil {
				if errors.Is(err, medications.ErrNotFound) {
					http.Error(w, "medication not found", http.StatusNotFound)
					return
				}
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
		}

		pref, err := prefs.Get(r.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, ErrPreferenceNotFound) {
				http.Error(w, "preference not found", http.StatusNotFound)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if pref.UserID == "" {
			pref.UserID = claims.UserID
		}

		intents, err := ComputeReminders(d, med, pref, now)
		if err != nil {
			if errors.Is(err, ErrInvalidOffset) || errors.Is(err, ErrInvalidPreference) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]intentResponse, 0, len(intents))
		for _, in := range intents {
			out = append(out, intentResponse{
				DoseID:                 in.DoseID,
				FireAt:                 in.FireAt,
				OffsetMinutes:          in.OffsetMinutes,
				SuppressedByQuietHours: in.SuppressedByQuietHours,
				RecipientUserID:        in.RecipientUserID,
				MedicationName:         in.MedicationName,
				Channels:               in.Channels,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
