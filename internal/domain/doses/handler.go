package doses

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starstech/medtrack-sub001/internal/domain/medications"
	"github.com/starstech/medtrack-sub001/internal/middleware"
)

// HandlerOptions agrupa lo que necesitan las rutas además del Service.
type HandlerOptions struct {
	Medications medications.Source
	// HorizonDays es el rango por defecto de /schedule cuando no viene "to".
	HorizonDays int
	// Access nil => solo el propio paciente.
	Access Access
}

func RegisterRoutes(r chi.Router, svc *Service, opts HandlerOptions) {
	if opts.HorizonDays <= 0 {
		opts.HorizonDays = 7
	}
	if opts.Access == nil {
		opts.Access = CareTeamAccess{}
	}

	r.Route("/patients/{patientID}", func(pr chi.Router) {
		pr.Post("/medications/{medicationID}/schedule", scheduleMedicationHandler(svc, opts))
		pr.Delete("/medications/{medicationID}/doses", discontinueMedicationHandler(svc, opts))

		pr.Get("/doses", listDosesHandler(svc, opts))
		pr.Get("/doses/today", todayHandler(svc, opts))
		pr.Get("/adherence", adherenceHandler(svc, opts))
	})

	r.Route("/doses/{doseID}", func(dr chi.Router) {
		dr.Get("/", getDoseHandler(svc, opts))
		dr.Patch("/", updateDoseHandler(svc, opts))
		dr.Delete("/", deleteDoseHandler(svc, opts))

		dr.Post("/taken", markTakenHandler(svc, opts))
		dr.Post("/skipped", markSkippedHandler(svc, opts))
		dr.Post("/missed", markMissedHandler(svc, opts))
	})
}

// doseResponse representa una dosis programada.
type doseResponse struct {
	ID            string     `json:"id"`
	MedicationID  string     `json:"medication_id"`
	PatientID     string     `json:"patient_id"`
	ScheduledTime time.Time  `json:"scheduled_time"`
	Status        Status     `json:"status" enums:"pending,taken,missed,skipped"`
	ActualTime    *time.Time `json:"actual_time,omitempty"`
	Notes         string     `json:"notes"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type scheduleRequest struct {
	From string `json:"from"` // YYYY-MM-DD opcional, por defecto hoy
	To   string `json:"to"`   // YYYY-MM-DD opcional, por defecto from + horizon_days - 1
}

type scheduleResponse struct {
	Generated int            `json:"generated"`
	Created   int            `json:"created"`
	Skipped   int            `json:"skipped"`
	Doses     []doseResponse `json:"doses"`
}

type bucketsResponse struct {
	Now            time.Time      `json:"now"`
	HorizonMinutes int            `json:"horizon_minutes"`
	Overdue        []doseResponse `json:"overdue"`
	Upcoming       []doseResponse `json:"upcoming"`
	Later          []doseResponse `json:"later"`
	Completed      []doseResponse `json:"completed"`
}

type statsResponse struct {
	MedicationID  string  `json:"medication_id,omitempty"`
	Taken         int     `json:"taken"`
	Missed        int     `json:"missed"`
	Skipped       int     `json:"skipped"`
	Total         int     `json:"total"`
	Pending       int     `json:"pending"`
	AdherenceRate float64 `json:"adherence_rate"`
}

type markTakenRequest struct {
	ActualTime string `json:"actual_time"` // RFC3339
	Notes      string `json:"notes"`
}

type markSkippedRequest struct {
	Reason string `json:"reason"`
}

type updateDoseRequest struct {
	// Punteros para PATCH real: nil = no tocar.
	Notes      *string `json:"notes"`
	Status     *string `json:"status"`
	ActualTime *string `json:"actual_time"` // RFC3339
}

// scheduleMedicationHandler godoc
// @Summary Generar dosis de un medicamento
// @Description Expande la regla de frecuencia del medicamento en dosis pending para el rango [from, to] (fechas calendario). Es idempotente: las dosis que ya existen para (medicamento, horario) se omiten.
// @Tags doses
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param patientID path string true "ID del paciente"
// @Param medicationID path string true "ID del medicamento"
// @Param payload body scheduleRequest false "Rango de fechas YYYY-MM-DD"
// @Success 201 {object} scheduleResponse
// @Failure 400 {string} string "rango o regla de frecuencia inválida"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "medication not found"
// @Router /patients/{patientID}/medications/{medicationID}/schedule [post]
func scheduleMedicationHandler(svc *Service, opts HandlerOptions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !authorize(w, r, svc, opts.Access, chi.URLParam(r, "patientID")) {
			return
		}

		med, ok := loadMedication(w, r, opts.Medications)
		if !ok {
			return
		}

		var req scheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		loc := svc.gen.Location()
		from := svc.now().In(loc)
		if strings.TrimSpace(req.From) != "" {
			t, err := time.ParseInLocation(time.DateOnly, req.From, loc)
			if err != nil {
				http.Error(w, "from must be YYYY-MM-DD", http.StatusBadRequest)
				return
			}
			from = t
		}
		to := from.AddDate(0, 0, opts.HorizonDays-1)
		if strings.TrimSpace(req.To) != "" {
			t, err := time.ParseInLocation(time.DateOnly, req.To, loc)
			if err != nil {
				http.Error(w, "to must be YYYY-MM-DD", http.StatusBadRequest)
				return
			}
			to = t
		}

		res, err := svc.ScheduleMedication(r.Context(), med, from, to)
		if err != nil {
			writeError(w, svc, err)
			return
		}

		writeJSON(w, http.StatusCreated, scheduleResponse{
			Generated: res.Generated,
			Created:   res.Created,
			Skipped:   res.Skipped,
			Doses:     toDoseResponses(res.Doses),
		})
	}
}

// discontinueMedicationHandler godoc
// @Summary Discontinuar un medicamento
// @Description Borra las dosis pending del medicamento con scheduled_time >= from. Las dosis ya registradas (taken/missed/skipped) se conservan.
// @Tags doses
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param patientID path string true "ID del paciente"
// @Param medicationID path string true "ID del medicamento"
// @Param from query string false "Desde (RFC3339). Por defecto ahora"
// @Success 200 {object} map[string]int
// @Failure 400 {string} string "from inválido"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "medication not found"
// @Router /patients/{patientID}/medications/{medicationID}/doses [delete]
func discontinueMedicationHandler(svc *Service, opts HandlerOptions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !authorize(w, r, svc, opts.Access, chi.URLParam(r, "patientID")) {
			return
		}

		med, ok := loadMedication(w, r, opts.Medications)
		if !ok {
			return
		}

		from, err := parseTimeParam(r, "from")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var at time.Time
		if from != nil {
			at = *from
		}

		n, err := svc.DiscontinueMedication(r.Context(), med.ID, at)
		if err != nil {
			writeError(w, svc, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
	}
}

// listDosesHandler godoc
// @Summary Listar dosis de un paciente
// @Description Lista las dosis del paciente ordenadas por scheduled_time. from es inclusivo, to exclusivo.
// @Tags doses
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param patientID path string true "ID del paciente"
// @Param from query string false "Desde (RFC3339)"
// @Param to query string false "Hasta, exclusivo (RFC3339)"
// @Param status query string false "Lista CSV de estados (ej: pending,taken)"
// @Param medication_id query string false "Filtrar por medicamento"
// @Param limit query int false "Máximo de dosis (1-500). Por defecto 200"
// @Success 200 {array} doseResponse
// @Failure 400 {string} string "Parámetros de filtro inválidos"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 500 {string} string "internal error"
// @Router /patients/{patientID}/doses [get]
func listDosesHandler(svc *Service, opts HandlerOptions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !authorize(w, r, svc, opts.Access, chi.URLParam(r, "patientID")) {
			return
		}

		filter, err := parseListFilter(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		filter.PatientID = chi.URLParam(r, "patientID")

		items, err := svc.List(r.Context(), filter)
		if err != nil {
			writeError(w, svc, err)
			return
		}

		writeJSON(w, http.StatusOK, toDoseResponses(items))
	}
}

// todayHandler godoc
// @Summary Dosis de hoy por urgencia
// @Description Clasifica las dosis del día en overdue / upcoming / later / completed. Una dosis exactamente en "now" es upcoming.
// @Tags doses
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param patientID path string true "ID del paciente"
// @Param now query string false "Instante de referencia (RFC3339). Por defecto la hora del servidor"
// @Param horizon_minutes query int false "Ventana upcoming en minutos. Por defecto la configurada"
// @Success 200 {object} bucketsResponse
// @Failure 400 {string} string "Parámetros inválidos"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Router /patients/{patientID}/doses/today [get]
func todayHandler(svc *Service, opts HandlerOptions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !authorize(w, r, svc, opts.Access, chi.URLParam(r, "patientID")) {
			return
		}

		now := svc.now()
		nowParam, err := parseTimeParam(r, "now")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if nowParam != nil {
			now = *nowParam
		}

		horizon := svc.cfg.UpcomingHorizon
		if v := strings.TrimSpace(r.URL.Query().Get("horizon_minutes")); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				http.Error(w, "horizon_minutes must be a positive integer", http.StatusBadRequest)
				return
			}
			horizon = time.Duration(n) * time.Minute
		}

		b, err := svc.Today(r.Context(), chi.URLParam(r, "patientID"), now, horizon)
		if err != nil {
			writeError(w, svc, err)
			return
		}

		writeJSON(w, http.StatusOK, bucketsResponse{
			Now:            now,
			HorizonMinutes: int(horizon / time.Minute),
			Overdue:        toDoseResponses(b.Overdue),
			Upcoming:       toDoseResponses(b.Upcoming),
			Later:          toDoseResponses(b.Later),
			Completed:      toDoseResponses(b.Completed),
		})
	}
}

// adherenceHandler godoc
// @Summary Adherencia de un paciente
// @Description Cuenta taken / missed / skipped con scheduled_time en [from, to). adherence_rate = taken / total * 100 (2 decimales), 0 si total es 0. Con by=medication devuelve una fila por medicamento.
// @Tags doses
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param patientID path string true "ID del paciente"
// @Param from query string true "Inicio de la ventana (RFC3339)"
// @Param to query string true "Fin de la ventana, exclusivo (RFC3339)"
// @Param by query string false "medication para desglosar"
// @Success 200 {object} statsResponse
// @Failure 400 {string} string "rango inválido"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Router /patients/{patientID}/adherence [get]
func adherenceHandler(svc *Service, opts HandlerOptions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !authorize(w, r, svc, opts.Access, chi.URLParam(r, "patientID")) {
			return
		}

		from, err := parseTimeParam(r, "from")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		to, err := parseTimeParam(r, "to")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if from == nil || to == nil {
			http.Error(w, "from and to are required", http.StatusBadRequest)
			return
		}

		patientID := chi.URLParam(r, "patientID")

		if strings.EqualFold(r.URL.Query().Get("by"), "medication") {
			rows, err := svc.AdherenceByMedication(r.Context(), patientID, *from, *to)
			if err != nil {
				writeError(w, svc, err)
				return
			}
			out := make([]statsResponse, 0, len(rows))
			for _, row := range rows {
				resp := toStatsResponse(row.Stats)
				resp.MedicationID = row.MedicationID
				out = append(out, resp)
			}
			writeJSON(w, http.StatusOK, out)
			return
		}

		st, err := svc.Adherence(r.Context(), patientID, *from, *to)
		if err != nil {
			writeError(w, svc, err)
			return
		}
		writeJSON(w, http.StatusOK, toStatsResponse(st))
	}
}

// getDoseHandler godoc
// @Summary Obtener una dosis
// @Tags doses
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param doseID path string true "ID de la dosis"
// @Success 200 {object} doseResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "dose not found"
// @Router /doses/{doseID} [get]
func getDoseHandler(svc *Service, opts HandlerOptions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, ok := AuthorizeDose(w, r, svc, opts.Access)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, toDoseResponse(d))
	}
}

// markTakenHandler godoc
// @Summary Marcar dosis como tomada
// @Description Solo desde pending. actual_time es obligatorio y no puede estar en el futuro más allá de la tolerancia de reloj. Si otro actor ya registró la dosis responde 409.
// @Tags doses
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param doseID path string true "ID de la dosis"
// @Param payload body markTakenRequest true "actual_time RFC3339"
// @Success 200 {object} doseResponse
// @Failure 400 {string} string "invalid json / actual_time inválido"
// @Failure 404 {string} string "dose not found"
// @Failure 409 {string} string "dose already recorded by someone else"
// @Failure 422 {string} string "invalid dose transition"
// @Failure 403 {string} string "forbidden"
// @Router /doses/{doseID}/taken [post]
func markTakenHandler(svc *Service, opts HandlerOptions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := AuthorizeDose(w, r, svc, opts.Access); !ok {
			return
		}

		var req markTakenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		actual, err := time.Parse(time.RFC3339, req.ActualTime)
		if err != nil {
			http.Error(w, "actual_time must be RFC3339", http.StatusBadRequest)
			return
		}

		d, err := svc.MarkTaken(r.Context(), chi.URLParam(r, "doseID"), actual, req.Notes)
		if err != nil {
			writeError(w, svc, err)
			return
		}
		writeJSON(w, http.StatusOK, toDoseResponse(d))
	}
}

// markSkippedHandler godoc
// @Summary Marcar dosis como omitida
// @Description Solo desde pending. actual_time queda en la hora del servidor; reason se guarda en notes.
// @Tags doses
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param doseID path string true "ID de la dosis"
// @Param payload body markSkippedRequest false "Motivo (recomendado)"
// @Success 200 {object} doseResponse
// @Failure 404 {string} string "dose not found"
// @Failure 409 {string} string "dose already recorded by someone else"
// @Failure 422 {string} string "invalid dose transition"
// @Failure 403 {string} string "forbidden"
// @Router /doses/{doseID}/skipped [post]
func markSkippedHandler(svc *Service, opts HandlerOptions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := AuthorizeDose(w, r, svc, opts.Access); !ok {
			return
		}

		var req markSkippedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		d, err := svc.MarkSkipped(r.Context(), chi.URLParam(r, "doseID"), req.Reason)
		if err != nil {
			writeError(w, svc, err)
			return
		}
		writeJSON(w, http.StatusOK, toDoseResponse(d))
	}
}

// markMissedHandler godoc
// @Summary Marcar dosis como perdida
// @Description Solo desde pending. actual_time queda vacío.
// @Tags doses
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param doseID path string true "ID de la dosis"
// @Success 200 {object} doseResponse
// @Failure 404 {string} string "dose not found"
// @Failure 409 {string} string "dose already recorded by someone else"
// @Failure 422 {string} string "invalid dose transition"
// @Failure 403 {string} string "forbidden"
// @Router /doses/{doseID}/missed [post]
func markMissedHandler(svc *Service, opts HandlerOptions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := AuthorizeDose(w, r, svc, opts.Access); !ok {
			return
		}

		d, err := svc.MarkMissed(r.Context(), chi.URLParam(r, "doseID"))
		if err != nil {
			writeError(w, svc, err)
			return
		}
		writeJSON(w, http.StatusOK, toDoseResponse(d))
	}
}

// updateDoseHandler godoc
// @Summary Editar una dosis
// @Description Las notas se pueden corregir siempre. Cambiar status o actual_time de una dosis ya registrada responde 422.
// @Tags doses
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param doseID path string true "ID de la dosis"
// @Param payload body updateDoseRequest true "Campos a modificar"
// @Success 200 {object} doseResponse
// @Failure 400 {string} string "invalid json / campos inválidos"
// @Failure 404 {string} string "dose not found"
// @Failure 422 {string} string "dose status is immutable"
// @Failure 403 {string} string "forbidden"
// @Router /doses/{doseID} [patch]
func updateDoseHandler(svc *Service, opts HandlerOptions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := AuthorizeDose(w, r, svc, opts.Access); !ok {
			return
		}

		var req updateDoseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		in := DoseUpdate{Notes: req.Notes}
		if req.Status != nil {
			st, err := ParseStatus(*req.Status)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			in.Status = &st
		}
		if req.ActualTime != nil {
			t, err := time.Parse(time.RFC3339, *req.ActualTime)
			if err != nil {
				http.Error(w, "actual_time must be RFC3339", http.StatusBadRequest)
				return
			}
			in.ActualTime = &t
		}

		d, err := svc.Update(r.Context(), chi.URLParam(r, "doseID"), in)
		if err != nil {
			writeError(w, svc, err)
			return
		}
		writeJSON(w, http.StatusOK, toDoseResponse(d))
	}
}

// deleteDoseHandler godoc
// @Summary Borrar una dosis pending
// @Description Solo se pueden borrar dosis pending; las registradas son historia de adherencia.
// @Tags doses
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param doseID path string true "ID de la dosis"
// @Success 204
// @Failure 404 {string} string "dose not found"
// @Failure 422 {string} string "dose status is immutable"
// @Failure 403 {string} string "forbidden"
// @Router /doses/{doseID} [delete]
func deleteDoseHandler(svc *Service, opts HandlerOptions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := AuthorizeDose(w, r, svc, opts.Access); !ok {
			return
		}

		if err := svc.Delete(r.Context(), chi.URLParam(r, "doseID")); err != nil {
			writeError(w, svc, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// authorize exige usuario (401) con acceso al paciente (403).
func authorize(w http.ResponseWriter, r *http.Request, svc *Service, access Access, patientID string) bool {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok || !claims.Valid() {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return false
	}
	if access == nil {
		access = CareTeamAccess{}
	}

	allowed, err := access.CanAccess(r.Context(), claims.UserID, patientID)
	if err != nil {
		writeError(w, svc, err)
		return false
	}
	if !allowed {
		writeError(w, svc, ErrForbidden)
		return false
	}
	return true
}

// AuthorizeDose carga la dosis de la ruta y aplica authorize sobre su paciente.
// Sin usuario responde 401 antes de tocar el store.
func AuthorizeDose(w http.ResponseWriter, r *http.Request, svc *Service, access Access) (Dose, bool) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok || !claims.Valid() {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return Dose{}, false
	}

	d, err := svc.Get(r.Context(), chi.URLParam(r, "doseID"))
	if err != nil {
		writeError(w, svc, err)
		return Dose{}, false
	}
	if !authorize(w, r, svc, access, d.PatientID) {
		return Dose{}, false
	}
	return d, true
}

// loadMedication valida que el medicamento exista y sea del paciente de la ruta.
func loadMedication(w http.ResponseWriter, r *http.Request, src medications.Source) (medications.Medication, bool) {
	if src == nil {
		http.Error(w, "medication source not configured", http.StatusInternalServerError)
		return medications.Medication{}, false
	}

	med, err := src.GetByID(r.Context(), chi.URLParam(r, "medicationID"))
	if err != nil {
		if errors.Is(err, medications.ErrNotFound) {
			http.Error(w, "medication not found", http.StatusNotFound)
			return medications.Medication{}, false
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return medications.Medication{}, false
	}
	if med.PatientID != chi.URLParam(r, "patientID") {
		http.Error(w, "medication not found", http.StatusNotFound)
		return medications.Medication{}, false
	}
	return med, true
}

// StatusFor traduce errores del dominio a HTTP. Lo reutilizan otros módulos.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrConflict):
		return http.StatusConflict, "dose already recorded by someone else"
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "dose not found"
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrInvalidSchedule),
		errors.Is(err, ErrInvalidRange):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, ErrImmutableStatus),
		errors.Is(err, ErrInvalidTransition):
		return http.StatusUnprocessableEntity, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeError(w http.ResponseWriter, svc *Service, err error) {
	status, msg := StatusFor(err)
	if status == http.StatusInternalServerError {
		svc.log.Error("request failed", map[string]any{"error": err})
	}
	http.Error(w, msg, status)
}

func parseListFilter(r *http.Request) (ListFilter, error) {
	limit := 200
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	filter := ListFilter{
		Limit:        limit,
		MedicationID: strings.TrimSpace(r.URL.Query().Get("medication_id")),
	}

	// status=pending,taken
	if v := strings.TrimSpace(r.URL.Query().Get("status")); v != "" {
		for _, p := range strings.Split(v, ",") {
			if strings.TrimSpace(p) == "" {
				continue
			}
			st, err := ParseStatus(p)
			if err != nil {
				return ListFilter{}, err
			}
			filter.Statuses = append(filter.Statuses, st)
		}
	}

	from, err := parseTimeParam(r, "from")
	if err != nil {
		return ListFilter{}, err
	}
	to, err := parseTimeParam(r, "to")
	if err != nil {
		return ListFilter{}, err
	}
	filter.From, filter.To = from, to

	return filter, nil
}

func parseTimeParam(r *http.Request, name string) (*time.Time, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, errors.New(name + " must be RFC3339")
	}
	return &t, nil
}

func toDoseResponse(d Dose) doseResponse {
	return doseResponse{
		ID:            d.ID,
		MedicationID:  d.MedicationID,
		PatientID:     d.PatientID,
		ScheduledTime: d.ScheduledTime,
		Status:        d.Status,
		ActualTime:    d.ActualTime,
		Notes:         d.Notes,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

func toDoseResponses(ds []Dose) []doseResponse {
	out := make([]doseResponse, 0, len(ds))
	for _, d := range ds {
		out = append(out, toDoseResponse(d))
	}
	return out
}

func toStatsResponse(s Stats) statsResponse {
	return statsResponse{
		Taken:         s.Taken,
		Missed:        s.Missed,
		Skipped:       s.Skipped,
		Total:         s.Total,
		Pending:       s.Pending,
		AdherenceRate: s.AdherenceRate,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
