package router_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	mem "github.com/starstech/medtrack-sub001/internal/adapters/storage/memory"
	"github.com/starstech/medtrack-sub001/internal/domain/doses"
	"github.com/starstech/medtrack-sub001/internal/domain/medications"
	"github.com/starstech/medtrack-sub001/internal/domain/reminders"
	"github.com/starstech/medtrack-sub001/internal/platform/metrics"
	"github.com/starstech/medtrack-sub001/internal/router"
)

type doseJSON struct {
	ID            string     `json:"id"`
	ScheduledTime time.Time  `json:"scheduled_time"`
	Status        string     `json:"status"`
	ActualTime    *time.Time `json:"actual_time"`
	Notes         string     `json:"notes"`
}

type scheduleJSON struct {
	Generated int        `json:"generated"`
	Created   int        `json:"created"`
	Skipped   int        `json:"skipped"`
	Doses     []doseJSON `json:"doses"`
}

type bucketsJSON struct {
	Overdue   []doseJSON `json:"overdue"`
	Upcoming  []doseJSON `json:"upcoming"`
	Later     []doseJSON `json:"later"`
	Completed []doseJSON `json:"completed"`
}

type statsJSON struct {
	MedicationID  string  `json:"medication_id"`
	Taken         int     `json:"taken"`
	Missed        int     `json:"missed"`
	Skipped       int     `json:"skipped"`
	Total         int     `json:"total"`
	AdherenceRate float64 `json:"adherence_rate"`
}

type intentJSON struct {
	FireAt                 time.Time `json:"fire_at"`
	OffsetMinutes          int       `json:"offset_minutes"`
	SuppressedByQuietHours bool      `json:"suppressed_by_quiet_hours"`
	MedicationName         string    `json:"medication_name"`
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	meds := mem.NewMedicationSource(medications.Medication{
		ID:           "med-1",
		PatientID:    "patient-1",
		Name:         "Metformin",
		DosageAmount: 500,
		DosageUnit:   "mg",
		Frequency:    medications.FrequencyTwiceDaily,
		StartDate:    time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Active:       true,
	})
	prefs := mem.NewPreferenceSource(reminders.Preference{
		UserID:                     "patient-1",
		PushEnabled:                true,
		MedicationRemindersEnabled: true,
		OffsetsMinutes:             []int{60, 15},
		QuietHours: reminders.QuietHours{
			Enabled: true,
			Start:   doses.MustTimeOfDay("22:00"),
			End:     doses.MustTimeOfDay("07:30"),
		},
	})

	team := mem.NewCareTeam()
	team.AddCaregiver("patient-1", "caregiver-9")

	ts := httptest.NewServer(router.NewRouter(router.Options{
		Medications: meds,
		Preferences: prefs,
		CareTeam:    team,
		Metrics:     metrics.New(),
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestHTTP_EndToEnd_DoseLifecycle(t *testing.T) {
	ts := newServer(t)
	user := "patient-1"

	// 1) Sin usuario no se agenda
	{
		st, _ := doReq(t, ts.URL, "POST", "/patients/patient-1/medications/med-1/schedule", "", nil)
		if st != http.StatusUnauthorized {
			t.Fatalf("expected 401 without user, got %d", st)
		}
	}

	// 2) Generar el 3/6: 08:00 y 20:00
	sched := schedule(t, ts.URL, user, "2024-06-03", "2024-06-03")
	if sched.Created != 2 || len(sched.Doses) != 2 {
		t.Fatalf("expected 2 created doses, got %+v", sched)
	}
	morning, evening := sched.Doses[0], sched.Doses[1]
	if morning.ScheduledTime.Hour() != 8 || evening.ScheduledTime.Hour() != 20 {
		t.Fatalf("unexpected slots: %v / %v", morning.ScheduledTime, evening.ScheduledTime)
	}

	// 3) Repetir es idempotente
	{
		again := schedule(t, ts.URL, user, "2024-06-03", "2024-06-03")
		if again.Created != 0 || again.Skipped != 2 {
			t.Fatalf("expected 0 created / 2 skipped, got %+v", again)
		}
	}

	// 4) Triage a las 08:05
	{
		var b bucketsJSON
		st, body := doReq(t, ts.URL, "GET", "/patients/patient-1/doses/today?now=2024-06-03T08:05:00Z&horizon_minutes=120", user, nil)
		mustStatus(t, st, http.StatusOK, body)
		mustDecode(t, body, &b)
		if len(b.Overdue) != 1 || b.Overdue[0].ID != morning.ID || len(b.Later) != 1 || len(b.Upcoming) != 0 {
			t.Fatalf("unexpected buckets: %s", string(body))
		}
	}

	// 5) Tomada
	{
		var d doseJSON
		st, body := doReq(t, ts.URL, "POST", "/doses/"+morning.ID+"/taken", user, map[string]any{
			"actual_time": "2024-06-03T08:03:00Z",
			"notes":       "with breakfast",
		})
		mustStatus(t, st, http.StatusOK, body)
		mustDecode(t, body, &d)
		if d.Status != "taken" || d.ActualTime == nil {
			t.Fatalf("expected taken with actual_time, got %s", string(body))
		}
	}

	// 6) Una dosis registrada no vuelve a cambiar de estado
	{
		st, body := doReq(t, ts.URL, "POST", "/doses/"+morning.ID+"/skipped", user, map[string]any{"reason": "late"})
		mustStatus(t, st, http.StatusUnprocessableEntity, body)

		st, body = doReq(t, ts.URL, "PATCH", "/doses/"+morning.ID, user, map[string]any{"status": "missed"})
		mustStatus(t, st, http.StatusUnprocessableEntity, body)

		st, body = doReq(t, ts.URL, "DELETE", "/doses/"+morning.ID, user, nil)
		mustStatus(t, st, http.StatusUnprocessableEntity, body)
	}

	// 7) Las notas sí se pueden corregir
	{
		var d doseJSON
		st, body := doReq(t, ts.URL, "PATCH", "/doses/"+morning.ID, user, map[string]any{"notes": "after breakfast"})
		mustStatus(t, st, http.StatusOK, body)
		mustDecode(t, body, &d)
		if d.Notes != "after breakfast" || d.Status != "taken" {
			t.Fatalf("unexpected dose after notes edit: %s", string(body))
		}
	}

	// 8) Perdida
	{
		st, body := doReq(t, ts.URL, "POST", "/doses/"+evening.ID+"/missed", user, nil)
		mustStatus(t, st, http.StatusOK, body)
	}

	// 9) Adherencia del día: 1 de 2
	{
		var s statsJSON
		st, body := doReq(t, ts.URL, "GET", "/patients/patient-1/adherence?from=2024-06-03T00:00:00Z&to=2024-06-04T00:00:00Z", user, nil)
		mustStatus(t, st, http.StatusOK, body)
		mustDecode(t, body, &s)
		if s.Taken != 1 || s.Missed != 1 || s.Total != 2 || s.AdherenceRate != 50 {
			t.Fatalf("unexpected adherence: %s", string(body))
		}

		var rows []statsJSON
		st, body = doReq(t, ts.URL, "GET", "/patients/patient-1/adherence?from=2024-06-03T00:00:00Z&to=2024-06-04T00:00:00Z&by=medication", user, nil)
		mustStatus(t, st, http.StatusOK, body)
		mustDecode(t, body, &rows)
		if len(rows) != 1 || rows[0].MedicationID != "med-1" {
			t.Fatalf("unexpected per-medication adherence: %s", string(body))
		}

		st, body = doReq(t, ts.URL, "GET", "/patients/patient-1/adherence?from=2024-06-04T00:00:00Z&to=2024-06-03T00:00:00Z", user, nil)
		mustStatus(t, st, http.StatusBadRequest, body)
	}
}

func TestHTTP_ReminderPreview(t *testing.T) {
	ts := newServer(t)
	user := "patient-1"

	sched := schedule(t, ts.URL, user, "2024-06-04", "2024-06-04")
	morning := sched.Doses[0]

	var intents []intentJSON
	st, body := doReq(t, ts.URL, "GET", "/doses/"+morning.ID+"/reminders?now=2024-06-04T00:00:00Z", user, nil)
	mustStatus(t, st, http.StatusOK, body)
	mustDecode(t, body, &intents)

	// 07:00 cae en quiet hours (22:00-07:30), 07:45 no
	if len(intents) != 2 {
		t.Fatalf("expected 2 intents, got %s", string(body))
	}
	if intents[0].OffsetMinutes != 60 || !intents[0].SuppressedByQuietHours {
		t.Fatalf("expected 60' suppressed first, got %+v", intents[0])
	}
	if intents[1].OffsetMinutes != 15 || intents[1].SuppressedByQuietHours {
		t.Fatalf("expected 15' not suppressed second, got %+v", intents[1])
	}
	if intents[1].MedicationName != "Metformin 500 mg" {
		t.Fatalf("unexpected medication name %q", intents[1].MedicationName)
	}

	// cuidador sin preferencias => 404
	st, body = doReq(t, ts.URL, "GET", "/doses/"+morning.ID+"/reminders", "caregiver-9", nil)
	mustStatus(t, st, http.StatusNotFound, body)
}

func TestHTTP_DiscontinueAndDelete(t *testing.T) {
	ts := newServer(t)
	user := "patient-1"

	sched := schedule(t, ts.URL, user, "2024-06-03", "2024-06-05")
	if sched.Created != 6 {
		t.Fatalf("expected 6 doses, got %d", sched.Created)
	}

	st, body := doReq(t, ts.URL, "DELETE", "/doses/"+sched.Doses[0].ID, user, nil)
	mustStatus(t, st, http.StatusNoContent, body)

	st, body = doReq(t, ts.URL, "GET", "/doses/"+sched.Doses[0].ID, user, nil)
	mustStatus(t, st, http.StatusNotFound, body)

	var res map[string]int
	st, body = doReq(t, ts.URL, "DELETE", "/patients/patient-1/medications/med-1/doses?from=2024-06-04T00:00:00Z", user, nil)
	mustStatus(t, st, http.StatusOK, body)
	mustDecode(t, body, &res)
	if res["deleted"] != 4 {
		t.Fatalf("expected 4 deleted, got %s", string(body))
	}

	var left []doseJSON
	st, body = doReq(t, ts.URL, "GET", "/patients/patient-1/doses", user, nil)
	mustStatus(t, st, http.StatusOK, body)
	mustDecode(t, body, &left)
	if len(left) != 1 {
		t.Fatalf("expected 1 dose left, got %d", len(left))
	}

	// medicamento de otro paciente
	st, body = doReq(t, ts.URL, "POST", "/patients/patient-2/medications/med-1/schedule", "patient-2", nil)
	mustStatus(t, st, http.StatusNotFound, body)
}

func TestHTTP_CareTeamAccess(t *testing.T) {
	ts := newServer(t)
	stranger := "stranger-99"

	sched := schedule(t, ts.URL, "patient-1", "2024-06-03", "2024-06-03")
	morning, evening := sched.Doses[0], sched.Doses[1]

	// Fuera del care team: 403 en rutas de paciente y de dosis
	forbidden := []struct{ method, path string }{
		{"POST", "/patients/patient-1/medications/med-1/schedule"},
		{"DELETE", "/patients/patient-1/medications/med-1/doses"},
		{"GET", "/patients/patient-1/doses"},
		{"GET", "/patients/patient-1/doses/today"},
		{"GET", "/patients/patient-1/adherence?from=2024-06-03T00:00:00Z&to=2024-06-04T00:00:00Z"},
		{"GET", "/doses/" + morning.ID},
		{"POST", "/doses/" + morning.ID + "/missed"},
		{"POST", "/doses/" + morning.ID + "/skipped"},
		{"PATCH", "/doses/" + morning.ID},
		{"DELETE", "/doses/" + morning.ID},
		{"GET", "/doses/" + morning.ID + "/reminders"},
	}
	for _, tc := range forbidden {
		var body any
		if tc.method == "PATCH" {
			body = map[string]any{"notes": "x"}
		}
		st, resp := doReq(t, ts.URL, tc.method, tc.path, stranger, body)
		if st != http.StatusForbidden {
			t.Fatalf("%s %s: expected 403, got %d body=%s", tc.method, tc.path, st, string(resp))
		}
	}

	// Nada cambió
	var d doseJSON
	st, body := doReq(t, ts.URL, "GET", "/doses/"+morning.ID, "patient-1", nil)
	mustStatus(t, st, http.StatusOK, body)
	mustDecode(t, body, &d)
	if d.Status != "pending" {
		t.Fatalf("expected pending after forbidden calls, got %s", d.Status)
	}

	// Cuidador del paciente: acceso completo
	st, body = doReq(t, ts.URL, "POST", "/doses/"+evening.ID+"/missed", "caregiver-9", nil)
	mustStatus(t, st, http.StatusOK, body)
	st, body = doReq(t, ts.URL, "GET", "/patients/patient-1/adherence?from=2024-06-03T00:00:00Z&to=2024-06-04T00:00:00Z", "caregiver-9", nil)
	mustStatus(t, st, http.StatusOK, body)

	// Dosis inexistente sigue siendo 404
	st, body = doReq(t, ts.URL, "POST", "/doses/nope/missed", stranger, nil)
	mustStatus(t, st, http.StatusNotFound, body)
}

func TestHTTP_HealthMetricsSwagger(t *testing.T) {
	ts := newServer(t)

	st, body := doReq(t, ts.URL, "GET", "/health", "", nil)
	mustStatus(t, st, http.StatusOK, body)

	schedule(t, ts.URL, "patient-1", "2024-06-03", "2024-06-03")

	st, body = doReq(t, ts.URL, "GET", "/metrics", "", nil)
	mustStatus(t, st, http.StatusOK, body)
	if !strings.Contains(string(body), "medtrack_doses_generated_total 2") {
		t.Fatalf("expected generated counter in metrics output")
	}
	if !strings.Contains(string(body), `route="/patients/{patientID}/medications/{medicationID}/schedule"`) {
		t.Fatalf("expected route pattern label in metrics output")
	}

	st, body = doReq(t, ts.URL, "GET", "/swagger/doc.json", "", nil)
	mustStatus(t, st, http.StatusOK, body)
	if !strings.Contains(string(body), "/doses/{doseID}/taken") {
		t.Fatalf("expected dose routes in swagger doc")
	}
}

func schedule(t *testing.T, baseURL, userID, from, to string) scheduleJSON {
	t.Helper()

	var out scheduleJSON
	st, body := doReq(t, baseURL, "POST", "/patients/patient-1/medications/med-1/schedule", userID, map[string]any{
		"from": from,
		"to":   to,
	})
	mustStatus(t, st, http.StatusCreated, body)
	mustDecode(t, body, &out)
	return out
}

func mustStatus(t *testing.T, got, want int, body []byte) {
	t.Helper()
	if got != want {
		t.Fatalf("expected %d, got %d body=%s", want, got, string(body))
	}
}

func mustDecode(t *testing.T, body []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(body, v); err != nil {
		t.Fatalf("decode %s: %v", string(body), err)
	}
}

func doReq(t *testing.T, baseURL, method, path, debugUserID string, body any) (int, []byte) {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("json marshal: %v", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, baseURL+path, rdr)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if debugUserID != "" {
		req.Header.Set("X-Debug-User-ID", debugUserID)
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()

	respBody, _ := io.ReadAll(res.Body)
	return res.StatusCode, respBody
}
