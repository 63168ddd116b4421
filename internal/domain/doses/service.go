package doses

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starstech/medtrack-sub001/internal/domain/medications"
	"github.com/starstech/medtrack-sub001/internal/platform/logger"
	"github.com/starstech/medtrack-sub001/internal/platform/metrics"
)

// DefaultClockSkew es la tolerancia para un actual_time en el futuro.
const DefaultClockSkew = 5 * time.Minute

type Config struct {
	ClockSkew time.Duration
	// MissedGrace <= 0 desactiva SweepMissed.
	MissedGrace     time.Duration
	UpcomingHorizon time.Duration

	Logger  logger.Logger
	Metrics *metrics.Metrics
}

type Service struct {
	repo    Repository
	gen     *Generator
	cfg     Config
	log     logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(repo Repository, gen *Generator, cfg Config) *Service {
	if gen == nil {
		gen = NewGenerator(GeneratorOptions{})
	}
	if cfg.ClockSkew < 0 {
		cfg.ClockSkew = 0
	}
	if cfg.UpcomingHorizon <= 0 {
		cfg.UpcomingHorizon = DefaultUpcomingHorizon
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}

	return &Service{
		repo:    repo,
		gen:     gen,
		cfg:     cfg,
		log:     log.With(map[string]any{"component": "doses"}),
		metrics: cfg.Metrics,
		now:     time.Now,
	}
}

// ScheduleResult: Generated = Created + Skipped.
type ScheduleResult struct {
	Generated int
	Created   int
	Skipped   int
	Doses     []Dose
}

// ScheduleMedication genera las dosis de [from, to] y persiste las que faltan.
// Un medicamento inactivo no genera nada.
func (s *Service) ScheduleMedication(ctx context.Context, med medications.Medication, from, to time.Time) (ScheduleResult, error) {
	if strings.TrimSpace(med.ID) == "" || strings.TrimSpace(med.PatientID) == "" {
		return ScheduleResult{}, fmt.Errorf("%w: medication id and patient id required", ErrInvalidInput)
	}
	if !med.Active {
		return ScheduleResult{Doses: []Dose{}}, nil
	}

	generated, err := s.gen.Generate(med, from, to)
	if err != nil {
		return ScheduleResult{}, err
	}
	if len(generated) == 0 {
		return ScheduleResult{Doses: []Dose{}}, nil
	}

	lo := generated[0].ScheduledTime
	hi := generated[len(generated)-1].ScheduledTime.Add(time.Nanosecond)
	existing, err := s.repo.List(ctx, ListFilter{MedicationID: med.ID, From: &lo, To: &hi})
	if err != nil {
		return ScheduleResult{}, err
	}

	now := s.now().UTC()
	fresh := DedupeDoses(existing, generated)
	for i := range fresh {
		fresh[i].CreatedAt = now
		fresh[i].UpdatedAt = now
	}

	created := []Dose{}
	if len(fresh) > 0 {
		created, err = s.repo.Create(ctx, fresh)
		if err != nil {
			return ScheduleResult{}, err
		}
	}

	res := ScheduleResult{
		Generated: len(generated),
		Created:   len(created),
		Skipped:   len(generated) - len(created),
		Doses:     created,
	}
	s.metrics.AddGenerated(res.Created)
	s.log.Info("medication scheduled", map[string]any{
		"medication_id": med.ID,
		"patient_id":    med.PatientID,
		"created":       res.Created,
		"skipped":       res.Skipped,
	})
	return res, nil
}

func (s *Service) Get(ctx context.Context, id string) (Dose, error) {
	if strings.TrimSpace(id) == "" {
		return Dose{}, ErrInvalidInput
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]Dose, error) {
	if strings.TrimSpace(filter.PatientID) == "" && strings.TrimSpace(filter.MedicationID) == "" {
		return nil, fmt.Errorf("%w: patient or medication required", ErrInvalidInput)
	}
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return nil, fmt.Errorf("%w: from must be before to", ErrInvalidRange)
	}
	if filter.Limit < 0 {
		return nil, fmt.Errorf("%w: negative limit", ErrInvalidInput)
	}
	return s.repo.List(ctx, filter)
}

// MarkTaken: actual es obligatorio y no puede estar más de ClockSkew en el futuro.
func (s *Service) MarkTaken(ctx context.Context, id string, actual time.Time, notes string) (Dose, error) {
	if actual.IsZero() {
		return Dose{}, fmt.Errorf("%w: actual time required", ErrInvalidInput)
	}
	if limit := s.now().Add(s.cfg.ClockSkew); actual.After(limit) {
		return Dose{}, fmt.Errorf("%w: actual time %s is in the future", ErrInvalidInput, actual.Format(time.RFC3339))
	}

	at := actual.UTC()
	n := strings.TrimSpace(notes)
	return s.transition(ctx, id, StatusTaken, &at, &n)
}

// MarkSkipped: actual_time = now, reason va a notes.
func (s *Service) MarkSkipped(ctx context.Context, id, reason string) (Dose, error) {
	at := s.now().UTC()
	r := strings.TrimSpace(reason)
	return s.transition(ctx, id, StatusSkipped, &at, &r)
}

// MarkMissed deja actual_time en nil.
func (s *Service) MarkMissed(ctx context.Context, id string) (Dose, error) {
	return s.transition(ctx, id, StatusMissed, nil, nil)
}

func (s *Service) transition(ctx context.Context, id string, to Status, actual *time.Time, notes *string) (Dose, error) {
	if strings.TrimSpace(id) == "" {
		return Dose{}, ErrInvalidInput
	}

	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Dose{}, err
	}
	if !CanTransition(d.Status, to) {
		s.metrics.ObserveTransition(string(to), "invalid")
		return Dose{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, d.Status, to)
	}
	// "" => conservar las notas existentes
	if notes != nil && *notes == "" {
		notes = nil
	}

	updated, err := s.repo.Transition(ctx, Transition{
		DoseID:     id,
		From:       StatusPending,
		To:         to,
		ActualTime: actual,
		Notes:      notes,
		At:         s.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			s.metrics.ObserveTransition(string(to), "conflict")
			s.log.Warn("dose transition lost race", map[string]any{"dose_id": id, "status": string(to)})
		}
		return Dose{}, err
	}

	s.metrics.ObserveTransition(string(to), "ok")
	s.log.Info("dose transitioned", map[string]any{
		"dose_id":       updated.ID,
		"patient_id":    updated.PatientID,
		"medication_id": updated.MedicationID,
		"status":        string(updated.Status),
	})
	return updated, nil
}

// DoseUpdate es un PATCH: nil = no tocar.
type DoseUpdate struct {
	Notes      *string
	Status     *Status
	ActualTime *time.Time
}

// Update aplica un PATCH. Sobre una dosis terminal solo se pueden cambiar las notas.
func (s *Service) Update(ctx context.Context, id string, in DoseUpdate) (Dose, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return Dose{}, err
	}

	if d.Status.Terminal() {
		if in.Status != nil && *in.Status != d.Status {
			return Dose{}, fmt.Errorf("%w: dose is %s", ErrImmutableStatus, d.Status)
		}
		if in.ActualTime != nil && (d.ActualTime == nil || !d.ActualTime.Equal(*in.ActualTime)) {
			return Dose{}, fmt.Errorf("%w: actual time of a %s dose cannot change", ErrImmutableStatus, d.Status)
		}
		if in.Notes == nil {
			return d, nil
		}
		return s.UpdateNotes(ctx, id, *in.Notes)
	}

	target := StatusPending
	if in.Status != nil {
		target = *in.Status
	}

	switch target {
	case StatusPending:
		if in.ActualTime != nil {
			return Dose{}, fmt.Errorf("%w: actual time only applies to taken doses", ErrInvalidInput)
		}
		if in.Notes == nil {
			return d, nil
		}
		return s.UpdateNotes(ctx, id, *in.Notes)
	case StatusTaken:
		if in.ActualTime == nil {
			return Dose{}, fmt.Errorf("%w: actual time required", ErrInvalidInput)
		}
		return s.MarkTaken(ctx, id, *in.ActualTime, deref(in.Notes))
	case StatusSkipped:
		if in.ActualTime != nil {
			return Dose{}, fmt.Errorf("%w: skipped doses record the current time", ErrInvalidInput)
		}
		return s.MarkSkipped(ctx, id, deref(in.Notes))
	case StatusMissed:
		if in.ActualTime != nil {
			return Dose{}, fmt.Errorf("%w: missed doses have no actual time", ErrInvalidInput)
		}
		updated, err := s.MarkMissed(ctx, id)
		if err != nil || in.Notes == nil {
			return updated, err
		}
		return s.UpdateNotes(ctx, id, *in.Notes)
	default:
		return Dose{}, fmt.Errorf("%w: unknown dose status %q", ErrInvalidInput, target)
	}
}

// UpdateNotes no toca status ni actual_time; vale también para dosis terminales.
func (s *Service) UpdateNotes(ctx context.Context, id, notes string) (Dose, error) {
	if strings.TrimSpace(id) == "" {
		return Dose{}, ErrInvalidInput
	}
	return s.repo.UpdateNotes(ctx, id, strings.TrimSpace(notes), s.now().UTC())
}

// Delete borra una dosis pending. Las terminales son historia de adherencia.
func (s *Service) Delete(ctx context.Context, id string) error {
	d, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if d.Status.Terminal() {
		return fmt.Errorf("%w: %s doses cannot be deleted", ErrImmutableStatus, d.Status)
	}
	if err := s.repo.DeletePending(ctx, id); err != nil {
		return err
	}

	s.log.Info("dose deleted", map[string]any{"dose_id": id, "patient_id": d.PatientID})
	return nil
}

// DiscontinueMedication borra las dosis pending con scheduled_time >= from.
func (s *Service) DiscontinueMedication(ctx context.Context, medicationID string, from time.Time) (int, error) {
	if strings.TrimSpace(medicationID) == "" {
		return 0, ErrInvalidInput
	}
	if from.IsZero() {
		from = s.now()
	}

	n, err := s.repo.DeletePendingByMedication(ctx, medicationID, from.UTC())
	if err != nil {
		return 0, err
	}

	s.log.Info("medication discontinued", map[string]any{
		"medication_id": medicationID,
		"from":          from.UTC().Format(time.RFC3339),
		"deleted":       n,
	})
	return n, nil
}

// SweepMissed pasa a missed las dosis pending con scheduled_time < now - MissedGrace.
// Usa la misma transición condicional: si alguien ganó la carrera, se salta la dosis.
func (s *Service) SweepMissed(ctx context.Context, now time.Time) (int, error) {
	if s.cfg.MissedGrace <= 0 {
		return 0, nil
	}

	cutoff := now.Add(-s.cfg.MissedGrace).UTC()
	stale, err := s.repo.List(ctx, ListFilter{To: &cutoff, Statuses: []Status{StatusPending}})
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, d := range stale {
		if err := ctx.Err(); err != nil {
			return swept, err
		}

		_, err := s.repo.Transition(ctx, Transition{
			DoseID: d.ID,
			From:   StatusPending,
			To:     StatusMissed,
			At:     now.UTC(),
		})
		switch {
		case err == nil:
			swept++
			s.metrics.ObserveTransition(string(StatusMissed), "ok")
		case errors.Is(err, ErrConflict), errors.Is(err, ErrNotFound):
			s.metrics.ObserveTransition(string(StatusMissed), "conflict")
		default:
			return swept, err
		}
	}

	s.metrics.AddSwept(swept)
	if swept > 0 {
		s.log.Info("pending doses auto-missed", map[string]any{
			"count":  swept,
			"cutoff": cutoff.Format(time.RFC3339),
		})
	}
	return swept, nil
}

// Today clasifica las dosis del día calendario de now (en la zona del generador).
// horizon <= 0 => el configurado.
func (s *Service) Today(ctx context.Context, patientID string, now time.Time, horizon time.Duration) (Buckets, error) {
	if strings.TrimSpace(patientID) == "" {
		return Buckets{}, ErrInvalidInput
	}
	if now.IsZero() {
		now = s.now()
	}
	if horizon <= 0 {
		horizon = s.cfg.UpcomingHorizon
	}

	local := now.In(s.gen.Location())
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
	end := start.AddDate(0, 0, 1)

	ds, err := s.repo.List(ctx, ListFilter{PatientID: patientID, From: &start, To: &end})
	if err != nil {
		return Buckets{}, err
	}
	return Classify(ds, now, horizon), nil
}

func (s *Service) Adherence(ctx context.Context, patientID string, start, end time.Time) (Stats, error) {
	ds, err := s.window(ctx, patientID, start, end)
	if err != nil {
		return Stats{}, err
	}
	return ComputeAdherence(ds, start, end)
}

func (s *Service) AdherenceByMedication(ctx context.Context, patientID string, start, end time.Time) ([]MedicationStats, error) {
	ds, err := s.window(ctx, patientID, start, end)
	if err != nil {
		return nil, err
	}
	return ComputeAdherenceByMedication(ds, start, end)
}

func (s *Service) window(ctx context.Context, patientID string, start, end time.Time) ([]Dose, error) {
	if strings.TrimSpace(patientID) == "" {
		return nil, ErrInvalidInput
	}
	if err := checkWindow(start, end); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, ListFilter{PatientID: patientID, From: &start, To: &end})
}

// PendingBetween lo usa el scheduler de recordatorios: pending con scheduled_time en (from, to].
func (s *Service) PendingBetween(ctx context.Context, from, to time.Time) ([]Dose, error) {
	lo := from.Add(time.Nanosecond)
	hi := to.Add(time.Nanosecond)
	return s.repo.List(ctx, ListFilter{From: &lo, To: &hi, Statuses: []Status{StatusPending}})
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
