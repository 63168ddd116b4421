package reminders

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/starstech/medtrack-sub001/internal/domain/doses"
	"github.com/starstech/medtrack-sub001/internal/domain/medications"
	"github.com/starstech/medtrack-sub001/internal/platform/logger"
	"github.com/starstech/medtrack-sub001/internal/platform/metrics"
)

const (
	DefaultTick       = time.Minute
	DefaultLookahead  = 24 * time.Hour
	DefaultMaxCatchUp = 15 * time.Minute
)

// PendingDoses es lo que el scheduler lee del store: pending con scheduled_time en (from, to].
type PendingDoses interface {
	PendingBetween(ctx context.Context, from, to time.Time) ([]doses.Dose, error)
}

// MissedSweeper es la política de auto-missed. nil => no se barre.
type MissedSweeper interface {
	SweepMissed(ctx context.Context, now time.Time) (int, error)
}

type SchedulerDeps struct {
	Doses       PendingDoses
	Medications medications.Source
	Preferences PreferenceSource
	Recipients  RecipientResolver // nil => PatientSelf
	Sink        NotificationSink
	Sweeper     MissedSweeper
}

type SchedulerConfig struct {
	Tick time.Duration
	// Lookahead acota el offset máximo que el tick puede atender.
	Lookahead time.Duration
	// MaxCatchUp: cuánto hacia atrás recupera un tick atrasado. Lo que disparaba
	// antes de now-MaxCatchUp se da por perdido.
	MaxCatchUp time.Duration
	Logger     logger.Logger
	Metrics    *metrics.Metrics
}

// TickResult resume un tick. Lo usan tests y logs.
type TickResult struct {
	// From y To delimitan la ventana de fireAt atendida: (From, To].
	From       time.Time
	To         time.Time
	Doses      int
	Emitted    int
	Suppressed int
	Duplicates int
	Swept      int
}

// Scheduler evalúa los recordatorios sobre las dosis pending en cada tick.
// Cada tick trabaja sobre un snapshot: lee dosis, medicamentos y preferencias,
// calcula y recién después emite.
type Scheduler struct {
	deps    SchedulerDeps
	cfg     SchedulerConfig
	log     logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	sent *sentSet

	// tickMu serializa Tick; lastHorizon es el To del último tick completo.
	tickMu      sync.Mutex
	lastHorizon time.Time

	mu      sync.RWMutex
	cron    *cron.Cron
	running bool
	cancel  context.CancelFunc
}

func NewScheduler(deps SchedulerDeps, cfg SchedulerConfig) *Scheduler {
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultTick
	}
	if cfg.Lookahead <= 0 {
		cfg.Lookahead = DefaultLookahead
	}
	if cfg.MaxCatchUp <= 0 {
		cfg.MaxCatchUp = DefaultMaxCatchUp
	}
	if deps.Recipients == nil {
		deps.Recipients = PatientSelf{}
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}

	return &Scheduler{
		deps:    deps,
		cfg:     cfg,
		log:     log.With(map[string]any{"component": "reminder_scheduler"}),
		metrics: cfg.Metrics,
		now:     time.Now,
		sent:    newSentSet(),
	}
}

func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("reminder scheduler already running")
	}
	if s.deps.Doses == nil || s.deps.Preferences == nil || s.deps.Sink == nil {
		return errors.New("reminder scheduler: doses, preferences and sink are required")
	}

	cl := logger.CronLogger(s.log)
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", s.cfg.Tick), func() { s.runTick(ctx) }); err != nil {
		cancel()
		return fmt.Errorf("schedule tick: %w", err)
	}

	s.cron, s.cancel = c, cancel
	s.running = true
	c.Start()

	s.log.Info("reminder scheduler started", map[string]any{
		"tick":         s.cfg.Tick.String(),
		"lookahead":    s.cfg.Lookahead.String(),
		"max_catch_up": s.cfg.MaxCatchUp.String(),
	})
	return nil
}

// Stop cancela el tick en curso y espera a que termine o a que venza ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	c, cancel := s.cron, s.cancel
	s.mu.Unlock()

	cancel()
	done := c.Stop()

	select {
	case <-done.Done():
		s.log.Info("reminder scheduler stopped", nil)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Scheduler) runTick(ctx context.Context) {
	res, err := s.Tick(ctx, s.now())
	if err != nil {
		s.log.Error("reminder tick failed", map[string]any{"error": err})
		return
	}
	if res.Emitted > 0 || res.Swept > 0 {
		s.log.Info("reminder tick", map[string]any{
			"doses":      res.Doses,
			"emitted":    res.Emitted,
			"suppressed": res.Suppressed,
			"swept":      res.Swept,
		})
	}
}

// Tick emite, una sola vez, las intenciones con fireAt en (from, now+tick].
// from es el final de la ventana del tick anterior, así un tick atrasado
// recupera lo que quedó en el hueco (acotado por MaxCatchUp). El primer tick
// arranca en now.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) (TickResult, error) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	started := time.Now()
	defer func() { s.metrics.ObserveTick(time.Since(started)) }()

	from := s.windowStart(now)
	horizon := now.Add(s.cfg.Tick)
	res := TickResult{From: from, To: horizon}

	if s.deps.Sweeper != nil {
		n, err := s.deps.Sweeper.SweepMissed(ctx, now)
		if err != nil {
			s.log.Warn("missed sweep failed", map[string]any{"error": err})
		}
		res.Swept = n
	}

	pending, err := s.deps.Doses.PendingBetween(ctx, from, horizon.Add(s.cfg.Lookahead))
	if err != nil {
		return res, fmt.Errorf("load pending doses: %w", err)
	}
	res.Doses = len(pending)

	due, err := s.plan(ctx, pending, from, horizon)
	if err != nil {
		return res, err
	}

	s.sent.prune(from)
	for _, in := range due {
		if !s.sent.add(in) {
			res.Duplicates++
			continue
		}
		if err := s.deps.Sink.Emit(ctx, in); err != nil {
			// fire-and-forget: se loguea y se sigue
			s.log.Warn("reminder emit failed", map[string]any{
				"dose_id":   in.DoseID,
				"recipient": in.RecipientUserID,
				"error":     err,
			})
		}
		res.Emitted++
		if in.SuppressedByQuietHours {
			res.Suppressed++
		}
		s.metrics.ObserveIntent(in.SuppressedByQuietHours)
	}

	if horizon.After(s.lastHorizon) {
		s.lastHorizon = horizon
	}
	return res, nil
}

// windowStart: el final del tick anterior si quedó atrás de now, sin pasar de MaxCatchUp.
func (s *Scheduler) windowStart(now time.Time) time.Time {
	if s.lastHorizon.IsZero() || !s.lastHorizon.Before(now) {
		return now
	}
	limit := now.Add(-s.cfg.MaxCatchUp)
	if s.lastHorizon.Before(limit) {
		s.log.Warn("reminder tick late beyond catch-up limit", map[string]any{
			"gap":          now.Sub(s.lastHorizon).String(),
			"max_catch_up": s.cfg.MaxCatchUp.String(),
		})
		return limit
	}
	return s.lastHorizon
}

// plan calcula sin escribir nada: medicamentos, destinatarios y preferencias
// se leen una vez por tick.
func (s *Scheduler) plan(ctx context.Context, pending []doses.Dose, from, horizon time.Time) ([]Intent, error) {
	meds := map[string]*medications.Medication{}
	recipients := map[string][]string{}
	prefs := map[string]*Preference{}

	var out []Intent
	for _, d := range pending {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		med, ok := meds[d.MedicationID]
		if !ok {
			med = s.loadMedication(ctx, d.MedicationID)
			meds[d.MedicationID] = med
		}
		if med == nil {
			continue
		}

		users, ok := recipients[d.PatientID]
		if !ok {
			var err error
			users, err = s.deps.Recipients.RecipientsFor(ctx, d.PatientID)
			if err != nil {
				s.log.Warn("resolve recipients failed", map[string]any{"patient_id": d.PatientID, "error": err})
			}
			recipients[d.PatientID] = users
		}

		for _, userID := range users {
			pref, ok := prefs[userID]
			if !ok {
				pref = s.loadPreference(ctx, userID)
				prefs[userID] = pref
			}
			if pref == nil {
				continue
			}

			intents, err := ComputeReminders(d, *med, *pref, from)
			if err != nil {
				s.log.Warn("compute reminders failed", map[string]any{
					"dose_id": d.ID,
					"user_id": userID,
					"error":   err,
				})
				continue
			}
			for _, in := range intents {
				if !in.FireAt.After(horizon) {
					out = append(out, in)
				}
			}
		}
	}
	return out, nil
}

func (s *Scheduler) loadMedication(ctx context.Context, id string) *medications.Medication {
	if s.deps.Medications == nil {
		return &medications.Medication{ID: id, Active: true}
	}
	m, err := s.deps.Medications.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, medications.ErrNotFound) {
			s.log.Warn("load medication failed", map[string]any{"medication_id": id, "error": err})
		}
		return nil
	}
	return &m
}

func (s *Scheduler) loadPreference(ctx context.Context, userID string) *Preference {
	p, err := s.deps.Preferences.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrPreferenceNotFound) {
			s.log.Warn("load preference failed", map[string]any{"user_id": userID, "error": err})
		}
		return nil
	}
	if p.UserID == "" {
		p.UserID = userID
	}
	return &p
}

type sentKey struct {
	doseID    string
	recipient string
	offset    int
}

// sentSet recuerda lo ya emitido hasta que pasa su fireAt.
type sentSet struct {
	mu    sync.Mutex
	items map[sentKey]time.Time
}

func newSentSet() *sentSet {
	return &sentSet{items: map[sentKey]time.Time{}}
}

func (s *sentSet) add(in Intent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := sentKey{doseID: in.DoseID, recipient: in.RecipientUserID, offset: in.OffsetMinutes}
	if _, ok := s.items[k]; ok {
		return false
	}
	s.items[k] = in.FireAt
	return true
}

// prune descarta las entradas con fireAt <= from: ninguna ventana futura las vuelve a producir.
func (s *sentSet) prune(from time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, at := range s.items {
		if !at.After(from) {
			delete(s.items, k)
		}
	}
}

func (s *sentSet) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
