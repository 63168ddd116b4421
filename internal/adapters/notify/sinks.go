package notify

import (
	"context"
	"sync"

	"github.com/starstech/medtrack-sub001/internal/domain/reminders"
	"github.com/starstech/medtrack-sub001/internal/platform/logger"
	"github.com/starstech/medtrack-sub001/internal/platform/metrics"
)

// LogSink solo loguea la intención. Es el sink por defecto sin webhook.
type LogSink struct {
	log     logger.Logger
	metrics *metrics.Metrics
}

func NewLogSink(log logger.Logger, m *metrics.Metrics) *LogSink {
	if log == nil {
		log = logger.Nop()
	}
	return &LogSink{log: log, metrics: m}
}

func (s *LogSink) Emit(_ context.Context, in reminders.Intent) error {
	s.log.Info("reminder intent", intentFields(in))
	s.metrics.ObserveDelivery("log", "ok")
	return nil
}

// Recorder guarda las intenciones en memoria (dev y tests).
type Recorder struct {
	mu      sync.Mutex
	intents []reminders.Intent
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Emit(_ context.Context, in reminders.Intent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intents = append(r.intents, in)
	return nil
}

// Intents devuelve una copia.
func (r *Recorder) Intents() []reminders.Intent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]reminders.Intent, len(r.intents))
	copy(out, r.intents)
	return out
}

func intentFields(in reminders.Intent) map[string]any {
	channels := make([]string, 0, len(in.Channels))
	for _, c := range in.Channels {
		channels = append(channels, string(c))
	}
	return map[string]any{
		"dose_id":        in.DoseID,
		"patient_id":     in.PatientID,
		"medication_id":  in.MedicationID,
		"recipient":      in.RecipientUserID,
		"fire_at":        in.FireAt,
		"scheduled_time": in.ScheduledTime,
		"offset_minutes": in.OffsetMinutes,
		"suppressed":     in.SuppressedByQuietHours,
		"channels":       channels,
	}
}
