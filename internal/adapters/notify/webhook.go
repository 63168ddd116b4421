package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/starstech/medtrack-sub001/internal/domain/reminders"
	"github.com/starstech/medtrack-sub001/internal/platform/httpclient"
	"github.com/starstech/medtrack-sub001/internal/platform/logger"
	"github.com/starstech/medtrack-sub001/internal/platform/metrics"
)

var (
	ErrQueueFull  = errors.New("notify: webhook queue full")
	ErrSinkClosed = errors.New("notify: webhook sink closed")
)

const sinkWebhook = "webhook"

type WebhookOptions struct {
	URL           string
	Timeout       time.Duration
	RatePerSecond float64 // <= 0 => sin límite
	QueueSize     int
	// FailureThreshold: fallas consecutivas que abren el breaker. Default 5.
	FailureThreshold uint32
	// OpenTimeout: cuánto queda abierto antes de probar de nuevo. Default 30s.
	OpenTimeout time.Duration

	Logger  logger.Logger
	Metrics *metrics.Metrics
	Client  *httpclient.Client // opcional (tests)
}

// WebhookSink publica intenciones por HTTP POST desde un worker propio.
// Emit nunca bloquea: si la cola está llena, la intención se descarta.
type WebhookSink struct {
	url     string
	client  *httpclient.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[struct{}]
	log     logger.Logger
	metrics *metrics.Metrics

	// closeMu ordena Emit contra Close: después de closed=true nadie encola.
	closeMu sync.RWMutex
	closed  bool

	queue chan reminders.Intent
	done  chan struct{}
	wg    sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

type webhookPayload struct {
	DoseID                 string    `json:"dose_id"`
	RecipientUserID        string    `json:"recipient_user_id"`
	PatientID              string    `json:"patient_id"`
	MedicationID           string    `json:"medication_id"`
	MedicationName         string    `json:"medication_name"`
	ScheduledTime          time.Time `json:"scheduled_time"`
	FireAt                 time.Time `json:"fire_at"`
	OffsetMinutes          int       `json:"offset_minutes"`
	SuppressedByQuietHours bool      `json:"suppressed_by_quiet_hours"`
	Channels               []string  `json:"channels"`
}

func NewWebhookSink(opts WebhookOptions) (*WebhookSink, error) {
	if err := httpclient.ValidateURL(opts.URL); err != nil {
		return nil, fmt.Errorf("webhook sink: %w", err)
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.FailureThreshold == 0 {
		opts.FailureThreshold = 5
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	client := opts.Client
	if client == nil {
		client = httpclient.New(opts.Timeout)
	}

	limit := rate.Inf
	burst := 1
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
		burst = int(opts.RatePerSecond)
		if burst < 1 {
			burst = 1
		}
	}

	log := opts.Logger.With(map[string]any{"sink": sinkWebhook})
	threshold := opts.FailureThreshold

	s := &WebhookSink{
		url:     opts.URL,
		client:  client,
		limiter: rate.NewLimiter(limit, burst),
		breaker: gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
			Name:        "notify-webhook",
			MaxRequests: 1,
			Timeout:     opts.OpenTimeout,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= threshold
			},
			// un 4xx es un problema del payload, no del receptor
			IsSuccessful: func(err error) bool {
				return err == nil || httpclient.IsClientError(err)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn("webhook breaker state change", map[string]any{
					"from": from.String(),
					"to":   to.String(),
				})
			},
		}),
		log:     log,
		metrics: opts.Metrics,
		queue:   make(chan reminders.Intent, opts.QueueSize),
		done:    make(chan struct{}),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.wg.Add(1)
	go s.run()

	return s, nil
}

func (s *WebhookSink) Emit(_ context.Context, in reminders.Intent) error {
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()

	if s.closed {
		return ErrSinkClosed
	}

	select {
	case s.queue <- in:
		return nil
	default:
		s.metrics.ObserveDelivery(sinkWebhook, "dropped")
		s.log.Warn("webhook queue full, intent dropped", map[string]any{
			"dose_id":   in.DoseID,
			"recipient": in.RecipientUserID,
		})
		return ErrQueueFull
	}
}

// Close deja de aceptar intenciones y drena la cola hasta que ctx venza.
func (s *WebhookSink) Close(ctx context.Context) error {
	s.closeMu.Lock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
	s.closeMu.Unlock()

	finished := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		<-finished
		return ctx.Err()
	}
}

func (s *WebhookSink) run() {
	defer s.wg.Done()

	for {
		select {
		case in := <-s.queue:
			s.deliver(in)
		case <-s.done:
			for {
				select {
				case in := <-s.queue:
					s.deliver(in)
				default:
					return
				}
			}
		}
	}
}

func (s *WebhookSink) deliver(in reminders.Intent) {
	if err := s.limiter.Wait(s.ctx); err != nil {
		s.metrics.ObserveDelivery(sinkWebhook, "dropped")
		return
	}

	headers := map[string]string{
		"Idempotency-Key": in.DoseID + ":" + in.RecipientUserID + ":" + strconv.Itoa(in.OffsetMinutes),
	}

	_, err := s.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, s.client.PostJSON(s.ctx, s.url, headers, toPayload(in), nil)
	})

	switch {
	case err == nil:
		s.metrics.ObserveDelivery(sinkWebhook, "ok")
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		s.metrics.ObserveDelivery(sinkWebhook, "breaker_open")
		s.log.Debug("webhook breaker open, intent dropped", map[string]any{"dose_id": in.DoseID})
	default:
		s.metrics.ObserveDelivery(sinkWebhook, "error")
		s.log.Warn("webhook delivery failed", map[string]any{
			"dose_id":   in.DoseID,
			"recipient": in.RecipientUserID,
			"error":     err,
		})
	}
}

func toPayload(in reminders.Intent) webhookPayload {
	channels := make([]string, 0, len(in.Channels))
	for _, c := range in.Channels {
		channels = append(channels, string(c))
	}
	return webhookPayload{
		DoseID:                 in.DoseID,
		RecipientUserID:        in.RecipientUserID,
		PatientID:              in.PatientID,
		MedicationID:           in.MedicationID,
		MedicationName:         in.MedicationName,
		ScheduledTime:          in.ScheduledTime.UTC(),
		FireAt:                 in.FireAt.UTC(),
		OffsetMinutes:          in.OffsetMinutes,
		SuppressedByQuietHours: in.SuppressedByQuietHours,
		Channels:               channels,
	}
}
