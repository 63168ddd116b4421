package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/starstech/medtrack-sub001/internal/adapters/auth/iam"
	"github.com/starstech/medtrack-sub001/internal/adapters/fixtures"
	"github.com/starstech/medtrack-sub001/internal/adapters/notify"
	mem "github.com/starstech/medtrack-sub001/internal/adapters/storage/memory"
	pg "github.com/starstech/medtrack-sub001/internal/adapters/storage/postgres"
	"github.com/starstech/medtrack-sub001/internal/domain/doses"
	"github.com/starstech/medtrack-sub001/internal/domain/medications"
	"github.com/starstech/medtrack-sub001/internal/domain/reminders"
	"github.com/starstech/medtrack-sub001/internal/platform/config"
	"github.com/starstech/medtrack-sub001/internal/platform/logger"
	"github.com/starstech/medtrack-sub001/internal/platform/metrics"
	"github.com/starstech/medtrack-sub001/internal/ports/auth"
)

type storage struct {
	kind string
	db   *sql.DB

	doses       doses.Repository
	medications medications.Source
	preferences reminders.PreferenceSource
	recipients  reminders.RecipientResolver
}

func (s *storage) close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

// openStorage: con DSN usa Postgres; sin DSN, memoria + fixtures opcionales.
func openStorage(ctx context.Context, cfg *config.Config, log logger.Logger) (*storage, error) {
	if cfg.Database.DSN != "" {
		db, err := pg.Open(ctx, cfg.Database.DSN, pg.PoolConfig{})
		if err != nil {
			return nil, err
		}
		if cfg.Database.Migrate {
			if err := pg.Migrate(ctx, db); err != nil {
				_ = db.Close()
				return nil, err
			}
		}
		return &storage{
			kind:        "postgres",
			db:          db,
			doses:       pg.NewDosesRepo(db),
			medications: pg.NewMedicationsSource(db),
			preferences: pg.NewPreferencesSource(db),
			recipients:  pg.NewCareTeam(db),
		}, nil
	}

	meds := mem.NewMedicationSource()
	prefs := mem.NewPreferenceSource()
	team := mem.NewCareTeam()

	if cfg.Seed.File != "" {
		f, err := fixtures.Load(cfg.Seed.File)
		if err != nil {
			return nil, err
		}
		if err := f.Apply(meds, prefs, team); err != nil {
			return nil, fmt.Errorf("seed %s: %w", cfg.Seed.File, err)
		}
		log.Info("fixtures loaded", map[string]any{
			"file":        cfg.Seed.File,
			"medications": len(f.Medications),
			"preferences": len(f.Preferences),
		})
	}

	return &storage{
		kind:        "memory",
		doses:       mem.NewDoseRepo(),
		medications: meds,
		preferences: prefs,
		recipients:  team,
	}, nil
}

func openSink(cfg *config.Config, log logger.Logger, m *metrics.Metrics) (reminders.NotificationSink, error) {
	if cfg.Notify.Webhook.URL == "" {
		return notify.NewLogSink(log, m), nil
	}
	return notify.NewWebhookSink(notify.WebhookOptions{
		URL:           cfg.Notify.Webhook.URL,
		Timeout:       cfg.Notify.Webhook.Timeout,
		RatePerSecond: cfg.Notify.Webhook.RatePerSecond,
		QueueSize:     cfg.Notify.Webhook.QueueSize,
		Logger:        log,
		Metrics:       m,
	})
}

// openVerifier: sin auth.verify_url devuelve nil y el router queda en modo dev.
func openVerifier(cfg *config.Config, log logger.Logger) (auth.AuthVerifier, error) {
	if cfg.Auth.VerifyURL == "" {
		log.Warn("auth verifier disabled, X-Debug-User-ID accepted", nil)
		return nil, nil
	}
	v, err := iam.NewVerifier(iam.Config{
		VerifyURL:    cfg.Auth.VerifyURL,
		APIKey:       cfg.Auth.APIKey,
		APIKeyHeader: cfg.Auth.APIKeyHeader,
		Timeout:      cfg.Auth.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func slotsFromConfig(t config.ScheduleTimes) (map[medications.FrequencyRule][]doses.TimeOfDay, error) {
	raw := map[medications.FrequencyRule][]string{
		medications.FrequencyOnceDaily:       t.OnceDaily,
		medications.FrequencyTwiceDaily:      t.TwiceDaily,
		medications.FrequencyThreeTimesDaily: t.ThreeTimesDaily,
		medications.FrequencyFourTimesDaily:  t.FourTimesDaily,
		medications.FrequencyWeekly:          t.Weekly,
		medications.FrequencyMonthly:         t.Monthly,
	}

	out := make(map[medications.FrequencyRule][]doses.TimeOfDay, len(raw))
	for rule, times := range raw {
		for _, s := range times {
			tod, err := doses.ParseTimeOfDay(s)
			if err != nil {
				return nil, fmt.Errorf("schedule.times.%s: %w", rule, err)
			}
			out[rule] = append(out[rule], tod)
		}
	}
	return out, nil
}
