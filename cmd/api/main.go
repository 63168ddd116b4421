package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/spf13/pflag"

	"github.com/starstech/medtrack-sub001/internal/domain/doses"
	"github.com/starstech/medtrack-sub001/internal/domain/reminders"
	"github.com/starstech/medtrack-sub001/internal/platform/config"
	"github.com/starstech/medtrack-sub001/internal/platform/logger"
	"github.com/starstech/medtrack-sub001/internal/platform/metrics"
	"github.com/starstech/medtrack-sub001/internal/router"
)

// @title Medtrack API
// @version 1.0
// @description Generación de dosis, registro de tomas, triage diario, adherencia y recordatorios.
// @BasePath /
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	configPath := pflag.StringP("config", "c", "", "archivo YAML de configuración (o MEDTRACK_CONFIG)")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	log := logger.New(logger.Options{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: logger.ParseFormat(cfg.Log.Format),
		App:    cfg.App.Name,
	})
	if zl, ok := log.(*logger.ZapLogger); ok {
		defer func() { _ = zl.Sync() }()
	}
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.close()

	slots, err := slotsFromConfig(cfg.Schedule.Times)
	if err != nil {
		return err
	}
	gen := doses.NewGenerator(doses.GeneratorOptions{Location: cfg.Location(), Slots: slots})

	dosesCfg := doses.Config{
		ClockSkew:       cfg.Doses.ClockSkew,
		UpcomingHorizon: cfg.Triage.UpcomingHorizon,
		Logger:          log,
		Metrics:         m,
	}
	if cfg.Doses.AutoMiss.Enabled {
		dosesCfg.MissedGrace = cfg.Doses.AutoMiss.GracePeriod
	}
	dosesSvc := doses.NewService(store.doses, gen, dosesCfg)

	sink, err := openSink(cfg, log, m)
	if err != nil {
		return err
	}

	verifier, err := openVerifier(cfg, log)
	if err != nil {
		return err
	}

	var sched *reminders.Scheduler
	if cfg.Reminders.Enabled {
		sched = reminders.NewScheduler(reminders.SchedulerDeps{
			Doses:       dosesSvc,
			Medications: store.medications,
			Preferences: store.preferences,
			Recipients:  store.recipients,
			Sink:        sink,
			Sweeper:     dosesSvc,
		}, reminders.SchedulerConfig{
			Tick:       cfg.Reminders.TickInterval,
			Lookahead:  cfg.Reminders.Lookahead,
			MaxCatchUp: cfg.Reminders.MaxCatchUp,
			Logger:     log,
			Metrics:    m,
		})
		if err := sched.Start(); err != nil {
			return err
		}
	}

	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: router.NewRouter(router.Options{
			AuthVerifier: verifier,
			Logger:       log,
			Metrics:      m,
			Doses:        dosesSvc,
			Medications:  store.medications,
			Preferences:  store.preferences,
			CareTeam:     store.recipients,
			HorizonDays:  cfg.Schedule.HorizonDays,
			DB:           store.db,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", map[string]any{"addr": srv.Addr, "storage": store.kind})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down", nil)
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if sched != nil {
		if err := sched.Stop(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("scheduler stop: %w", err))
		}
	}
	if c, ok := sink.(interface{ Close(context.Context) error }); ok {
		if err := c.Close(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("sink close: %w", err))
		}
	}
	return errors.Join(errs...)
}
