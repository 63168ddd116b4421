package router

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/starstech/medtrack-sub001/docs"
	mem "github.com/starstech/medtrack-sub001/internal/adapters/storage/memory"
	"github.com/starstech/medtrack-sub001/internal/domain/doses"
	"github.com/starstech/medtrack-sub001/internal/domain/medications"
	"github.com/starstech/medtrack-sub001/internal/domain/reminders"
	"github.com/starstech/medtrack-sub001/internal/middleware"
	"github.com/starstech/medtrack-sub001/internal/platform/logger"
	"github.com/starstech/medtrack-sub001/internal/platform/metrics"
	"github.com/starstech/medtrack-sub001/internal/ports/auth"
)

type Options struct {
	AuthVerifier auth.AuthVerifier // puede ser nil (modo dev)

	Logger  logger.Logger
	Metrics *metrics.Metrics

	// Doses nil => servicio sobre repos in-memory (dev/tests).
	Doses       *doses.Service
	Medications medications.Source
	Preferences reminders.PreferenceSource
	// CareTeam habilita a los cuidadores; nil => cada paciente solo ve lo suyo.
	CareTeam doses.CareTeam

	// HorizonDays: rango por defecto de /schedule.
	HorizonDays int

	// DB solo se usa para /health.
	DB *sql.DB
}

func NewRouter(opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Medications == nil {
		opts.Medications = mem.NewMedicationSource()
	}
	if opts.Preferences == nil {
		opts.Preferences = mem.NewPreferenceSource()
	}
	if opts.Doses == nil {
		opts.Doses = doses.NewService(mem.NewDoseRepo(), nil, doses.Config{
			ClockSkew: doses.DefaultClockSkew,
			Logger:    opts.Logger,
			Metrics:   opts.Metrics,
		})
	}

	access := doses.CareTeamAccess{Team: opts.CareTeam}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.AuthContext(opts.AuthVerifier, opts.Logger))
	r.Use(middleware.RequestLog(opts.Logger, opts.Metrics))
	r.Use(middleware.Recover(opts.Logger))

	r.Get("/health", healthHandler(opts.DB))
	r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	// Rutas por módulo
	doses.RegisterRoutes(r, opts.Doses, doses.HandlerOptions{
		Medications: opts.Medications,
		HorizonDays: opts.HorizonDays,
		Access:      access,
	})
	reminders.RegisterRoutes(r, opts.Doses, opts.Medications, opts.Preferences, access)

	return r
}

func healthHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				http.Error(w, "db unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
