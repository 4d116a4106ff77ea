package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Dosada05/tournament-engine/handlers"
	"github.com/Dosada05/tournament-engine/metrics"
	"github.com/Dosada05/tournament-engine/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Handlers struct {
	Tournaments *handlers.TournamentHandler
	Enrollments *handlers.EnrollmentHandler
	Generation  *handlers.GenerationHandler
	Matches     *handlers.MatchHandler
	Standings   *handlers.StandingsHandler
	Wallets     *handlers.WalletHandler
	WebSocket   *handlers.WebSocketHandler
}

type Options struct {
	JWTSecret string
	// EnrollLimiter throttles enrollment requests per caller. Nil disables it.
	EnrollLimiter *middleware.RateLimiter
	Metrics       *metrics.Metrics
	// Gatherer backs /metrics. Nil means the default registry.
	Gatherer       prometheus.Gatherer
	AllowedOrigins []string
	Logger         *slog.Logger
}

func SetupRoutes(router chi.Router, h Handlers, opts Options) {
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	router.Use(opts.Metrics.Middleware)

	router.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	authenticate := middleware.Authenticate(opts.JWTSecret, opts.Logger)
	organizers := middleware.RequireRole(middleware.RoleOrganizer, middleware.RoleAdmin)

	if h.WebSocket != nil {
		router.Get("/ws/tournaments/{tournamentID}", h.WebSocket.ServeWs)
	}

	router.Route("/tournaments", func(r chi.Router) {
		r.Get("/{tournamentID}", h.Tournaments.GetByIDHandler)
		r.Get("/{tournamentID}/bracket", h.Generation.BracketHandler)
		r.Get("/{tournamentID}/standings", h.Standings.ListHandler)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Group(func(r chi.Router) {
				r.Use(chiMiddleware.Timeout(30 * time.Second))
				if opts.EnrollLimiter != nil {
					r.Use(opts.EnrollLimiter.HTTPMiddleware)
				}
				r.Post("/{tournamentID}/enrollments", h.Enrollments.EnrollHandler)
			})

			r.With(middleware.RequireRole(middleware.RoleInstructor, middleware.RoleAdmin)).
				Post("/{tournamentID}/accept", h.Tournaments.AcceptHandler)

			r.Group(func(r chi.Router) {
				r.Use(organizers)
				r.Post("/", h.Tournaments.CreateHandler)
				r.Post("/{tournamentID}/submit", h.Tournaments.SubmitHandler)
				r.Post("/{tournamentID}/close", h.Tournaments.CloseHandler)
				r.Post("/{tournamentID}/complete", h.Tournaments.CompleteHandler)
				r.Post("/{tournamentID}/cancel", h.Tournaments.CancelHandler)
				r.Post("/{tournamentID}/generation", h.Generation.StartHandler)
				r.Post("/{tournamentID}/placement", h.Generation.PlacementHandler)
				r.Post("/{tournamentID}/standings/recompute", h.Standings.RecomputeHandler)
			})
		})
	})

	router.Get("/generation-jobs/{jobID}", h.Generation.JobHandler)

	router.Group(func(r chi.Router) {
		r.Use(authenticate)

		r.Delete("/enrollments/{enrollmentID}", h.Enrollments.ReleaseHandler)
		r.Post("/enrollments/{enrollmentID}/withdraw", h.Enrollments.WithdrawHandler)
		r.Post("/matches/{matchID}/outcome", h.Matches.OutcomeHandler)

		r.Get("/wallets/{ownerID}", h.Wallets.GetHandler)
		r.With(middleware.RequireRole(middleware.RoleAdmin)).
			Post("/wallets/{ownerID}/deposit", h.Wallets.DepositHandler)
	})
}
