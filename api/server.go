/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address behind a proxy
  3. AccessLog:  zerolog request logging (middleware.go)
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for the frontend

ROUTE GROUPS:
  /health                 Liveness, public
  /api/auth/*             Register and login, public
  everything else /api/*  Requires a bearer token. Company and user come
                          from the token, never from the request body.

SEE ALSO:
  - handlers.go: Handler struct, helpers, error mapping
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/smartgestao/smart-gestao/auth"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(AccessLog(h.Log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		// Public
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
		})

		// Authenticated
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(h.Issuer, h.unauthorized))

			r.Get("/me", h.Me)

			r.Route("/transactions", func(r chi.Router) {
				r.Get("/", h.ListTransactions)
				r.Post("/", h.CreateTransaction)
				r.Get("/{id}", h.GetTransaction)
				r.Put("/{id}", h.UpdateTransaction)
				r.Delete("/{id}", h.DeleteTransaction)
			})

			r.Route("/clients", func(r chi.Router) {
				r.Get("/", h.ListClients)
				r.Post("/", h.CreateClient)
				r.Get("/{id}", h.GetClient)
				r.Put("/{id}", h.UpdateClient)
				r.Delete("/{id}", h.DeleteClient)
			})

			r.Route("/goals", func(r chi.Router) {
				r.Get("/", h.ListGoals)
				r.Post("/", h.CreateGoal)
				r.Get("/{id}", h.GetGoal)
				r.Put("/{id}", h.UpdateGoal)
				r.Delete("/{id}", h.DeleteGoal)
				r.Get("/{id}/progress", h.GoalProgress)
				r.Post("/{id}/reset", h.ResetGoal)
			})

			r.Route("/alerts", func(r chi.Router) {
				r.Get("/", h.ListAlerts)
				r.Post("/{id}/read", h.MarkAlertRead)
				r.Delete("/{id}", h.DeleteAlert)
			})

			r.Get("/audit", h.ListAudit)
			r.Get("/reports/summary", h.Summary)
			r.Get("/ws", h.Websocket)
		})
	})

	return r
}
