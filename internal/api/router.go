package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimid "github.com/go-chi/chi/v5/middleware"

	"github.com/uml-studio/engine/internal/api/handlers"
	mw "github.com/uml-studio/engine/internal/api/middleware"
)

type Dependencies struct {
	Verifier        mw.TokenVerifier
	AuthHandler     *handlers.AuthHandler
	ProjectsHandler *handlers.ProjectsHandler
	DiagramHandler  *handlers.DiagramHandler
	HealthHandler   *handlers.HealthHandler
	CORSOrigins     []string
	// RateLimiter is optional; nil disables rate limiting.
	RateLimiter *mw.RateLimiter
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()

	// Built-in middleware
	r.Use(chimid.RealIP)
	r.Use(mw.RequestID)
	r.Use(mw.Recovery)
	r.Use(mw.Logging)
	r.Use(mw.CORS(dep.CORSOrigins))
	if dep.RateLimiter != nil {
		r.Use(dep.RateLimiter.Handler)
	}
	r.Use(chimid.Compress(5))

	// Health endpoints
	r.Get("/healthz", dep.HealthHandler.Liveness)
	r.Get("/readyz", dep.HealthHandler.Readiness)

	r.Route("/api/v1", func(api chi.Router) {
		api.Route("/auth", func(ar chi.Router) {
			ar.Post("/register", dep.AuthHandler.Register)
			ar.Post("/login", dep.AuthHandler.Login)

			ar.Group(func(protected chi.Router) {
				protected.Use(mw.Auth(dep.Verifier))
				protected.Get("/me", dep.AuthHandler.Me)
				protected.Post("/logout", dep.AuthHandler.Logout)
			})
		})

		// Protected routes
		api.Group(func(protected chi.Router) {
			protected.Use(mw.Auth(dep.Verifier))

			protected.Route("/projects", func(pr chi.Router) {
				pr.Get("/", dep.ProjectsHandler.List)
				pr.Post("/", dep.ProjectsHandler.Create)
				pr.Get("/{id}", dep.ProjectsHandler.Get)
				pr.Post("/{id}/save", dep.ProjectsHandler.Save)
				pr.Delete("/{id}", dep.ProjectsHandler.Delete)
			})

			protected.Get("/classes", dep.DiagramHandler.Classes)
			protected.Get("/relationships", dep.DiagramHandler.Relationships)
		})
	})

	return r
}
