package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-auth/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	verifyHandler := handlers.NewVerifyHandler(s.engine)
	historyHandler := handlers.NewHistoryHandler(s.history)

	// Health check
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		// Identity proof: passport photo page vs. live selfie
		r.Post("/verify_identity", verifyHandler.VerifyIdentity)

		// Reauthentication against stored embedding history
		r.Post("/verify", verifyHandler.Verify)

		// History
		r.Get("/users/{userID}/history", historyHandler.Summary)
	})
}
