package server

import (
	"github.com/go-chi/chi/v5"
)

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	r := s.router

	// Agent evaluation and usage
	r.Route("/agent/{agentID}", func(r chi.Router) {
		r.Post("/evaluate", s.evaluateAction)
		r.Post("/actions", s.performAction)
		r.Get("/usage", s.getUsage)
		r.Get("/permissions", s.getPermissions)
		r.Put("/permissions", s.updatePermissions)
	})

	// Approval callbacks (notification sink)
	r.Route("/approval", func(r chi.Router) {
		r.Get("/pending", s.listPendingApprovals)
		r.Get("/{requestID}", s.getApproval)
		r.Post("/{requestID}/respond", s.respondApproval)
	})

	// Documents
	r.Route("/document", func(r chi.Router) {
		r.Post("/", s.createDocument)
		r.Route("/{docID}", func(r chi.Router) {
			r.Get("/", s.getDocument)
			r.Post("/change", s.submitChange)
			r.Post("/revert", s.revertDocument)
			r.Get("/snapshots", s.listSnapshots)
		})
	})

	// Event streaming (SSE)
	r.Get("/event", s.documentEvents)
	r.Get("/global/event", s.globalEvents)

	r.Get("/health", s.health)
}
