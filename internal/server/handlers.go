package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tiempoactualizado/mail-assistant/internal/middleware"
	"github.com/tiempoactualizado/mail-assistant/pkg/httpmiddleware"
	"github.com/tiempoactualizado/mail-assistant/pkg/logger"
)

const (
	// chatIdentity keys the single shared conversation behind POST /chat.
	chatIdentity = "chat"

	// EmptyMessageReply is returned when the chat request carries no text.
	EmptyMessageReply = "Por favor escribe algo."
)

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

type processEmailsResponse struct {
	Processed []string `json:"processed"`
	Count     int      `json:"count"`
	Error     string   `json:"error,omitempty"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

// routes builds the router with middleware and all HTTP endpoints.
func (s *Server) routes() chi.Router {
	router := chi.NewRouter()

	mwConfig := httpmiddleware.DefaultConfig()
	mwConfig.Logger = s.log
	mwConfig.EnableLogging = true
	// Panic recovery is handled below with structured logging.
	mwConfig.EnableRecovery = false
	httpmiddleware.ApplyToRouter(router, mwConfig)

	recoveryConfig := middleware.DefaultRecoveryConfig()
	recoveryConfig.Logger = s.log
	router.Use(middleware.Recovery(recoveryConfig))

	if s.cfg.Metrics.EnableHttpMetrics {
		router.Use(s.metrics.HTTPMiddleware)
	}

	router.Post("/chat", s.handleChat)
	router.Get("/process_emails", s.handleProcessEmails)
	router.Get("/health", s.handleHealth)
	router.Handle("/metrics", s.metrics.Handler())

	return router
}

// handleChat answers one turn of the shared web conversation. Internal
// failures are already folded into the reply text, so this always responds
// 200 with a reply.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.log.Warn("Malformed chat request", logger.ErrorField(err))
		s.writeJSON(w, chatResponse{Reply: EmptyMessageReply})
		return
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		s.writeJSON(w, chatResponse{Reply: EmptyMessageReply})
		return
	}

	reply := s.replier.Reply(r.Context(), chatIdentity, message)
	s.writeJSON(w, chatResponse{Reply: reply})
}

// handleProcessEmails runs one inbox poll. Failures are embedded in the
// response body rather than surfaced as a 5xx.
func (s *Server) handleProcessEmails(w http.ResponseWriter, r *http.Request) {
	if s.processor == nil {
		s.writeJSON(w, processEmailsResponse{
			Processed: []string{},
			Error:     "email processing is not configured",
		})
		return
	}

	processed, err := s.processor.ProcessInbox(r.Context())
	if err != nil {
		s.log.Error("Inbox poll failed", logger.ErrorField(err))
		s.writeJSON(w, processEmailsResponse{
			Processed: []string{},
			Error:     err.Error(),
		})
		return
	}

	s.writeJSON(w, processEmailsResponse{
		Processed: processed,
		Count:     len(processed),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, healthResponse{
		Status:  "ok",
		Service: s.cfg.ServiceName,
		Version: s.cfg.Version,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("Failed to encode response", logger.ErrorField(err))
	}
}
