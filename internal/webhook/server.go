// Package webhook receives update pushes from the Telegram Bot API. The
// receiver acknowledges every delivery immediately and hands the payload to a
// detached processor: a slow or failed acknowledgement makes Telegram retry
// the delivery, which only multiplies duplicate work downstream.
package webhook

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mymmrac/telego"
)

// UpdateProcessor consumes acknowledged updates.
type UpdateProcessor interface {
	Process(ctx context.Context, update telego.Update)
}

// Server is the webhook HTTP endpoint.
type Server struct {
	token     string
	processor UpdateProcessor
	server    *http.Server
}

// NewServer creates the webhook server listening on addr. The webhook path
// embeds the bot token, the standard way to keep the endpoint unguessable.
func NewServer(addr, token string, processor UpdateProcessor) *Server {
	s := &Server{
		token:     token,
		processor: processor,
	}

	r := chi.NewRouter()
	r.Get("/health", s.handleHealth)
	r.Post("/webhook/{token}", s.handleWebhook)

	s.server = &http.Server{Addr: addr, Handler: r}
	return s
}

// WebhookPath returns the path Telegram must be pointed at.
func (s *Server) WebhookPath() string {
	return "/webhook/" + s.token
}

// Start runs the HTTP server until Shutdown. It returns http.ErrServerClosed
// after a clean shutdown.
func (s *Server) Start() error {
	log.Printf("[Webhook] Listening on %s", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleWebhook acknowledges the delivery and detaches processing. Nothing
// after the acknowledgement can be reported back to Telegram, so processing
// failures are logged by the processor instead.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "token") != s.token {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	var update telego.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		// Acknowledge anyway: a payload that does not decode now will not
		// decode on redelivery either.
		log.Printf("[Webhook] Failed to decode update: %v", err)
		w.WriteHeader(http.StatusOK)
		return
	}

	w.WriteHeader(http.StatusOK)

	// The request context dies with this handler; processing gets its own.
	go s.processor.Process(context.Background(), update)
}
