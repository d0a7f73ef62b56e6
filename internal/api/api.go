// Package api exposes the inbound HTTP surface: the WhatsApp webhook
// (verification GET plus message POST) and a health endpoint. Inbound
// messages are enqueued, not processed inline, so the webhook stays fast
// and delivery ordering is handled by the queue consumer.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/augustodasneves/supportagent/internal/models"
)

// DefaultAddr is the listen address when none is configured.
const DefaultAddr = ":8080"

// Enqueuer pushes an inbound message onto the processing queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, msg models.InboundMessage) error
}

// Server is the webhook HTTP server.
type Server struct {
	enqueuer    Enqueuer
	verifyToken string
	addr        string
}

// Option configures a Server.
type Option func(*Server)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(s *Server) { s.addr = addr }
}

// WithVerifyToken sets the token expected on webhook verification.
func WithVerifyToken(token string) Option {
	return func(s *Server) { s.verifyToken = token }
}

// NewServer creates the webhook server.
func NewServer(enqueuer Enqueuer, opts ...Option) *Server {
	s := &Server{enqueuer: enqueuer, addr: DefaultAddr}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/whatsapp/webhook", s.webhookHandler)
	mux.HandleFunc("/health", s.healthHandler)
	return mux
}

// Run serves until the context ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Handler()}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.verifyWebhook(w, r)
	case http.MethodPost:
		s.receiveWebhook(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// verifyWebhook answers the channel's subscription handshake by echoing the
// challenge when the verify token matches.
func (s *Server) verifyWebhook(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	mode := query.Get("hub.mode")
	token := query.Get("hub.verify_token")
	challenge := query.Get("hub.challenge")

	if mode != "subscribe" || token != s.verifyToken {
		slog.Warn("API webhook verification rejected", "mode", mode)
		w.WriteHeader(http.StatusForbidden)
		return
	}

	slog.Info("API webhook verified")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(challenge))
}

// webhookPayload mirrors the channel's nested delivery structure down to the
// fields the flow needs.
type webhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []struct {
					From string `json:"from"`
					Text struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// receiveWebhook enqueues every text message in the delivery. The channel
// gets a 200 even when individual messages are unusable; redelivery of a
// whole batch would only duplicate the good ones.
func (s *Server) receiveWebhook(w http.ResponseWriter, r *http.Request) {
	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		slog.Warn("API webhook body malformed", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	now := time.Now().UTC()
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				inbound := models.InboundMessage{From: msg.From, Content: msg.Text.Body, ReceivedAt: now}
				if err := inbound.Validate(); err != nil {
					slog.Warn("API webhook message skipped", "error", err)
					continue
				}
				if err := s.enqueuer.Enqueue(r.Context(), inbound); err != nil {
					slog.Error("API webhook enqueue failed", "error", err)
				}
			}
		}
	}

	w.WriteHeader(http.StatusOK)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
