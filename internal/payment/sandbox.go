package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Outcome decides whether a sandbox session gets paid.
type Outcome interface {
	Paid() bool
}

// RandomOutcome pays 95% of sessions.
type RandomOutcome struct{}

func (RandomOutcome) Paid() bool {
	return calcPaid(rand.Intn(100))
}

func calcPaid(randomInt int) bool {
	return randomInt < 95
}

// AlwaysPaid is used by tests and local runs that need a deterministic gateway.
type AlwaysPaid struct{}

func (AlwaysPaid) Paid() bool { return true }

// Sandbox is a local stand-in for the hosted payment gateway. It creates sessions and, when a
// session is completed, delivers a signed webhook to WebhookURL.
type Sandbox struct {
	PublicURL     string
	WebhookURL    string
	WebhookSecret string
	APIKey        string
	Outcome       Outcome
	HTTPClient    *http.Client
	Log           *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func (s *Sandbox) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/v1/checkout/sessions", s.createSession)
	r.Post("/v1/checkout/sessions/{id}/complete", s.completeSession)
	return r
}

func (s *Sandbox) createSession(w http.ResponseWriter, r *http.Request) {
	if s.APIKey != "" && r.Header.Get("Authorization") != "Bearer "+s.APIKey {
		http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
		return
	}

	var req SessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.LineItems) == 0 {
		http.Error(w, `{"error":"invalid session request"}`, http.StatusBadRequest)
		return
	}

	var total int64
	for _, item := range req.LineItems {
		total += item.UnitAmount * int64(item.Quantity)
	}

	id := "cs_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	session := &Session{
		ID:          id,
		URL:         strings.TrimRight(s.PublicURL, "/") + "/pay/" + id,
		AmountTotal: total,
		Currency:    req.Currency,
		Metadata:    req.Metadata,
	}

	s.mu.Lock()
	if s.sessions == nil {
		s.sessions = make(map[string]*Session)
	}
	s.sessions[id] = session
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(session)
}

func (s *Sandbox) completeSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	stored, ok := s.sessions[id]
	var session Session
	if ok {
		session = *stored
	}
	s.mu.Unlock()
	if !ok {
		http.Error(w, `{"error":"session not found"}`, http.StatusNotFound)
		return
	}

	eventType := EventCheckoutSessionExpired
	session.PaymentStatus = "unpaid"
	if s.Outcome == nil || s.Outcome.Paid() {
		eventType = EventCheckoutSessionCompleted
		session.PaymentStatus = "paid"
	}

	status, err := s.deliver(r.Context(), eventType, &session)
	if err != nil {
		if s.Log != nil {
			s.Log.Error("webhook delivery failed", slog.String("session_id", id), slog.Any("error", err))
		}
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"session_id":      id,
		"event_type":      eventType,
		"delivery_status": status,
	})
}

func (s *Sandbox) deliver(ctx context.Context, eventType string, session *Session) (int, error) {
	object, err := json.Marshal(session)
	if err != nil {
		return 0, err
	}
	event := Event{ID: "evt_" + strings.ReplaceAll(uuid.NewString(), "-", ""), Type: eventType}
	event.Data.Object = object

	payload, err := json.Marshal(event)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, Sign(payload, s.WebhookSecret, time.Now()))

	client := s.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}
