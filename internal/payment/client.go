package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fjod/pawmart/internal/circuitbreaker"
	"github.com/fjod/pawmart/internal/domain"
)

type LineItem struct {
	Name       string `json:"name"`
	UnitAmount int64  `json:"unit_amount"`
	Quantity   int    `json:"quantity"`
}

type SessionRequest struct {
	LineItems  []LineItem        `json:"line_items"`
	Currency   string            `json:"currency"`
	SuccessURL string            `json:"success_url"`
	CancelURL  string            `json:"cancel_url"`
	Metadata   map[string]string `json:"metadata"`
}

// Client creates hosted checkout sessions at the payment gateway.
type Client struct {
	baseURL    string
	apiKey     string
	successURL string
	cancelURL  string
	httpClient *http.Client
	breaker    *circuitbreaker.Breaker[*Session]
}

type ClientConfig struct {
	BaseURL    string
	APIKey     string
	SuccessURL string
	CancelURL  string
	Timeout    time.Duration
}

func NewClient(cfg ClientConfig, log *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: circuitbreaker.New[*Session](circuitbreaker.DefaultSettings("payment-gateway"), log),
	}
}

// NewSessionRequest prices every snapshot line and attaches the metadata the webhook needs
// to finalize the order.
func (c *Client) NewSessionRequest(userID string, shipping domain.ShippingInfo, snapshot *domain.CartSnapshot) (SessionRequest, error) {
	shippingJSON, err := json.Marshal(shipping)
	if err != nil {
		return SessionRequest{}, fmt.Errorf("marshal shipping: %w", err)
	}

	items := make([]LineItem, len(snapshot.Items))
	for i, item := range snapshot.Items {
		items[i] = LineItem{
			Name:       item.ProductName,
			UnitAmount: ToMinorUnits(item.UnitPrice),
			Quantity:   item.Quantity,
		}
	}

	return SessionRequest{
		LineItems:  items,
		Currency:   snapshot.Currency,
		SuccessURL: c.successURL,
		CancelURL:  c.cancelURL,
		Metadata: map[string]string{
			MetadataUserID:   userID,
			MetadataShipping: string(shippingJSON),
		},
	}, nil
}

// CreateSession fails with ErrExternalService when the gateway is unreachable, answers with an
// error, or the breaker is open.
func (c *Client) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	session, err := c.breaker.Execute(func() (*Session, error) {
		return c.createSession(ctx, req)
	})
	if err != nil {
		if circuitbreaker.IsOpen(err) {
			return nil, fmt.Errorf("payment gateway unavailable: %v: %w", err, domain.ErrExternalService)
		}
		return nil, err
	}
	return session, nil
}

func (c *Client) createSession(ctx context.Context, req SessionRequest) (*Session, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal session request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/checkout/sessions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("create session: %v: %w", err, domain.ErrExternalService)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read session response: %v: %w", err, domain.ErrExternalService)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("create session: gateway returned %d: %s: %w",
			resp.StatusCode, strings.TrimSpace(string(respBody)), domain.ErrExternalService)
	}

	var session Session
	if err := json.Unmarshal(respBody, &session); err != nil {
		return nil, fmt.Errorf("decode session response: %v: %w", err, domain.ErrExternalService)
	}
	if session.ID == "" || session.URL == "" {
		return nil, fmt.Errorf("gateway returned session without id or url: %w", domain.ErrExternalService)
	}
	return &session, nil
}
