// Package paddle is a minimal client for the payment provider's REST API:
// customer lookup and lifecycle plus customer portal sessions. Calls are
// guarded by a circuit breaker so a provider outage fails fast instead of
// tying up request handlers.
package paddle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	dErrors "orgkit/pkg/domain-errors"
	"orgkit/pkg/platform/circuit"
)

var tracer = otel.Tracer("orgkit/billing/paddle")

// Customer status values used by the provider.
const (
	CustomerActive   = "active"
	CustomerArchived = "archived"
)

// Customer is the provider's customer representation.
type Customer struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	Status           string `json:"status"`
	MarketingConsent bool   `json:"marketing_consent"`
}

// Client talks to the provider API with bearer auth.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *circuit.Breaker
	logger     *slog.Logger
}

// Option configures the client.
type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) {
		if logger != nil {
			cl.logger = logger
		}
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(cl *Client) {
		if b != nil {
			cl.breaker = b
		}
	}
}

// NewClient constructs a provider client for the given API base URL and key.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		breaker:    circuit.New("paddle"),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListCustomersByEmail returns provider customers matching the email in any of
// the given statuses.
func (c *Client) ListCustomersByEmail(ctx context.Context, email string, statuses ...string) ([]Customer, error) {
	ctx, span := tracer.Start(ctx, "paddle.customers.list")
	defer span.End()

	query := url.Values{}
	query.Set("email", email)
	if len(statuses) > 0 {
		query.Set("status", strings.Join(statuses, ","))
	}

	var resp struct {
		Data []Customer `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/customers?"+query.Encode(), nil, &resp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list customers failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("paddle.customers.count", len(resp.Data)))
	return resp.Data, nil
}

// CreateCustomer registers a new customer for the email.
func (c *Client) CreateCustomer(ctx context.Context, email string) (*Customer, error) {
	ctx, span := tracer.Start(ctx, "paddle.customers.create")
	defer span.End()

	body := map[string]string{"email": email}
	var resp struct {
		Data Customer `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/customers", body, &resp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create customer failed")
		return nil, err
	}
	return &resp.Data, nil
}

// SetCustomerStatus patches a customer's status, used to reactivate archived
// customers before opening a portal session.
func (c *Client) SetCustomerStatus(ctx context.Context, customerID, status string) (*Customer, error) {
	ctx, span := tracer.Start(ctx, "paddle.customers.update_status")
	defer span.End()
	span.SetAttributes(attribute.String("paddle.customer.status", status))

	body := map[string]string{"status": status}
	var resp struct {
		Data Customer `json:"data"`
	}
	if err := c.do(ctx, http.MethodPatch, "/customers/"+url.PathEscape(customerID), body, &resp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update customer failed")
		return nil, err
	}
	return &resp.Data, nil
}

// CreatePortalSession opens a customer portal session and returns its URL.
func (c *Client) CreatePortalSession(ctx context.Context, customerID string) (string, error) {
	ctx, span := tracer.Start(ctx, "paddle.portal_session.create")
	defer span.End()

	var resp struct {
		Data struct {
			URLs struct {
				General struct {
					Overview string `json:"overview"`
				} `json:"general"`
			} `json:"urls"`
		} `json:"data"`
	}
	path := "/customers/" + url.PathEscape(customerID) + "/portal-sessions"
	if err := c.do(ctx, http.MethodPost, path, struct{}{}, &resp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create portal session failed")
		return "", err
	}
	if resp.Data.URLs.General.Overview == "" {
		return "", dErrors.New(dErrors.CodeInternal, "portal session response missing url")
	}
	return resp.Data.URLs.General.Overview, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if !c.breaker.Allow() {
		return dErrors.New(dErrors.CodeUnavailable, "billing provider circuit open")
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "encode provider request")
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "build provider request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordFailure(ctx, err)
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "billing provider unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		c.recordFailure(ctx, fmt.Errorf("provider status %d", resp.StatusCode))
		return dErrors.New(dErrors.CodeUnavailable, fmt.Sprintf("billing provider error (%d)", resp.StatusCode))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		// Client-side errors do not trip the breaker.
		return dErrors.New(dErrors.CodeInternal, fmt.Sprintf("billing provider rejected request (%d)", resp.StatusCode))
	}

	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.InfoContext(ctx, "billing provider circuit closed", "breaker", c.breaker.Name())
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "decode provider response")
	}
	return nil
}

func (c *Client) recordFailure(ctx context.Context, err error) {
	_, change := c.breaker.RecordFailure()
	if change.Opened {
		c.logger.WarnContext(ctx, "billing provider circuit opened",
			"breaker", c.breaker.Name(),
			"error", err,
		)
	}
}
