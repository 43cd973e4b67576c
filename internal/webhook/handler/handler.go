// Package handler exposes the webhook ingress endpoint. The signature header
// is the only authentication on this route.
package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"orgkit/internal/billing/paddle"
	"orgkit/internal/webhook"
	wbmetrics "orgkit/internal/webhook/metrics"
	dErrors "orgkit/pkg/domain-errors"
	"orgkit/pkg/platform/httputil"
	"orgkit/pkg/requestcontext"
)

// maxBodyBytes bounds webhook payload reads.
const maxBodyBytes = 1 << 20

type Handler struct {
	processor *webhook.Processor
	secret    string
	logger    *slog.Logger
	metrics   *wbmetrics.Metrics
}

func New(processor *webhook.Processor, secret string, logger *slog.Logger, metrics *wbmetrics.Metrics) *Handler {
	return &Handler{
		processor: processor,
		secret:    secret,
		logger:    logger,
		metrics:   metrics,
	}
}

// Register mounts the webhook ingress on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/paddle/webhook", h.HandleWebhook)
}

// WebhookResponse acknowledges a processed event.
type WebhookResponse struct {
	Status    string `json:"status"`
	EventName string `json:"eventName"`
}

// HandleWebhook handles POST /paddle/webhook. A missing body, missing header,
// or bad signature is rejected with 400 before any state changes. Once the
// envelope is verified and parsed the response is 200 even when individual
// processing steps failed; failures are logged and counted, and the provider
// is not asked to retry.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.reject(w, r, dErrors.New(dErrors.CodeBadRequest, "failed to read request body"))
		return
	}
	if len(body) == 0 {
		h.reject(w, r, dErrors.New(dErrors.CodeBadRequest, "empty request body"))
		return
	}

	signature := r.Header.Get(paddle.SignatureHeader)
	if signature == "" {
		h.reject(w, r, dErrors.New(dErrors.CodeBadRequest, "missing signature header"))
		return
	}
	if err := paddle.VerifySignature(signature, body, h.secret); err != nil {
		// Signature failures surface as 400 regardless of cause; the caller
		// is the provider, not a browser.
		h.reject(w, r, dErrors.New(dErrors.CodeBadRequest, "invalid webhook signature"))
		return
	}

	env, err := webhook.ParseEnvelope(body)
	if err != nil {
		h.reject(w, r, dErrors.New(dErrors.CodeBadRequest, "malformed webhook payload"))
		return
	}

	report := h.processor.Process(ctx, env, body)
	if !report.Ok() {
		h.logger.WarnContext(ctx, "webhook processed with step failures",
			"request_id", requestcontext.RequestID(ctx),
			"event_type", report.EventType,
			"failed_steps", len(report.Failures()),
		)
	}

	httputil.WriteJSON(w, http.StatusOK, WebhookResponse{
		Status:    "processed",
		EventName: env.EventType,
	})
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request, err error) {
	if h.metrics != nil {
		h.metrics.IncrementRejected()
	}
	h.logger.WarnContext(r.Context(), "webhook rejected",
		"request_id", requestcontext.RequestID(r.Context()),
		"remote_ip", requestcontext.ClientIP(r.Context()),
		"error", err,
	)
	httputil.WriteError(w, err)
}
