package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"orgkit/internal/billing/models"
	"orgkit/internal/webhook/metrics"
	"orgkit/pkg/requestcontext"
)

var tracer = otel.Tracer("orgkit/webhook")

// SubscriptionStore upserts subscription mirrors.
type SubscriptionStore interface {
	Upsert(ctx context.Context, sub *models.Subscription) error
}

// CustomerStore upserts customer mirrors.
type CustomerStore interface {
	Upsert(ctx context.Context, c *models.Customer) error
}

// GrantStore appends product grants.
type GrantStore interface {
	InsertBatch(ctx context.Context, grants []models.ProductGrant) error
}

// EventStore appends the audit record.
type EventStore interface {
	Append(ctx context.Context, event *models.RawEvent) error
}

// Publisher mirrors verified events to an external stream. Implementations
// must not block; dropped events are acceptable.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload []byte)
}

// StepResult is the outcome of a single processing step.
type StepResult struct {
	Step string
	Err  error
}

// Report collects the outcome of every step taken for one event. Step
// failures are isolated: a failed mirror write never prevents the audit
// append, and vice versa.
type Report struct {
	EventType string
	Steps     []StepResult
}

// Ok reports whether every step succeeded.
func (r *Report) Ok() bool {
	for _, s := range r.Steps {
		if s.Err != nil {
			return false
		}
	}
	return true
}

// Failures returns the failed steps.
func (r *Report) Failures() []StepResult {
	var failed []StepResult
	for _, s := range r.Steps {
		if s.Err != nil {
			failed = append(failed, s)
		}
	}
	return failed
}

func (r *Report) add(step string, err error) {
	r.Steps = append(r.Steps, StepResult{Step: step, Err: err})
}

// Processor dispatches verified webhook events to the billing stores.
type Processor struct {
	subs      SubscriptionStore
	customers CustomerStore
	grants    GrantStore
	events    EventStore

	publisher Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// ProcessorOption configures the processor.
type ProcessorOption func(*Processor)

func WithLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) ProcessorOption {
	return func(p *Processor) {
		p.metrics = m
	}
}

// WithPublisher mirrors processed events to a stream.
func WithPublisher(pub Publisher) ProcessorOption {
	return func(p *Processor) {
		p.publisher = pub
	}
}

func NewProcessor(
	subs SubscriptionStore,
	customers CustomerStore,
	grants GrantStore,
	events EventStore,
	opts ...ProcessorOption,
) *Processor {
	p := &Processor{
		subs:      subs,
		customers: customers,
		grants:    grants,
		events:    events,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process dispatches one verified event. The audit append runs for every
// event type, recognized or not, and is attempted even when the type-specific
// step failed. The report carries each step's outcome; the caller decides
// what to surface.
func (p *Processor) Process(ctx context.Context, env *Envelope, rawBody []byte) *Report {
	ctx, span := tracer.Start(ctx, "webhook.process")
	defer span.End()
	span.SetAttributes(attribute.String("webhook.event_type", env.EventType))

	if p.metrics != nil {
		p.metrics.IncrementReceived(env.EventType)
	}

	report := &Report{EventType: env.EventType}

	switch env.EventType {
	case EventSubscriptionCreated, EventSubscriptionUpdated:
		report.add("subscription_upsert", p.upsertSubscription(ctx, env.Data))
	case EventCustomerCreated, EventCustomerUpdated:
		report.add("customer_upsert", p.upsertCustomer(ctx, env.Data))
	case EventTransactionCompleted:
		report.add("grant_insert", p.insertGrants(ctx, env.Data))
	}

	report.add("audit_append", p.appendAudit(ctx, env.EventType, rawBody))

	for _, failure := range report.Failures() {
		if p.metrics != nil {
			p.metrics.IncrementStepFailure(env.EventType, failure.Step)
		}
		p.logger.ErrorContext(ctx, "webhook step failed",
			"request_id", requestcontext.RequestID(ctx),
			"event_type", env.EventType,
			"step", failure.Step,
			"error", failure.Err,
		)
	}
	if report.Ok() {
		if p.metrics != nil {
			p.metrics.IncrementProcessed(env.EventType)
		}
		if p.publisher != nil {
			p.publisher.Publish(ctx, env.EventType, rawBody)
		}
	}
	return report
}

func (p *Processor) upsertSubscription(ctx context.Context, data json.RawMessage) error {
	var payload subscriptionData
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("decode subscription data: %w", err)
	}
	if payload.ID == "" {
		return fmt.Errorf("subscription data missing id")
	}

	now := requestcontext.Now(ctx)
	sub := &models.Subscription{
		SubscriptionID: payload.ID,
		Status:         payload.Status,
		CustomerID:     payload.CustomerID,
		OrgID:          payload.CustomData.OrgID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if len(payload.Items) > 0 {
		sub.PriceID = payload.Items[0].Price.ID
		sub.ProductID = payload.Items[0].Price.ProductID
	}
	if payload.ScheduledChange != nil && !payload.ScheduledChange.EffectiveAt.IsZero() {
		t := payload.ScheduledChange.EffectiveAt
		sub.ScheduledChange = &t
	}
	return p.subs.Upsert(ctx, sub)
}

func (p *Processor) upsertCustomer(ctx context.Context, data json.RawMessage) error {
	var payload customerData
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("decode customer data: %w", err)
	}
	if payload.ID == "" {
		return fmt.Errorf("customer data missing id")
	}

	now := requestcontext.Now(ctx)
	return p.customers.Upsert(ctx, &models.Customer{
		CustomerID:       payload.ID,
		Email:            payload.Email,
		MarketingConsent: payload.MarketingConsent,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
}

// insertGrants appends one grant per line item. Grants are append-only:
// redelivered transactions append again rather than deduplicating.
func (p *Processor) insertGrants(ctx context.Context, data json.RawMessage) error {
	var payload transactionData
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("decode transaction data: %w", err)
	}

	grants := make([]models.ProductGrant, 0, len(payload.Items))
	for _, item := range payload.Items {
		grants = append(grants, models.ProductGrant{
			CustomerID: payload.CustomerID,
			ProductID:  item.Price.ProductID,
			PriceID:    item.Price.ID,
		})
	}
	return p.grants.InsertBatch(ctx, grants)
}

func (p *Processor) appendAudit(ctx context.Context, eventType string, rawBody []byte) error {
	return p.events.Append(ctx, &models.RawEvent{
		EventType:  eventType,
		Payload:    rawBody,
		ReceivedAt: requestcontext.Now(ctx),
	})
}
