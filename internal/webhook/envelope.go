// Package webhook processes verified payment provider webhooks: it mirrors
// subscriptions and customers, appends product grants for completed
// transactions, and records every event in the audit log.
package webhook

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	id "orgkit/pkg/domain"
)

// Event types the dispatcher acts on. Anything else is audit-logged only.
const (
	EventSubscriptionCreated  = "subscription.created"
	EventSubscriptionUpdated  = "subscription.updated"
	EventCustomerCreated      = "customer.created"
	EventCustomerUpdated      = "customer.updated"
	EventTransactionCompleted = "transaction.completed"
)

// Envelope is the outer webhook shape.
type Envelope struct {
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
}

// ParseEnvelope decodes the raw body into an envelope. The event type is
// required; the data payload is decoded lazily per event type.
func ParseEnvelope(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode webhook envelope: %w", err)
	}
	if env.EventType == "" {
		return nil, fmt.Errorf("webhook envelope missing event_type")
	}
	return &env, nil
}

// subscriptionData is the provider's subscription payload.
type subscriptionData struct {
	ID              string           `json:"id"`
	Status          string           `json:"status"`
	CustomerID      string           `json:"customer_id"`
	ScheduledChange *scheduledChange `json:"scheduled_change"`
	CustomData      customData       `json:"custom_data"`
	Items           []lineItem       `json:"items"`
}

type scheduledChange struct {
	EffectiveAt time.Time `json:"effective_at"`
}

type customData struct {
	OrgID *id.OrgID
}

// UnmarshalJSON accepts org_id as either a JSON number or a numeric string;
// checkout custom data arrives in both forms.
func (c *customData) UnmarshalJSON(data []byte) error {
	var raw struct {
		OrgID json.RawMessage `json:"org_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw.OrgID) == 0 || string(raw.OrgID) == "null" {
		return nil
	}

	trimmed := string(raw.OrgID)
	if len(trimmed) >= 2 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(raw.OrgID, &s); err != nil {
			return err
		}
		trimmed = s
	}
	n, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil || n <= 0 {
		// Unusable org references are dropped, not fatal.
		return nil
	}
	orgID := id.OrgID(n)
	c.OrgID = &orgID
	return nil
}

type lineItem struct {
	Price struct {
		ID        string `json:"id"`
		ProductID string `json:"product_id"`
	} `json:"price"`
}

// customerData is the provider's customer payload.
type customerData struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	MarketingConsent bool   `json:"marketing_consent"`
}

// transactionData is the provider's completed transaction payload.
type transactionData struct {
	CustomerID string     `json:"customer_id"`
	Items      []lineItem `json:"items"`
}
