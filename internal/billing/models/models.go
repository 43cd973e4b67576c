// Package models defines billing entities mirrored from the payment provider.
package models

import (
	"time"

	id "orgkit/pkg/domain"
)

// Subscription status values as delivered by the provider. No transition
// validation is applied; the latest webhook wins.
const (
	SubscriptionActive   = "active"
	SubscriptionTrialing = "trialing"
	SubscriptionPaused   = "paused"
	SubscriptionCanceled = "canceled"
)

// BillingAdmin designates the organization member who owns the billing
// relationship. One per organization.
type BillingAdmin struct {
	OrgID id.OrgID `json:"organisation_id"`
	Email string   `json:"email"`
}

// Customer mirrors a provider customer record.
type Customer struct {
	CustomerID       string    `json:"customer_id"`
	Email            string    `json:"email"`
	MarketingConsent bool      `json:"marketing_consent"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Subscription mirrors a provider subscription, keyed by the provider's
// subscription ID. OrgID comes from checkout custom data and may be absent.
type Subscription struct {
	SubscriptionID  string     `json:"subscription_id"`
	Status          string     `json:"status"`
	PriceID         string     `json:"price_id"`
	ProductID       string     `json:"product_id"`
	ScheduledChange *time.Time `json:"scheduled_change,omitempty"`
	CustomerID      string     `json:"customer_id"`
	OrgID           *id.OrgID  `json:"organisation_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ProductGrant records that a completed transaction entitled a customer to a
// product. Rows are append-only; redelivered transactions append again.
type ProductGrant struct {
	ID         int64     `json:"id"`
	CustomerID string    `json:"customer_id"`
	ProductID  string    `json:"product_id"`
	PriceID    string    `json:"price_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// RawEvent is the append-only audit record of every received webhook.
type RawEvent struct {
	ID         int64     `json:"id"`
	EventType  string    `json:"event_type"`
	Payload    []byte    `json:"payload"`
	ReceivedAt time.Time `json:"received_at"`
}
