package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"orgkit/internal/billing/models"
	id "orgkit/pkg/domain"
	dErrors "orgkit/pkg/domain-errors"
	"orgkit/pkg/platform/sentinel"
)

// StatusNone is reported when an organization has no subscription on record.
const StatusNone = "none"

// SubscriptionSummary is the read model returned to clients.
type SubscriptionSummary struct {
	Status          string     `json:"status"`
	SubscriptionID  string     `json:"subscription_id,omitempty"`
	PriceID         string     `json:"price_id,omitempty"`
	ProductID       string     `json:"product_id,omitempty"`
	ScheduledChange *time.Time `json:"scheduled_change,omitempty"`
}

// SubscriptionStatus returns the organization's current subscription summary,
// served from cache when available. Members only.
func (s *Service) SubscriptionStatus(ctx context.Context, actor id.UserID, orgID id.OrgID) (*SubscriptionSummary, error) {
	if err := s.requireMember(ctx, orgID, actor); err != nil {
		return nil, err
	}
	return s.status(ctx, orgID)
}

// SubscriptionStatusForOrg is the machine variant of SubscriptionStatus: the
// caller has already been authenticated by an organization API key, so there
// is no membership to check.
func (s *Service) SubscriptionStatusForOrg(ctx context.Context, orgID id.OrgID) (*SubscriptionSummary, error) {
	return s.status(ctx, orgID)
}

func (s *Service) status(ctx context.Context, orgID id.OrgID) (*SubscriptionSummary, error) {
	key := statusCacheKey(orgID)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, key); err == nil {
			var summary SubscriptionSummary
			if err := json.Unmarshal(cached, &summary); err == nil {
				if s.metrics != nil {
					s.metrics.IncrementStatusCacheHit()
				}
				return &summary, nil
			}
		}
		if s.metrics != nil {
			s.metrics.IncrementStatusCacheMiss()
		}
	}

	summary, err := s.loadStatus(ctx, orgID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if buf, err := json.Marshal(summary); err == nil {
			if err := s.cache.Set(ctx, key, buf, s.cacheTTL); err != nil {
				s.logger.WarnContext(ctx, "subscription status cache write failed",
					"organisation_id", orgID,
					"error", err,
				)
			}
		}
	}
	return summary, nil
}

func (s *Service) loadStatus(ctx context.Context, orgID id.OrgID) (*SubscriptionSummary, error) {
	sub, err := s.subs.FindByOrg(ctx, orgID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return &SubscriptionSummary{Status: StatusNone}, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load subscription")
	}
	return summarize(sub), nil
}

func summarize(sub *models.Subscription) *SubscriptionSummary {
	return &SubscriptionSummary{
		Status:          sub.Status,
		SubscriptionID:  sub.SubscriptionID,
		PriceID:         sub.PriceID,
		ProductID:       sub.ProductID,
		ScheduledChange: sub.ScheduledChange,
	}
}

func statusCacheKey(orgID id.OrgID) string {
	return fmt.Sprintf("billing:status:%d", orgID.Int64())
}
