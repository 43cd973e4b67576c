package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"orgkit/internal/billing/paddle"
	id "orgkit/pkg/domain"
	dErrors "orgkit/pkg/domain-errors"
	"orgkit/pkg/platform/sentinel"
	liststrings "orgkit/pkg/platform/strings"
	"orgkit/pkg/requestcontext"
)

var tracer = otel.Tracer("orgkit/billing")

// CustomerPortalSession resolves the organization's billing admin to a
// provider customer and opens a portal session, returning its URL.
//
// An archived customer with a matching email is reactivated; if no customer
// exists one is created. When customer preparation succeeds but the session
// call fails, the customer change is left in place; the provider treats both
// as idempotent enough for a retry from the client.
func (s *Service) CustomerPortalSession(ctx context.Context, orgID id.OrgID) (string, error) {
	ctx, span := tracer.Start(ctx, "billing.portal_session")
	defer span.End()
	span.SetAttributes(attribute.Int64("organisation.id", orgID.Int64()))

	email, err := s.admins.Get(ctx, orgID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.New(dErrors.CodeNotFound, "no billing admin configured for organisation")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load billing admin")
	}

	customer, err := s.resolveCustomer(ctx, email)
	if err != nil {
		return "", err
	}

	url, err := s.provider.CreatePortalSession(ctx, customer.ID)
	if err != nil {
		s.logger.ErrorContext(ctx, "portal session creation failed",
			"request_id", requestcontext.RequestID(ctx),
			"organisation_id", orgID,
			"customer_id", customer.ID,
			"error", err,
		)
		return "", err
	}

	if s.metrics != nil {
		s.metrics.IncrementPortalSessions()
	}
	s.logger.InfoContext(ctx, "portal session created",
		"request_id", requestcontext.RequestID(ctx),
		"organisation_id", orgID,
		"customer_id", customer.ID,
	)
	return url, nil
}

// resolveCustomer finds the provider customer for the email, reactivating an
// archived match or creating a fresh customer when none exists.
func (s *Service) resolveCustomer(ctx context.Context, email string) (*paddle.Customer, error) {
	customers, err := s.provider.ListCustomersByEmail(ctx, email,
		paddle.CustomerActive, paddle.CustomerArchived)
	if err != nil {
		return nil, err
	}

	var match *paddle.Customer
	for i := range customers {
		if liststrings.EqualFold(customers[i].Email, email) {
			match = &customers[i]
			break
		}
	}

	switch {
	case match == nil:
		created, err := s.provider.CreateCustomer(ctx, email)
		if err != nil {
			return nil, err
		}
		if s.metrics != nil {
			s.metrics.IncrementCustomersCreated()
		}
		return created, nil

	case match.Status == paddle.CustomerArchived:
		reactivated, err := s.provider.SetCustomerStatus(ctx, match.ID, paddle.CustomerActive)
		if err != nil {
			return nil, err
		}
		if s.metrics != nil {
			s.metrics.IncrementCustomersReactivated()
		}
		return reactivated, nil

	default:
		return match, nil
	}
}
