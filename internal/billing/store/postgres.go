package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"orgkit/internal/billing/models"
	id "orgkit/pkg/domain"
	"orgkit/pkg/platform/sentinel"
	"orgkit/pkg/platform/tx"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func querier(ctx context.Context, db *sql.DB) execer {
	if sqlTx, ok := tx.From(ctx); ok {
		return sqlTx
	}
	return db
}

// PostgresBillingAdmins persists the org-to-billing-email assignment.
type PostgresBillingAdmins struct {
	db *sql.DB
}

func NewPostgresBillingAdmins(db *sql.DB) *PostgresBillingAdmins {
	return &PostgresBillingAdmins{db: db}
}

func (s *PostgresBillingAdmins) Set(ctx context.Context, orgID id.OrgID, email string) error {
	query := `
		INSERT INTO billing_admins (org_id, email)
		VALUES ($1, $2)
		ON CONFLICT (org_id) DO UPDATE SET email = EXCLUDED.email
	`
	_, err := querier(ctx, s.db).ExecContext(ctx, query, int64(orgID), email)
	if err != nil {
		return fmt.Errorf("set billing admin: %w", err)
	}
	return nil
}

func (s *PostgresBillingAdmins) Get(ctx context.Context, orgID id.OrgID) (string, error) {
	var email string
	err := querier(ctx, s.db).
		QueryRowContext(ctx, `SELECT email FROM billing_admins WHERE org_id = $1`, int64(orgID)).
		Scan(&email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", sentinel.ErrNotFound
		}
		return "", fmt.Errorf("get billing admin: %w", err)
	}
	return email, nil
}

// PostgresCustomers persists provider customer mirrors.
type PostgresCustomers struct {
	db *sql.DB
}

func NewPostgresCustomers(db *sql.DB) *PostgresCustomers {
	return &PostgresCustomers{db: db}
}

func (s *PostgresCustomers) Upsert(ctx context.Context, c *models.Customer) error {
	query := `
		INSERT INTO billing_customers (customer_id, email, marketing_consent, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (customer_id) DO UPDATE SET
			email             = EXCLUDED.email,
			marketing_consent = EXCLUDED.marketing_consent,
			updated_at        = EXCLUDED.updated_at
	`
	_, err := querier(ctx, s.db).
		ExecContext(ctx, query, c.CustomerID, c.Email, c.MarketingConsent, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert customer: %w", err)
	}
	return nil
}

func (s *PostgresCustomers) FindByID(ctx context.Context, customerID string) (*models.Customer, error) {
	query := `
		SELECT customer_id, email, marketing_consent, created_at, updated_at
		FROM billing_customers
		WHERE customer_id = $1
	`
	var c models.Customer
	err := querier(ctx, s.db).
		QueryRowContext(ctx, query, customerID).
		Scan(&c.CustomerID, &c.Email, &c.MarketingConsent, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find customer: %w", err)
	}
	return &c, nil
}

// PostgresSubscriptions persists provider subscription mirrors.
type PostgresSubscriptions struct {
	db *sql.DB
}

func NewPostgresSubscriptions(db *sql.DB) *PostgresSubscriptions {
	return &PostgresSubscriptions{db: db}
}

func (s *PostgresSubscriptions) Upsert(ctx context.Context, sub *models.Subscription) error {
	query := `
		INSERT INTO billing_subscriptions
			(subscription_id, status, price_id, product_id, scheduled_change, customer_id, org_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (subscription_id) DO UPDATE SET
			status           = EXCLUDED.status,
			price_id         = EXCLUDED.price_id,
			product_id       = EXCLUDED.product_id,
			scheduled_change = EXCLUDED.scheduled_change,
			customer_id      = EXCLUDED.customer_id,
			org_id           = EXCLUDED.org_id,
			updated_at       = EXCLUDED.updated_at
	`
	var orgID any
	if sub.OrgID != nil {
		orgID = int64(*sub.OrgID)
	}
	_, err := querier(ctx, s.db).ExecContext(ctx, query,
		sub.SubscriptionID, sub.Status, sub.PriceID, sub.ProductID,
		sub.ScheduledChange, sub.CustomerID, orgID, sub.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

func (s *PostgresSubscriptions) FindByID(ctx context.Context, subscriptionID string) (*models.Subscription, error) {
	query := selectSubscription + ` WHERE subscription_id = $1`
	return s.findOne(ctx, query, subscriptionID)
}

func (s *PostgresSubscriptions) FindByOrg(ctx context.Context, orgID id.OrgID) (*models.Subscription, error) {
	query := selectSubscription + ` WHERE org_id = $1 ORDER BY updated_at DESC LIMIT 1`
	return s.findOne(ctx, query, int64(orgID))
}

const selectSubscription = `
	SELECT subscription_id, status, price_id, product_id, scheduled_change, customer_id, org_id, created_at, updated_at
	FROM billing_subscriptions
`

func (s *PostgresSubscriptions) findOne(ctx context.Context, query string, arg any) (*models.Subscription, error) {
	var (
		sub     models.Subscription
		priceID sql.NullString
		prodID  sql.NullString
		sched   sql.NullTime
		orgID   sql.NullInt64
	)
	err := querier(ctx, s.db).QueryRowContext(ctx, query, arg).Scan(
		&sub.SubscriptionID, &sub.Status, &priceID, &prodID, &sched,
		&sub.CustomerID, &orgID, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find subscription: %w", err)
	}
	sub.PriceID = priceID.String
	sub.ProductID = prodID.String
	if sched.Valid {
		t := sched.Time
		sub.ScheduledChange = &t
	}
	if orgID.Valid {
		o := id.OrgID(orgID.Int64)
		sub.OrgID = &o
	}
	return &sub, nil
}

// PostgresGrants persists product grants as an append-only log.
type PostgresGrants struct {
	db *sql.DB
}

func NewPostgresGrants(db *sql.DB) *PostgresGrants {
	return &PostgresGrants{db: db}
}

// InsertBatch appends one grant row per entry in a single round trip.
func (s *PostgresGrants) InsertBatch(ctx context.Context, grants []models.ProductGrant) error {
	if len(grants) == 0 {
		return nil
	}

	customerIDs := make([]string, len(grants))
	productIDs := make([]string, len(grants))
	priceIDs := make([]string, len(grants))
	for i, g := range grants {
		customerIDs[i] = g.CustomerID
		productIDs[i] = g.ProductID
		priceIDs[i] = g.PriceID
	}

	query := `
		INSERT INTO product_grants (customer_id, product_id, price_id)
		SELECT unnest($1::text[]), unnest($2::text[]), unnest($3::text[])
	`
	_, err := querier(ctx, s.db).ExecContext(ctx, query,
		pq.Array(customerIDs), pq.Array(productIDs), pq.Array(priceIDs))
	if err != nil {
		return fmt.Errorf("insert grants batch: %w", err)
	}
	return nil
}

func (s *PostgresGrants) ListForCustomer(ctx context.Context, customerID string) ([]models.ProductGrant, error) {
	query := `
		SELECT id, customer_id, product_id, price_id, created_at
		FROM product_grants
		WHERE customer_id = $1
		ORDER BY id
	`
	rows, err := querier(ctx, s.db).QueryContext(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	defer rows.Close()

	var result []models.ProductGrant
	for rows.Next() {
		var g models.ProductGrant
		if err := rows.Scan(&g.ID, &g.CustomerID, &g.ProductID, &g.PriceID, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		result = append(result, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate grants: %w", err)
	}
	return result, nil
}

// PostgresEvents persists the webhook audit log.
type PostgresEvents struct {
	db *sql.DB
}

func NewPostgresEvents(db *sql.DB) *PostgresEvents {
	return &PostgresEvents{db: db}
}

func (s *PostgresEvents) Append(ctx context.Context, event *models.RawEvent) error {
	query := `
		INSERT INTO webhook_events (event_type, payload)
		VALUES ($1, $2)
		RETURNING id
	`
	err := querier(ctx, s.db).
		QueryRowContext(ctx, query, event.EventType, event.Payload).
		Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("append webhook event: %w", err)
	}
	return nil
}
