package containers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresContainer wraps a running postgres container and an open pool with
// the orgkit schema applied.
type PostgresContainer struct {
	Container *tcpostgres.PostgresContainer
	DB        *sql.DB
}

// schema mirrors the production migrations closely enough for store tests.
const schema = `
CREATE TABLE IF NOT EXISTS organizations (
	id           BIGSERIAL PRIMARY KEY,
	name         TEXT NOT NULL,
	external_id  UUID NOT NULL UNIQUE,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS org_memberships (
	id         BIGSERIAL PRIMARY KEY,
	org_id     BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
	user_id    UUID NOT NULL,
	role       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (org_id, user_id)
);

CREATE TABLE IF NOT EXISTS system_settings (
	id                      INT PRIMARY KEY DEFAULT 1,
	organization_limit      INT NOT NULL DEFAULT 3,
	user_can_create_org     BOOLEAN NOT NULL DEFAULT TRUE,
	CHECK (id = 1)
);
INSERT INTO system_settings (id) VALUES (1) ON CONFLICT (id) DO NOTHING;

CREATE TABLE IF NOT EXISTS invite_codes (
	user_id    UUID PRIMARY KEY,
	code       TEXT NOT NULL UNIQUE,
	enabled    BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS api_keys (
	id         BIGSERIAL PRIMARY KEY,
	org_id     BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
	prefix     TEXT NOT NULL,
	key_hash   TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS user_profiles (
	user_id UUID PRIMARY KEY,
	email   TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS billing_admins (
	org_id BIGINT PRIMARY KEY REFERENCES organizations(id) ON DELETE CASCADE,
	email  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS billing_customers (
	customer_id       TEXT PRIMARY KEY,
	email             TEXT NOT NULL,
	marketing_consent BOOLEAN NOT NULL DEFAULT FALSE,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS billing_subscriptions (
	subscription_id  TEXT PRIMARY KEY,
	status           TEXT NOT NULL,
	price_id         TEXT,
	product_id       TEXT,
	scheduled_change TIMESTAMPTZ,
	customer_id      TEXT NOT NULL,
	org_id           BIGINT,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS product_grants (
	id          BIGSERIAL PRIMARY KEY,
	customer_id TEXT NOT NULL,
	product_id  TEXT NOT NULL,
	price_id    TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS webhook_events (
	id          BIGSERIAL PRIMARY KEY,
	event_type  TEXT NOT NULL,
	payload     JSONB NOT NULL,
	received_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

func startPostgres() (*PostgresContainer, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("orgkit_test"),
		tcpostgres.WithUsername("orgkit"),
		tcpostgres.WithPassword("orgkit"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("run postgres container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, fmt.Errorf("postgres connection string: %w", err)
	}

	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &PostgresContainer{Container: container, DB: db}, nil
}

// TruncateTables empties the given tables between tests and resets their
// sequences.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	stmt := fmt.Sprintf("TRUNCATE %s RESTART IDENTITY CASCADE", strings.Join(tables, ", "))
	if _, err := p.DB.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("truncate tables: %w", err)
	}
	return nil
}
