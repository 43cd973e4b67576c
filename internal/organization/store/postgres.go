package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"orgkit/internal/organization/models"
	id "orgkit/pkg/domain"
	"orgkit/pkg/platform/sentinel"
	"orgkit/pkg/platform/tx"
)

// execer covers the query surface shared by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// querier returns the transaction carried in ctx when present, otherwise db.
func querier(ctx context.Context, db *sql.DB) execer {
	if sqlTx, ok := tx.From(ctx); ok {
		return sqlTx
	}
	return db
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// PostgresOrganizations persists organizations in PostgreSQL.
type PostgresOrganizations struct {
	db *sql.DB
}

func NewPostgresOrganizations(db *sql.DB) *PostgresOrganizations {
	return &PostgresOrganizations{db: db}
}

func (s *PostgresOrganizations) Create(ctx context.Context, org *models.Organization) error {
	query := `
		INSERT INTO organizations (name, external_id, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	var orgID int64
	err := querier(ctx, s.db).
		QueryRowContext(ctx, query, org.Name, org.ExternalID, org.CreatedAt).
		Scan(&orgID)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert organization: %w", err)
	}
	org.ID = id.OrgID(orgID)
	return nil
}

func (s *PostgresOrganizations) FindByID(ctx context.Context, orgID id.OrgID) (*models.Organization, error) {
	query := `SELECT id, name, external_id, created_at FROM organizations WHERE id = $1`

	var (
		org   models.Organization
		rawID int64
	)
	err := querier(ctx, s.db).
		QueryRowContext(ctx, query, int64(orgID)).
		Scan(&rawID, &org.Name, &org.ExternalID, &org.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find organization: %w", err)
	}
	org.ID = id.OrgID(rawID)
	return &org, nil
}

func (s *PostgresOrganizations) Rename(ctx context.Context, orgID id.OrgID, name string) error {
	result, err := querier(ctx, s.db).
		ExecContext(ctx, `UPDATE organizations SET name = $1 WHERE id = $2`, name, int64(orgID))
	if err != nil {
		return fmt.Errorf("rename organization: %w", err)
	}
	return requireRow(result, "rename organization")
}

// PostgresMemberships persists org memberships in PostgreSQL.
type PostgresMemberships struct {
	db *sql.DB
}

func NewPostgresMemberships(db *sql.DB) *PostgresMemberships {
	return &PostgresMemberships{db: db}
}

func (s *PostgresMemberships) Add(ctx context.Context, m *models.Membership) error {
	query := `
		INSERT INTO org_memberships (org_id, user_id, role, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := querier(ctx, s.db).
		QueryRowContext(ctx, query, int64(m.OrgID), uuid.UUID(m.UserID), string(m.Role), m.CreatedAt).
		Scan(&m.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert membership: %w", err)
	}
	return nil
}

func (s *PostgresMemberships) Find(ctx context.Context, orgID id.OrgID, userID id.UserID) (*models.Membership, error) {
	query := `
		SELECT id, org_id, user_id, role, created_at
		FROM org_memberships
		WHERE org_id = $1 AND user_id = $2
	`
	row := querier(ctx, s.db).QueryRowContext(ctx, query, int64(orgID), uuid.UUID(userID))
	m, err := scanMembership(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find membership: %w", err)
	}
	return m, nil
}

func (s *PostgresMemberships) List(ctx context.Context, orgID id.OrgID) ([]models.Membership, error) {
	query := `
		SELECT id, org_id, user_id, role, created_at
		FROM org_memberships
		WHERE org_id = $1
		ORDER BY created_at
	`
	rows, err := querier(ctx, s.db).QueryContext(ctx, query, int64(orgID))
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()
	return collectMemberships(rows)
}

func (s *PostgresMemberships) ListForUser(ctx context.Context, userID id.UserID) ([]models.Membership, error) {
	query := `
		SELECT id, org_id, user_id, role, created_at
		FROM org_memberships
		WHERE user_id = $1
		ORDER BY created_at
	`
	rows, err := querier(ctx, s.db).QueryContext(ctx, query, uuid.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("list memberships for user: %w", err)
	}
	defer rows.Close()
	return collectMemberships(rows)
}

func (s *PostgresMemberships) UpdateRole(ctx context.Context, orgID id.OrgID, userID id.UserID, role id.Role) error {
	query := `UPDATE org_memberships SET role = $1 WHERE org_id = $2 AND user_id = $3`
	result, err := querier(ctx, s.db).
		ExecContext(ctx, query, string(role), int64(orgID), uuid.UUID(userID))
	if err != nil {
		return fmt.Errorf("update membership role: %w", err)
	}
	return requireRow(result, "update membership role")
}

func (s *PostgresMemberships) Remove(ctx context.Context, orgID id.OrgID, userID id.UserID) error {
	query := `DELETE FROM org_memberships WHERE org_id = $1 AND user_id = $2`
	result, err := querier(ctx, s.db).ExecContext(ctx, query, int64(orgID), uuid.UUID(userID))
	if err != nil {
		return fmt.Errorf("remove membership: %w", err)
	}
	return requireRow(result, "remove membership")
}

func (s *PostgresMemberships) CountAdmins(ctx context.Context, orgID id.OrgID) (int, error) {
	query := `SELECT COUNT(*) FROM org_memberships WHERE org_id = $1 AND role = $2`
	var count int
	err := querier(ctx, s.db).
		QueryRowContext(ctx, query, int64(orgID), string(id.RoleAdmin)).
		Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count admins: %w", err)
	}
	return count, nil
}

func (s *PostgresMemberships) CountForUser(ctx context.Context, userID id.UserID) (int, error) {
	query := `SELECT COUNT(*) FROM org_memberships WHERE user_id = $1`
	var count int
	err := querier(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(userID)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count memberships for user: %w", err)
	}
	return count, nil
}

func scanMembership(scan func(dest ...any) error) (*models.Membership, error) {
	var (
		m       models.Membership
		orgID   int64
		userID  uuid.UUID
		rawRole string
	)
	if err := scan(&m.ID, &orgID, &userID, &rawRole, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.OrgID = id.OrgID(orgID)
	m.UserID = id.UserID(userID)
	m.Role = id.Role(rawRole)
	return &m, nil
}

func collectMemberships(rows *sql.Rows) ([]models.Membership, error) {
	var result []models.Membership
	for rows.Next() {
		m, err := scanMembership(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		result = append(result, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memberships: %w", err)
	}
	return result, nil
}

// PostgresSettings reads and writes the system settings singleton row.
type PostgresSettings struct {
	db *sql.DB
}

func NewPostgresSettings(db *sql.DB) *PostgresSettings {
	return &PostgresSettings{db: db}
}

func (s *PostgresSettings) Get(ctx context.Context) (models.SystemSettings, error) {
	query := `SELECT organization_limit, user_can_create_org FROM system_settings WHERE id = 1`

	var settings models.SystemSettings
	err := querier(ctx, s.db).
		QueryRowContext(ctx, query).
		Scan(&settings.OrganizationLimit, &settings.UserCanCreateOrg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.DefaultSystemSettings(), nil
		}
		return models.SystemSettings{}, fmt.Errorf("get system settings: %w", err)
	}
	return settings, nil
}

func (s *PostgresSettings) Update(ctx context.Context, settings models.SystemSettings) error {
	query := `
		INSERT INTO system_settings (id, organization_limit, user_can_create_org)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET
			organization_limit  = EXCLUDED.organization_limit,
			user_can_create_org = EXCLUDED.user_can_create_org
	`
	_, err := querier(ctx, s.db).
		ExecContext(ctx, query, settings.OrganizationLimit, settings.UserCanCreateOrg)
	if err != nil {
		return fmt.Errorf("update system settings: %w", err)
	}
	return nil
}

// PostgresInvites persists per-user invite codes in PostgreSQL.
type PostgresInvites struct {
	db *sql.DB
}

func NewPostgresInvites(db *sql.DB) *PostgresInvites {
	return &PostgresInvites{db: db}
}

func (s *PostgresInvites) Create(ctx context.Context, invite *models.InviteCode) error {
	query := `
		INSERT INTO invite_codes (user_id, code, enabled, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := querier(ctx, s.db).
		ExecContext(ctx, query, uuid.UUID(invite.UserID), invite.Code, invite.Enabled, invite.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert invite code: %w", err)
	}
	return nil
}

func (s *PostgresInvites) FindByUser(ctx context.Context, userID id.UserID) (*models.InviteCode, error) {
	query := `SELECT user_id, code, enabled, created_at FROM invite_codes WHERE user_id = $1`
	return s.findOne(ctx, query, uuid.UUID(userID))
}

func (s *PostgresInvites) FindByCode(ctx context.Context, code string) (*models.InviteCode, error) {
	query := `SELECT user_id, code, enabled, created_at FROM invite_codes WHERE code = $1`
	return s.findOne(ctx, query, code)
}

func (s *PostgresInvites) findOne(ctx context.Context, query string, arg any) (*models.InviteCode, error) {
	var (
		invite models.InviteCode
		userID uuid.UUID
	)
	err := querier(ctx, s.db).
		QueryRowContext(ctx, query, arg).
		Scan(&userID, &invite.Code, &invite.Enabled, &invite.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find invite code: %w", err)
	}
	invite.UserID = id.UserID(userID)
	return &invite, nil
}

func (s *PostgresInvites) SetEnabled(ctx context.Context, userID id.UserID, enabled bool) error {
	query := `UPDATE invite_codes SET enabled = $1 WHERE user_id = $2`
	result, err := querier(ctx, s.db).ExecContext(ctx, query, enabled, uuid.UUID(userID))
	if err != nil {
		return fmt.Errorf("set invite code enabled: %w", err)
	}
	return requireRow(result, "set invite code enabled")
}

// PostgresAPIKeys persists hashed API keys in PostgreSQL.
type PostgresAPIKeys struct {
	db *sql.DB
}

func NewPostgresAPIKeys(db *sql.DB) *PostgresAPIKeys {
	return &PostgresAPIKeys{db: db}
}

func (s *PostgresAPIKeys) Create(ctx context.Context, key *models.APIKey) error {
	query := `
		INSERT INTO api_keys (org_id, prefix, key_hash, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := querier(ctx, s.db).
		QueryRowContext(ctx, query, int64(key.OrgID), key.Prefix, key.KeyHash, key.CreatedAt).
		Scan(&key.ID)
	if err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}
	return nil
}

func (s *PostgresAPIKeys) ListForOrg(ctx context.Context, orgID id.OrgID) ([]models.APIKey, error) {
	query := `
		SELECT id, org_id, prefix, key_hash, created_at
		FROM api_keys
		WHERE org_id = $1
		ORDER BY created_at
	`
	rows, err := querier(ctx, s.db).QueryContext(ctx, query, int64(orgID))
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var result []models.APIKey
	for rows.Next() {
		var (
			key   models.APIKey
			rawID int64
		)
		if err := rows.Scan(&key.ID, &rawID, &key.Prefix, &key.KeyHash, &key.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		key.OrgID = id.OrgID(rawID)
		result = append(result, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate api keys: %w", err)
	}
	return result, nil
}

func (s *PostgresAPIKeys) Delete(ctx context.Context, orgID id.OrgID, keyID int64) error {
	query := `DELETE FROM api_keys WHERE org_id = $1 AND id = $2`
	result, err := querier(ctx, s.db).ExecContext(ctx, query, int64(orgID), keyID)
	if err != nil {
		return fmt.Errorf("delete api key: %w", err)
	}
	return requireRow(result, "delete api key")
}

// PostgresDirectory resolves user emails from the mirrored profile table.
type PostgresDirectory struct {
	db *sql.DB
}

func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

func (s *PostgresDirectory) EmailForUser(ctx context.Context, userID id.UserID) (string, error) {
	var email string
	err := querier(ctx, s.db).
		QueryRowContext(ctx, `SELECT email FROM user_profiles WHERE user_id = $1`, uuid.UUID(userID)).
		Scan(&email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", sentinel.ErrNotFound
		}
		return "", fmt.Errorf("email for user: %w", err)
	}
	return email, nil
}

func (s *PostgresDirectory) UserForEmail(ctx context.Context, email string) (id.UserID, error) {
	var userID uuid.UUID
	err := querier(ctx, s.db).
		QueryRowContext(ctx, `SELECT user_id FROM user_profiles WHERE lower(email) = lower($1)`,
			strings.TrimSpace(email)).
		Scan(&userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return id.UserID{}, sentinel.ErrNotFound
		}
		return id.UserID{}, fmt.Errorf("user for email: %w", err)
	}
	return id.UserID(userID), nil
}

// requireRow maps a zero-row write to ErrNotFound.
func requireRow(result sql.Result, op string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
