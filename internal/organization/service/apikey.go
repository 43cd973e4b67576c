package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"orgkit/internal/organization/models"
	id "orgkit/pkg/domain"
	dErrors "orgkit/pkg/domain-errors"
	"orgkit/pkg/platform/sentinel"
	"orgkit/pkg/requestcontext"
)

const (
	apiKeyBytes  = 24 // 48 hex characters
	apiKeyPrefix = "ok_"
)

// GeneratedAPIKey pairs the stored record with the raw key, which is shown
// exactly once.
type GeneratedAPIKey struct {
	Key    *models.APIKey
	RawKey string
}

// GenerateAPIKey creates a new organization API key. Admin only. The raw key
// is bcrypt-hashed before storage and never retrievable again.
func (s *Service) GenerateAPIKey(ctx context.Context, actor id.UserID, orgID id.OrgID) (*GeneratedAPIKey, error) {
	if _, err := s.requireAdmin(ctx, orgID, actor); err != nil {
		return nil, err
	}

	buf := make([]byte, apiKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate key material")
	}
	rawKey := apiKeyPrefix + hex.EncodeToString(buf)

	hash, err := bcrypt.GenerateFromPassword([]byte(rawKey), bcrypt.DefaultCost)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash key")
	}

	key := &models.APIKey{
		OrgID:     orgID,
		Prefix:    rawKey[:len(apiKeyPrefix)+8],
		KeyHash:   string(hash),
		CreatedAt: requestcontext.Now(ctx),
	}
	if err := s.apiKeys.Create(ctx, key); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store key")
	}

	return &GeneratedAPIKey{Key: key, RawKey: rawKey}, nil
}

// ListAPIKeys returns the organization's keys (hashes excluded from JSON).
// Admin only.
func (s *Service) ListAPIKeys(ctx context.Context, actor id.UserID, orgID id.OrgID) ([]models.APIKey, error) {
	if _, err := s.requireAdmin(ctx, orgID, actor); err != nil {
		return nil, err
	}
	keys, err := s.apiKeys.ListForOrg(ctx, orgID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list keys")
	}
	return keys, nil
}

// RevokeAPIKey deletes a key. Admin only.
func (s *Service) RevokeAPIKey(ctx context.Context, actor id.UserID, orgID id.OrgID, keyID int64) error {
	if _, err := s.requireAdmin(ctx, orgID, actor); err != nil {
		return err
	}
	if err := s.apiKeys.Delete(ctx, orgID, keyID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "api key not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete key")
	}
	return nil
}

// VerifyAPIKey checks a presented raw key against an organization's stored
// hashes. Used by machine integrations.
func (s *Service) VerifyAPIKey(ctx context.Context, orgID id.OrgID, rawKey string) (bool, error) {
	keys, err := s.apiKeys.ListForOrg(ctx, orgID)
	if err != nil {
		return false, fmt.Errorf("list keys: %w", err)
	}
	for _, key := range keys {
		if bcrypt.CompareHashAndPassword([]byte(key.KeyHash), []byte(rawKey)) == nil {
			return true, nil
		}
	}
	return false, nil
}
