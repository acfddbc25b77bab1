package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/TirthC27/HealthID/pkg/storage"
	"github.com/TirthC27/HealthID/pkg/types"
)

const collectionTokens = "qrTokens"

// Repository implements access token persistence over the key-value store
type Repository struct {
	store storage.Store
}

// NewRepository creates a new token repository
func NewRepository(store storage.Store) *Repository {
	return &Repository{store: store}
}

// Save persists an access token keyed by its token string
func (r *Repository) Save(tok *types.AccessToken) error {
	if err := r.store.Put(collectionTokens, tok.Token, tok); err != nil {
		return fmt.Errorf("failed to save access token: %w", err)
	}
	return nil
}

// GetByToken retrieves an access token by its token string
func (r *Repository) GetByToken(token string) (*types.AccessToken, error) {
	raw, err := r.store.Get(collectionTokens, token)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, types.NewNotFoundError(types.ErrCodeTokenNotFound, "Access token not found")
		}
		return nil, fmt.Errorf("failed to get access token: %w", err)
	}

	var tok types.AccessToken
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, fmt.Errorf("failed to decode access token: %w", err)
	}
	return &tok, nil
}

// CountLive returns how many stored tokens are still redeemable. Dead tokens
// stay in the store: deleting them would turn a TOKEN_EXPIRED redemption into
// TOKEN_NOT_FOUND and lose the distinction callers surface to the scanner.
func (r *Repository) CountLive(now time.Time) (int, error) {
	raws, err := r.store.List(collectionTokens)
	if err != nil {
		return 0, fmt.Errorf("failed to list access tokens: %w", err)
	}

	live := 0
	for _, raw := range raws {
		var tok types.AccessToken
		if err := json.Unmarshal(raw, &tok); err != nil {
			return live, fmt.Errorf("failed to decode access token: %w", err)
		}
		if now.Before(tok.ExpiresAt) {
			live++
		}
	}
	return live, nil
}
