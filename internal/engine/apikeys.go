package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"plantline/internal/domain"
	"plantline/internal/events"
	"plantline/internal/repo"
)

// MintAPIKey creates an API key for an actor and returns the one-time secret.
// Only the hash is stored; the secret cannot be recovered later.
func (e Engine) MintAPIKey(ctx context.Context, actorID, name string) (domain.APIKey, string, error) {
	if strings.TrimSpace(actorID) == "" {
		return domain.APIKey{}, "", errors.New("actor id is required")
	}
	secret := "plk_" + strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
	key := domain.APIKey{
		ID:        uuid.NewString(),
		ActorID:   actorID,
		Name:      name,
		KeyHash:   repo.HashAPIKey(secret),
		CreatedAt: e.now().UTC().Format(time.RFC3339),
	}
	if err := e.Repo.InsertAPIKey(ctx, key); err != nil {
		return key, "", fmt.Errorf("insert api key: %w", err)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return key, "", err
	}
	defer tx.Rollback()
	if err := e.Events.Append(ctx, tx, "apikey.created", "api_key", key.ID, actorID, events.EventPayload{"name": name}); err != nil {
		return key, "", err
	}
	return key, secret, tx.Commit()
}
