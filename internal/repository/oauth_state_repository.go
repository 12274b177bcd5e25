package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrStateNotFound is returned when an OAuth state nonce is unknown, expired
// or already consumed.
var ErrStateNotFound = errors.New("oauth state not found")

// OAuthStateRepository keeps single-use OAuth state nonces in Redis.
type OAuthStateRepository struct {
	client *redis.Client
	prefix string
}

// NewOAuthStateRepository constructs the state store.
func NewOAuthStateRepository(client *redis.Client) *OAuthStateRepository {
	return &OAuthStateRepository{client: client, prefix: "oauth:state:"}
}

// Save records state with a payload (the post-login redirect) for ttl.
func (r *OAuthStateRepository) Save(ctx context.Context, state, payload string, ttl time.Duration) error {
	if r.client == nil {
		return errors.New("oauth state store requires redis")
	}
	ok, err := r.client.SetNX(ctx, r.prefix+state, payload, ttl).Result()
	if err != nil {
		return fmt.Errorf("redis setnx oauth state: %w", err)
	}
	if !ok {
		return fmt.Errorf("oauth state collision")
	}
	return nil
}

// Consume returns the payload stored for state and deletes it atomically.
func (r *OAuthStateRepository) Consume(ctx context.Context, state string) (string, error) {
	if r.client == nil {
		return "", ErrStateNotFound
	}
	payload, err := r.client.GetDel(ctx, r.prefix+state).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrStateNotFound
		}
		return "", fmt.Errorf("redis getdel oauth state: %w", err)
	}
	return payload, nil
}
