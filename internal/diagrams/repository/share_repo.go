package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nirmalarya/autograph-sub003/internal/diagrams/domain"
)

const shareKeyPrefix = "dshare:" // dshare:{token}

// ShareRepo stores version share links in Redis. Possession of an
// unexpired token is the read capability; expiry is enforced by TTL.
type ShareRepo struct {
	client *redis.Client
	ttl    time.Duration
}

func NewShareRepo(client *redis.Client, ttl time.Duration) *ShareRepo {
	return &ShareRepo{client: client, ttl: ttl}
}

func (r *ShareRepo) Save(ctx context.Context, link domain.ShareLink) error {
	data, err := json.Marshal(link)
	if err != nil {
		return fmt.Errorf("marshal share link: %w", err)
	}
	if err := r.client.Set(ctx, r.key(link.Token), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("save share link: %w", err)
	}
	return nil
}

func (r *ShareRepo) Get(ctx context.Context, token string) (*domain.ShareLink, error) {
	data, err := r.client.Get(ctx, r.key(token)).Result()
	if err == redis.Nil {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get share link: %w", err)
	}

	var link domain.ShareLink
	if err := json.Unmarshal([]byte(data), &link); err != nil {
		return nil, fmt.Errorf("unmarshal share link: %w", err)
	}
	return &link, nil
}

func (r *ShareRepo) key(token string) string {
	return shareKeyPrefix + token
}
