package cache

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"route-recon/internal/models"
)

const presenceKeyPrefix = "presence:"

// PresenceRegistry stores one key per user that expires after the
// presence window, so stale users vanish without a sweeper.
type PresenceRegistry struct {
	rdb *redis.Client
}

func NewPresenceRegistry(rdb *redis.Client) *PresenceRegistry {
	return &PresenceRegistry{rdb: rdb}
}

func (p *PresenceRegistry) Touch(ctx context.Context, user models.ActiveUser, ttl time.Duration) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return p.rdb.Set(ctx, presenceKeyPrefix+user.UserID, data, ttl).Err()
}

func (p *PresenceRegistry) List(ctx context.Context) ([]models.ActiveUser, error) {
	users, err := scanJSON[models.ActiveUser](ctx, p.rdb, presenceKeyPrefix+"*")
	if err != nil {
		return nil, err
	}
	sort.Slice(users, func(i, j int) bool { return users[i].UserName < users[j].UserName })
	return users, nil
}
