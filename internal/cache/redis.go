package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mzhav/roomreserve/config"
	"github.com/mzhav/roomreserve/internal/domain"
	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	client   *redis.Client
	roomsTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, roomsTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:   redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		roomsTTL: roomsTTL,
	}
}

func (c *RedisCache) GetRooms(ctx context.Context) ([]domain.Room, error) {
	data, err := c.client.Get(ctx, roomsKey()).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var rooms []domain.Room
	if err := json.Unmarshal(data, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

func (c *RedisCache) SetRooms(ctx context.Context, rooms []domain.Room) error {
	payload, err := json.Marshal(rooms)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, roomsKey(), payload, c.roomsTTL).Err()
}

// AcquireClaimLock takes a short-lived per-room mutex in front of the claim
// transaction. The database transaction remains the authority; this only
// keeps competing claims from piling up on the same room row.
func (c *RedisCache) AcquireClaimLock(ctx context.Context, roomID int64, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, claimLockKey(roomID), "locked", ttl).Result()
}

func (c *RedisCache) ReleaseClaimLock(ctx context.Context, roomID int64) error {
	return c.client.Del(ctx, claimLockKey(roomID)).Err()
}

func roomsKey() string {
	return "cache:rooms"
}

func claimLockKey(roomID int64) string {
	return fmt.Sprintf("lock:room:%d", roomID)
}
