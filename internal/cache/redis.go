package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Domenick1991/nikolaus/config"
	"github.com/Domenick1991/nikolaus/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	settingsKey  = "cache:settings"
	timeSlotsKey = "cache:time_slots"
)

type RedisCache struct {
	client       *redis.Client
	settingsTTL  time.Duration
	timeSlotsTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, settingsTTL, timeSlotsTTL time.Duration) *RedisCache {
	return NewRedisCacheFromClient(
		redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		settingsTTL,
		timeSlotsTTL,
	)
}

func NewRedisCacheFromClient(client *redis.Client, settingsTTL, timeSlotsTTL time.Duration) *RedisCache {
	return &RedisCache{client: client, settingsTTL: settingsTTL, timeSlotsTTL: timeSlotsTTL}
}

// GetSettings returns nil without error on a cache miss.
func (c *RedisCache) GetSettings(ctx context.Context) (*domain.Settings, error) {
	var s domain.Settings
	ok, err := c.getJSON(ctx, settingsKey, &s)
	if err != nil || !ok {
		return nil, err
	}
	return &s, nil
}

func (c *RedisCache) SetSettings(ctx context.Context, settings domain.Settings) error {
	return c.setJSON(ctx, settingsKey, settings, c.settingsTTL)
}

// GetTimeSlots returns the cached slot definitions, or nil on a miss.
func (c *RedisCache) GetTimeSlots(ctx context.Context) ([]domain.TimeSlot, error) {
	var slots []domain.TimeSlot
	ok, err := c.getJSON(ctx, timeSlotsKey, &slots)
	if err != nil || !ok {
		return nil, err
	}
	if slots == nil {
		slots = []domain.TimeSlot{}
	}
	return slots, nil
}

func (c *RedisCache) SetTimeSlots(ctx context.Context, slots []domain.TimeSlot) error {
	return c.setJSON(ctx, timeSlotsKey, slots, c.timeSlotsTTL)
}

// Invalidate drops the cached settings and time slots.
func (c *RedisCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, settingsKey, timeSlotsKey).Err()
}

// releaseLock deletes the lock only while it still holds the caller's token.
var releaseLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// AcquireBookingLock serialises writes to one booking across instances. The
// returned token must be handed back to ReleaseBookingLock.
func (c *RedisCache) AcquireBookingLock(ctx context.Context, documentID string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := c.client.SetNX(ctx, bookingLockKey(documentID), token, ttl).Result()
	if err != nil || !ok {
		return "", false, err
	}
	return token, true, nil
}

// ReleaseBookingLock is a no-op when the lock expired and was taken over.
func (c *RedisCache) ReleaseBookingLock(ctx context.Context, documentID, token string) error {
	return releaseLock.Run(ctx, c.client, []string{bookingLockKey(documentID)}, token).Err()
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) getJSON(ctx context.Context, key string, v any) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, err
	}
	return true, nil
}

func (c *RedisCache) setJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}

func bookingLockKey(documentID string) string {
	return "lock:booking:" + documentID
}
