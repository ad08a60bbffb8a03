package redis

import (
	"context"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

const deadlineKeyPrefix = "auction_deadline:"

// Redis tracks auction deadlines as expiring keys. The key carries no
// payload worth reading; its expiry event is the close signal.
type Redis struct {
	Client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{Client: client}
}

// ArmDeadline sets the expiring deadline key for an auction. SetNX keeps a
// webhook retry from resetting an already running countdown.
func (r *Redis) ArmDeadline(auctionID string, ttl time.Duration) (bool, error) {
	key := deadlineKeyPrefix + auctionID
	return r.Client.SetNX(context.Background(), key, "1", ttl).Result()
}

// ClearDeadline drops the deadline key, e.g. when an admin reruns an auction
// before the old countdown fired.
func (r *Redis) ClearDeadline(auctionID string) error {
	key := deadlineKeyPrefix + auctionID
	_, err := r.Client.Del(context.Background(), key).Result()
	return err
}

// DeadlineArmed reports whether a countdown is currently running.
func (r *Redis) DeadlineArmed(auctionID string) (bool, error) {
	key := deadlineKeyPrefix + auctionID
	_, err := r.Client.Get(context.Background(), key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// AuctionIDFromExpiredKey extracts the auction ID from an expired-key event
// payload, or "" when the key is not a deadline key.
func AuctionIDFromExpiredKey(payload string) string {
	if !strings.HasPrefix(payload, deadlineKeyPrefix) {
		return ""
	}
	return strings.TrimPrefix(payload, deadlineKeyPrefix)
}
