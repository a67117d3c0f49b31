package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// ActivityStatus is the heartbeat-derived activity level of a user. It sits
// on top of socket presence: a user can be connected (so present in the
// registry snapshot) yet IDLE because their tab has gone quiet.
type ActivityStatus string

const (
	ActivityActive ActivityStatus = "ACTIVE"
	ActivityIdle   ActivityStatus = "IDLE"
)

// ActivityStore records user heartbeats. Redis-backed so the HR dashboard
// processes can read the same view.
type ActivityStore interface {
	// Heartbeat marks the user active now.
	Heartbeat(ctx context.Context, userID string) error
	// Status reports ACTIVE when the last heartbeat falls inside the
	// active window, IDLE otherwise. lastActivity is zero when the user
	// has never sent a heartbeat (or it expired).
	Status(ctx context.Context, userID string) (ActivityStatus, time.Time, error)
}

// activity key: presence:act:<user>
// value: last heartbeat in RFC3339; TTL keeps stale users from lingering.
func activityKey(user string) string { return "presence:act:" + user }

type redisActivityStore struct {
	rdb    *redis.Client
	window time.Duration
}

func NewRedisActivityStore(rdb *redis.Client, window time.Duration) ActivityStore {
	if window <= 0 {
		window = 30 * time.Second
	}
	return &redisActivityStore{rdb: rdb, window: window}
}

func (s *redisActivityStore) Heartbeat(ctx context.Context, userID string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	// keep the key around for a few windows so IDLE is observable
	err := s.rdb.Set(ctx, activityKey(userID), now, 10*s.window).Err()
	return errors.Wrap(err, "set heartbeat")
}

func (s *redisActivityStore) Status(ctx context.Context, userID string) (ActivityStatus, time.Time, error) {
	val, err := s.rdb.Get(ctx, activityKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return ActivityIdle, time.Time{}, nil
	}
	if err != nil {
		return ActivityIdle, time.Time{}, errors.Wrap(err, "get heartbeat")
	}
	last, err := time.Parse(time.RFC3339Nano, val)
	if err != nil {
		return ActivityIdle, time.Time{}, errors.Wrap(err, "parse heartbeat")
	}
	if time.Since(last) <= s.window {
		return ActivityActive, last, nil
	}
	return ActivityIdle, last, nil
}
