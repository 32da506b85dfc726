// Package limits provides a Redis fixed-window request limiter used to guard
// the login endpoint against credential stuffing.
package limits

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrLimitExceeded = errors.New("rate limit exceeded")

// LoginLimiter counts attempts per key (normally the client IP) in one-minute
// windows.
type LoginLimiter struct {
	client            *redis.Client
	attemptsPerMinute int
}

func NewLoginLimiter(client *redis.Client, attemptsPerMinute int) *LoginLimiter {
	return &LoginLimiter{client: client, attemptsPerMinute: attemptsPerMinute}
}

// Allow records one attempt for the key and reports whether it is still
// within the window's budget. A nil limiter or client allows everything.
func (l *LoginLimiter) Allow(ctx context.Context, key string) error {
	if l == nil || l.client == nil || l.attemptsPerMinute <= 0 {
		return nil
	}

	window := time.Now().UTC().Unix() / 60
	redisKey := fmt.Sprintf("login:%s:%d", key, window)

	cnt, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return err
	}
	if cnt == 1 {
		l.client.Expire(ctx, redisKey, time.Minute)
	}
	if int(cnt) > l.attemptsPerMinute {
		return ErrLimitExceeded
	}
	return nil
}
