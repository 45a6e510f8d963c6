package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// OTPStore implements ports.OTPStore using Redis SET NX. The key lives for
// the resend window, so one delivery per phone number per window.
type OTPStore struct {
	client *goredis.Client
	prefix string
}

// NewOTPStore creates a new Redis-backed OTP delivery throttle.
func NewOTPStore(client *goredis.Client) *OTPStore {
	return &OTPStore{
		client: client,
		prefix: "otp:sent:",
	}
}

// MarkSent records a delivery attempt. Returns true when no delivery
// happened within the window, false when the caller must wait.
func (s *OTPStore) MarkSent(ctx context.Context, phoneNumber string, window time.Duration) (bool, error) {
	key := s.prefix + phoneNumber
	result, err := s.client.SetArgs(ctx, key, 1, goredis.SetArgs{
		Mode: "NX",
		TTL:  window,
	}).Result()
	if err != nil {
		if err == goredis.Nil {
			// Key already exists, a code went out within the window.
			return false, nil
		}
		return false, fmt.Errorf("redis otp throttle: %w", err)
	}
	return result == "OK", nil
}
