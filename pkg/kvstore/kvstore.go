// Package kvstore is the shared key-value store used for run locks, nudge
// rate counters and OTP sessions.
package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrUnavailable is returned by stores that have no backing server.
var ErrUnavailable = errors.New("kvstore: unavailable")

// Store is the subset of key-value operations the service relies on.
// A ttl of zero means the key does not expire.
type Store interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// Connected reports whether the last interaction with the server succeeded.
	Connected() bool
	Close() error
}

// GetJSON loads key into v. found is false when the key is absent.
func GetJSON(ctx context.Context, s Store, key string, v any) (bool, error) {
	raw, found, err := s.Get(ctx, key)
	if err != nil || !found {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON stores v under key as JSON.
func SetJSON(ctx context.Context, s Store, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, string(b), ttl)
}

// Disconnected is a Store without a server. Every call fails with ErrUnavailable,
// which lets callers exercise their fail-open paths when Redis is not configured.
type Disconnected struct{}

var _ Store = Disconnected{}

func (Disconnected) Get(context.Context, string) (string, bool, error) { return "", false, ErrUnavailable }
func (Disconnected) Set(context.Context, string, string, time.Duration) error {
	return ErrUnavailable
}
func (Disconnected) Del(context.Context, string) error { return ErrUnavailable }
func (Disconnected) SetNX(context.Context, string, string, time.Duration) (bool, error) {
	return false, ErrUnavailable
}
func (Disconnected) Expire(context.Context, string, time.Duration) error { return ErrUnavailable }
func (Disconnected) Connected() bool                                      { return false }
func (Disconnected) Close() error                                         { return nil }
