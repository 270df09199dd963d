// Package redis keeps verification challenges in Redis with a TTL equal to
// the challenge's remaining lifetime.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kirillkom/doc-triage/internal/core/domain"
)

const keyPrefix = "otp:"

type Store struct {
	client *goredis.Client
	now    func() time.Time
}

// New parses a redis:// URL and pings the server.
func New(ctx context.Context, url string) (*Store, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewWithClient(client), nil
}

func NewWithClient(client *goredis.Client) *Store {
	return &Store{client: client, now: time.Now}
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Save(ctx context.Context, ch domain.OTPChallenge) error {
	payload, ttl, err := encodeChallenge(ch, s.now())
	if err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "save challenge", err)
	}
	if err := s.client.Set(ctx, challengeKey(ch.Subject), payload, ttl).Err(); err != nil {
		return domain.WrapError(domain.ErrTemporary, "save challenge", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, subject string) (*domain.OTPChallenge, error) {
	raw, err := s.client.Get(ctx, challengeKey(subject)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, domain.WrapError(domain.ErrNotFound, "get challenge", fmt.Errorf("no challenge for %s", domain.NormalizeSubject(subject)))
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "get challenge", err)
	}
	var ch domain.OTPChallenge
	if err := json.Unmarshal(raw, &ch); err != nil {
		return nil, fmt.Errorf("decode challenge: %w", err)
	}
	return &ch, nil
}

func (s *Store) Delete(ctx context.Context, subject string) error {
	if err := s.client.Del(ctx, challengeKey(subject)).Err(); err != nil {
		return domain.WrapError(domain.ErrTemporary, "delete challenge", err)
	}
	return nil
}

func challengeKey(subject string) string {
	return keyPrefix + domain.NormalizeSubject(subject)
}

// encodeChallenge rejects challenges that have already expired, since Redis
// treats a non-positive TTL as "keep forever".
func encodeChallenge(ch domain.OTPChallenge, now time.Time) ([]byte, time.Duration, error) {
	ttl := ch.ExpiresAt.Sub(now)
	if ttl <= 0 {
		return nil, 0, errors.New("challenge already expired")
	}
	payload, err := json.Marshal(ch)
	if err != nil {
		return nil, 0, fmt.Errorf("encode challenge: %w", err)
	}
	return payload, ttl, nil
}
