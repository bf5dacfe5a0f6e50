package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	jtiKeyPrefix   = "auth:revoked:jti:"
	userKeyPrefix  = "auth:revoked:user:"
	userJTIsPrefix = "auth:revoked:user-jtis:"
)

// RedisRevocationStore shares revocations across server instances. Keys
// expire with the tokens they cover, so no cleanup goroutine is needed.
type RedisRevocationStore struct {
	client   redis.UniversalClient
	tokenTTL time.Duration
}

func NewRedisRevocationStore(client redis.UniversalClient, tokenTTL time.Duration) *RedisRevocationStore {
	return &RedisRevocationStore{client: client, tokenTTL: tokenTTL}
}

func (s *RedisRevocationStore) Revoke(ctx context.Context, jti, userID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}

	value := strconv.FormatInt(expiresAt.Unix(), 10) + "|" + userID
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, jtiKeyPrefix+jti, value, ttl)
	if userID != "" {
		pipe.SAdd(ctx, userJTIsPrefix+userID, jti)
		pipe.Expire(ctx, userJTIsPrefix+userID, s.tokenTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (s *RedisRevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, jtiKeyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("check revocation: %w", err)
	}
	return n > 0, nil
}

func (s *RedisRevocationStore) RevokeAllForUser(ctx context.Context, userID string, at time.Time) (int, error) {
	if err := s.client.Set(ctx, userKeyPrefix+userID, at.Unix(), s.tokenTTL).Err(); err != nil {
		return 0, fmt.Errorf("revoke user tokens: %w", err)
	}

	jtis, err := s.client.SMembers(ctx, userJTIsPrefix+userID).Result()
	if err != nil {
		return 0, fmt.Errorf("list user tokens: %w", err)
	}
	count := 0
	for _, jti := range jtis {
		ok, err := s.IsRevoked(ctx, jti)
		if err != nil {
			return 0, err
		}
		if ok {
			count++
		}
	}
	return count, nil
}

func (s *RedisRevocationStore) UserCutoff(ctx context.Context, userID string) (time.Time, bool, error) {
	sec, err := s.client.Get(ctx, userKeyPrefix+userID).Int64()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("load user cutoff: %w", err)
	}
	return time.Unix(sec, 0), true, nil
}

func (s *RedisRevocationStore) Entries(ctx context.Context) ([]RevocationInfo, error) {
	var result []RevocationInfo
	iter := s.client.Scan(ctx, 0, jtiKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		value, err := s.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load revocation: %w", err)
		}
		result = append(result, parseRevocation(strings.TrimPrefix(key, jtiKeyPrefix), value))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan revocations: %w", err)
	}
	sortRevocations(result)
	return result, nil
}

func parseRevocation(jti, value string) RevocationInfo {
	info := RevocationInfo{JTI: jti}
	exp, userID, _ := strings.Cut(value, "|")
	if unix, err := strconv.ParseInt(exp, 10, 64); err == nil {
		info.ExpiresAt = time.Unix(unix, 0).UTC()
	}
	info.UserID = userID
	return info
}
