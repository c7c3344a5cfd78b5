package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrRevokedToken = errors.New("token is blacklisted")
)

const blacklistPrefix = "blacklist:"

// Identity то, что ядро знает о владельце токена
type Identity struct {
	UserID    uuid.UUID
	ExpiresAt time.Time
}

// Blacklist отозванные токены до истечения их срока
type Blacklist interface {
	Revoke(ctx context.Context, token string, ttl time.Duration) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

type RedisBlacklist struct {
	rdb *redis.Client
}

func NewRedisBlacklist(rdb *redis.Client) *RedisBlacklist {
	return &RedisBlacklist{rdb: rdb}
}

func (b *RedisBlacklist) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return b.rdb.Set(ctx, blacklistPrefix+token, 1, ttl).Err()
}

func (b *RedisBlacklist) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := b.rdb.Exists(ctx, blacklistPrefix+token).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Authenticator проверяет токен: черный список, подпись, срок, subject
type Authenticator struct {
	jwt       *JWTManager
	blacklist Blacklist
}

func NewAuthenticator(jwtManager *JWTManager, blacklist Blacklist) *Authenticator {
	return &Authenticator{jwt: jwtManager, blacklist: blacklist}
}

func (a *Authenticator) Verify(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrMissingToken
	}

	if a.blacklist != nil {
		revoked, err := a.blacklist.IsRevoked(ctx, token)
		// недоступный черный список трактуем как отказ
		if err != nil {
			return Identity{}, fmt.Errorf("check blacklist: %w", err)
		}
		if revoked {
			return Identity{}, ErrRevokedToken
		}
	}

	return a.jwt.Parse(token)
}

// Revoke заносит токен в черный список до его истечения
func (a *Authenticator) Revoke(ctx context.Context, token string) error {
	identity, err := a.jwt.Parse(token)
	if err != nil {
		return err
	}
	if a.blacklist == nil {
		return nil
	}
	return a.blacklist.Revoke(ctx, token, time.Until(identity.ExpiresAt))
}

// BearerToken достаёт токен из значения заголовка Authorization
func BearerToken(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(token), nil
}
