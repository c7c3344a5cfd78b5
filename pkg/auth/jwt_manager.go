package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

const issuer = "teamchat"

var ErrInvalidToken = errors.New("invalid token")

// Token выпущенный токен сессии
type Token struct {
	Raw       string
	ExpiresAt time.Time
}

// JWTManager выпускает и разбирает HS256 токены. Subject это id пользователя,
// jti уникален для каждого токена, чтобы отзыв одного не задевал другие.
type JWTManager struct {
	secret []byte
	ttl    time.Duration
	parser *jwt.Parser
}

func NewJWTManager(secret string, ttl time.Duration) *JWTManager {
	return &JWTManager{
		secret: []byte(secret),
		ttl:    ttl,
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}
}

func (m *JWTManager) Issue(userID uuid.UUID) (Token, error) {
	now := time.Now().UTC().Truncate(time.Second)
	expiresAt := now.Add(m.ttl)

	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    issuer,
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{Raw: raw, ExpiresAt: expiresAt}, nil
}

// Parse проверяет подпись, срок и издателя. Токен без срока не принимается.
func (m *JWTManager) Parse(raw string) (Identity, error) {
	var claims jwt.RegisteredClaims
	_, err := m.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	switch {
	case claims.ExpiresAt == nil:
		return Identity{}, fmt.Errorf("%w: missing expiry", ErrInvalidToken)
	case !claims.VerifyIssuer(issuer, true):
		return Identity{}, fmt.Errorf("%w: unexpected issuer %q", ErrInvalidToken, claims.Issuer)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: invalid user id", ErrInvalidToken)
	}
	return Identity{UserID: userID, ExpiresAt: claims.ExpiresAt.Time}, nil
}
