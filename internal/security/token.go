package security

import (
	"errors"
	"time"

	"loanflow/internal/domain/role"
	"loanflow/pkg/id"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

const issuer = "loanflow"

// UserClaims carries the caller identity: Subject is the user id.
type UserClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Generate signs an HS256 access token for actor.
func (m *TokenManager) Generate(actor role.Actor) (string, error) {
	if actor.UserID == "" || !actor.Role.Valid() {
		return "", ErrInvalidToken
	}
	now := m.now()
	claims := UserClaims{
		Role: actor.Role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.UserID,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
			ID:        id.NewID32(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Validate checks signature, issuer and expiry and returns the actor.
func (m *TokenManager) Validate(tokenString string) (role.Actor, error) {
	claims := &UserClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return role.Actor{}, ErrExpiredToken
		}
		return role.Actor{}, ErrInvalidToken
	}
	if claims.Subject == "" {
		return role.Actor{}, ErrInvalidToken
	}
	r, err := role.Parse(claims.Role)
	if err != nil {
		return role.Actor{}, ErrInvalidToken
	}
	return role.Actor{UserID: claims.Subject, Role: r}, nil
}
