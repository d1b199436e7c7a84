package middleware

import (
	"errors"
	"net/http"
	"strings"

	"loanflow/internal/domain/role"
	"loanflow/internal/security"

	"github.com/labstack/echo/v4"
)

const actorCtxKey = "loanflow.actor"

// TokenValidator resolves a bearer token to the calling actor.
type TokenValidator interface {
	Validate(token string) (role.Actor, error)
}

// Auth requires "Authorization: Bearer <jwt>" and stores the actor on the
// echo context. Missing or unusable identity is a 401.
func Auth(v TokenValidator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := c.Request().Header.Get(echo.HeaderAuthorization)
			scheme, token, ok := strings.Cut(strings.TrimSpace(raw), " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
			}

			actor, err := v.Validate(strings.TrimSpace(token))
			if err != nil {
				msg := "invalid token"
				if errors.Is(err, security.ErrExpiredToken) {
					msg = "token has expired"
				}
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": msg})
			}
			c.Set(actorCtxKey, actor)
			return next(c)
		}
	}
}

// ActorFrom returns the actor stored by Auth.
func ActorFrom(c echo.Context) (role.Actor, bool) {
	a, ok := c.Get(actorCtxKey).(role.Actor)
	if !ok || a.UserID == "" {
		return role.Actor{}, false
	}
	return a, true
}

// WithActor is used by tests and internal callers that authenticate elsewhere.
func WithActor(c echo.Context, a role.Actor) { c.Set(actorCtxKey, a) }
