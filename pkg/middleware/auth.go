// Package middleware provides the fiber middleware of the API: bearer
// authentication and Idempotency-Key replay.
package middleware

import (
	"errors"
	"fmt"

	"github.com/amirasaad/usdledger/pkg/apiutil"
	"github.com/amirasaad/usdledger/pkg/config"
	"github.com/amirasaad/usdledger/pkg/domain"
	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// UserContextKey is the fiber local holding the parsed *jwt.Token.
const UserContextKey = "user"

// JwtProtected validates the HS256 bearer token signed with cfg.Secret.
func JwtProtected(cfg *config.Jwt) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:   jwtware.SigningKey{JWTAlg: jwtware.HS256, Key: []byte(cfg.Secret)},
		ContextKey:   UserContextKey,
		ErrorHandler: jwtError,
	})
}

func jwtError(c *fiber.Ctx, err error) error {
	if errors.Is(err, jwtware.ErrJWTMissingOrMalformed) {
		return apiutil.ProblemDetailsJSON(c, "Bad Request", err, fiber.StatusBadRequest)
	}
	return apiutil.ProblemDetailsJSON(c, "Unauthorized", err, "Invalid or expired JWT", fiber.StatusUnauthorized)
}

// UserID returns the user id carried in claim of the authenticated token.
func UserID(c *fiber.Ctx, claim string) (uuid.UUID, error) {
	token, ok := c.Locals(UserContextKey).(*jwt.Token)
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: missing user context", domain.ErrUnauthorized)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: unexpected claims", domain.ErrUnauthorized)
	}
	if claim == "" {
		claim = "sub"
	}
	raw, _ := claims[claim].(string)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: claim %s is not a user id", domain.ErrUnauthorized, claim)
	}
	return id, nil
}
