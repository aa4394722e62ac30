package common

import (
	"errors"
	"time"

	"github.com/amirasaad/mlmcore/pkg/config"
	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// JwtProtected requires a bearer token signed with the configured HS256 secret.
func JwtProtected(cfg *config.Jwt) fiber.Handler {
	secret := ""
	if cfg != nil {
		secret = cfg.Secret
	}
	return jwtware.New(jwtware.Config{
		SigningKey:   jwtware.SigningKey{JWTAlg: jwtware.HS256, Key: []byte(secret)},
		ContextKey:   "user",
		ErrorHandler: jwtError,
	})
}

func jwtError(c *fiber.Ctx, err error) error {
	if errors.Is(err, jwtware.ErrJWTMissingOrMalformed) {
		return ProblemDetailsJSON(c, "Missing or malformed JWT", err, fiber.StatusUnauthorized)
	}
	return ProblemDetailsJSON(c, "Invalid or expired JWT", err, fiber.StatusUnauthorized)
}

// Subject returns the "sub" claim of the verified token, or "" when absent.
func Subject(c *fiber.Ctx) string {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok {
		return ""
	}
	sub, _ := token.Claims.GetSubject()
	return sub
}

// GenerateToken signs an HS256 token for subject. Used by operators and tests.
func GenerateToken(cfg *config.Jwt, subject string) (string, error) {
	if cfg == nil || cfg.Secret == "" {
		return "", errors.New("jwt secret is not configured")
	}
	expiry := cfg.Expiry
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    cfg.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
}
