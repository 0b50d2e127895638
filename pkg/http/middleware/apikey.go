package middleware

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"net/http"

	"github.com/labstack/echo/v4"
)

// UserContextKey holds the authenticated user on the echo context.
const UserContextKey = "user"

const defaultUserID = "default"

// AllowAll is the verifier used until keys are provisioned.
func AllowAll(string) bool { return true }

// APIKey passes the header value to verify and attaches the default user on
// success. A nil verify means AllowAll.
func APIKey(header string, verify func(key string) bool) echo.MiddlewareFunc {
	if verify == nil {
		verify = AllowAll
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !verify(c.Request().Header.Get(header)) {
				return c.JSON(http.StatusUnauthorized, errorBody(http.StatusUnauthorized, "Invalid API key"))
			}
			c.Set(UserContextKey, map[string]string{"user_id": defaultUserID})
			return next(c)
		}
	}
}

// GenerateAPIKey returns 32 random bytes, URL-safe base64 encoded.
func GenerateAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashAPIKey returns the hex SHA-256 of key, the form keys are stored in.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func VerifyAPIKey(key, hashed string) bool {
	return subtle.ConstantTimeCompare([]byte(HashAPIKey(key)), []byte(hashed)) == 1
}
