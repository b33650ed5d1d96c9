// Package auth turns bearer tokens into typed player sessions. Tokens are
// issued elsewhere; this package only verifies them.
package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	petname "github.com/dustinkirkland/golang-petname"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
)

const sessionKey = "session"

var ErrUnauthenticated = errors.New("unauthenticated")

// Session identifies the player behind a connection. It is handed explicitly
// to everything that acts on the player's behalf.
type Session struct {
	PlayerID string `json:"id"`
	Username string `json:"username"`
	Guest    bool   `json:"guest"`
}

// Guest returns a fresh anonymous session with a readable name.
func Guest() Session {
	return Session{
		PlayerID: uuid.NewString(),
		Username: petname.Generate(2, "-"),
		Guest:    true,
	}
}

type Authenticator struct {
	Secret      []byte
	AllowGuests bool
}

// Authenticate verifies the token, or hands out a guest session when there
// is no token and guests are allowed.
func (a Authenticator) Authenticate(token string) (Session, error) {
	if strings.TrimSpace(token) == "" {
		if a.AllowGuests {
			return Guest(), nil
		}
		return Session{}, fmt.Errorf("%w: missing token", ErrUnauthenticated)
	}
	return Parse(a.Secret, token)
}

// Parse verifies an HS256 token, with or without its "Bearer " prefix.
func Parse(secret []byte, bearer string) (Session, error) {
	raw := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(bearer), "Bearer "))
	if len(secret) == 0 {
		return Session{}, fmt.Errorf("%w: no signing secret configured", ErrUnauthenticated)
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Session{}, fmt.Errorf("%w: invalid claims", ErrUnauthenticated)
	}

	id, _ := claims["id"].(string)
	username, _ := claims["username"].(string)
	if id == "" {
		return Session{}, fmt.Errorf("%w: token has no player id", ErrUnauthenticated)
	}
	if username == "" {
		username = id
	}
	return Session{PlayerID: id, Username: username}, nil
}

// Sign issues a token for s. It exists for tests and local tooling.
func Sign(secret []byte, s Session, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":       s.PlayerID,
		"username": s.Username,
		"exp":      time.Now().Add(ttl).Unix(),
	})
	return token.SignedString(secret)
}

// Middleware authenticates the request from the Authorization header, the
// Authorization cookie or the token query parameter, in that order. Browsers
// cannot set headers on a websocket upgrade, hence the last two.
func (a Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" {
			token, _ = c.Cookie("Authorization")
		}
		if token == "" {
			token = c.Query("token")
		}

		s, err := a.Authenticate(token)
		if err != nil {
			slog.Debug("rejecting request", slog.String("path", c.FullPath()), slog.Any("error", err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set(sessionKey, s)
		c.Next()
	}
}

// FromContext returns the session stored by Middleware.
func FromContext(c *gin.Context) (Session, bool) {
	v, ok := c.Get(sessionKey)
	if !ok {
		return Session{}, false
	}
	s, ok := v.(Session)
	return s, ok
}
