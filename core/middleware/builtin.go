package middleware

import (
	"crypto/subtle"
	"encoding/base64"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/searchktools/fast-dispatch/core/http"
	"github.com/searchktools/fast-dispatch/core/httperr"
	"go.uber.org/zap"
)

type requestIDKey struct{}

// RequestID stores a request ID in the context. An inbound X-Request-ID
// is kept; otherwise a UUID is generated.
func RequestID() Func {
	return func(c *http.Context) Result {
		id := c.Header(http.HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		return Next(c.WithValue(requestIDKey{}, id))
	}
}

// GetRequestID returns the ID stored by RequestID, or ""
func GetRequestID(c *http.Context) string {
	if v, ok := c.Value(requestIDKey{}); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// CORS answers preflight requests and rejects origins not in the allow list.
// No origins means any origin is allowed.
func CORS(origins ...string) Func {
	allowAll := len(origins) == 0 || lo.Contains(origins, "*")

	return func(c *http.Context) Result {
		origin := c.Header("Origin")
		if origin != "" && !allowAll && !lo.Contains(origins, origin) {
			return Stop(httperr.Response(httperr.Newf(httperr.KindForbidden, "origin %s not allowed", origin)))
		}

		if c.Method() != http.MethodOptions {
			return Next(c)
		}

		allowOrigin := "*"
		if !allowAll {
			allowOrigin = origin
		}
		return Stop(http.NoContent().
			Header("Access-Control-Allow-Origin", allowOrigin).
			Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, PATCH, OPTIONS").
			Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID").
			Response())
	}
}

// RateLimiter allows requestsPerSecond requests per one-second window
func RateLimiter(requestsPerSecond int) Func {
	var (
		tokens     = requestsPerSecond
		lastRefill = time.Now()
		mu         sync.Mutex
	)

	return func(c *http.Context) Result {
		mu.Lock()

		now := time.Now()
		if now.Sub(lastRefill) > time.Second {
			tokens = requestsPerSecond
			lastRefill = now
		}

		if tokens > 0 {
			tokens--
			mu.Unlock()
			return Next(c)
		}

		mu.Unlock()

		return Stop(httperr.Builder(httperr.New(httperr.KindTooManyRequests, "rate limit exceeded")).
			Header("Retry-After", "1").
			Response())
	}
}

// BasicAuth requires HTTP basic credentials matching users (name → password)
func BasicAuth(realm string, users map[string]string) Func {
	const prefix = "Basic "
	challenge := `Basic realm="` + strings.ReplaceAll(realm, `"`, `\"`) + `"`

	unauthorized := func() Result {
		return Stop(httperr.Builder(httperr.New(httperr.KindUnauthorized, "invalid credentials")).
			Header("WWW-Authenticate", challenge).
			Response())
	}

	return func(c *http.Context) Result {
		auth := c.Header(http.HeaderAuthorization)
		if !strings.HasPrefix(auth, prefix) {
			return unauthorized()
		}

		decoded, err := base64.StdEncoding.DecodeString(auth[len(prefix):])
		if err != nil {
			return unauthorized()
		}

		user, pass, ok := strings.Cut(string(decoded), ":")
		if !ok {
			return unauthorized()
		}

		want, exists := users[user]
		if !exists || subtle.ConstantTimeCompare([]byte(pass), []byte(want)) != 1 {
			return unauthorized()
		}
		return Next(c)
	}
}

// BodyLimit rejects bodies larger than limit bytes
func BodyLimit(limit int) Func {
	return func(c *http.Context) Result {
		if len(c.Body()) > limit {
			return Stop(httperr.Response(httperr.Newf(httperr.KindPayloadTooLarge,
				"body of %d bytes exceeds limit of %d", len(c.Body()), limit)))
		}
		return Next(c)
	}
}

// Logger writes a debug line for every request passing through it
func Logger(logger *zap.Logger) Func {
	return func(c *http.Context) Result {
		fields := []zap.Field{
			zap.Stringer("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("route", c.Route()),
			zap.String("remote_addr", c.RemoteAddr()),
		}
		if id := GetRequestID(c); id != "" {
			fields = append(fields, zap.String("request_id", id))
		}
		logger.Debug("request", fields...)
		return Next(c)
	}
}
