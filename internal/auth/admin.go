package auth

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/wurlus/platform/internal/domain"
	"github.com/wurlus/platform/internal/guard"
)

const (
	tokenTTL      = time.Hour
	sweepInterval = 5 * time.Minute

	loginAttempts = 5
	loginWindow   = time.Minute
)

// Admin issues and checks short-lived bearer tokens for the admin surface.
// Tokens live in memory only; a restart logs every operator out.
type Admin struct {
	password string
	logger   *slog.Logger
	limiter  *guard.RateLimiter

	mu     sync.Mutex
	tokens map[string]time.Time
}

func NewAdmin(password string, logger *slog.Logger) *Admin {
	return &Admin{
		password: password,
		logger:   logger.With("component", "admin_auth"),
		limiter:  guard.NewRateLimiter(loginAttempts, loginWindow),
		tokens:   make(map[string]time.Time),
	}
}

// Login exchanges the admin password for a one-hour token. Attempts are
// throttled per remote host so the password cannot be brute-forced.
func (a *Admin) Login(remote, password string) (string, error) {
	if res := a.limiter.Check("login:" + remote); !res.Allowed {
		return "", domain.ErrRateLimited(domain.CodeRateLimitExceeded, "too many login attempts")
	}
	if subtle.ConstantTimeCompare([]byte(password), []byte(a.password)) != 1 {
		return "", domain.ErrUnauthorized("invalid admin credentials")
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	token := hex.EncodeToString(buf)

	a.mu.Lock()
	a.tokens[token] = time.Now().Add(tokenTTL)
	a.mu.Unlock()

	a.logger.Info("admin login")
	return token, nil
}

// Valid reports whether the token is known and unexpired.
func (a *Admin) Valid(token string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	expiry, ok := a.tokens[token]
	if !ok {
		return false
	}
	if time.Now().After(expiry) {
		delete(a.tokens, token)
		return false
	}
	return true
}

// Sweep drops expired tokens every few minutes until ctx is done.
func (a *Admin) Sweep(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.mu.Lock()
			now := time.Now()
			for token, expiry := range a.tokens {
				if now.After(expiry) {
					delete(a.tokens, token)
				}
			}
			a.mu.Unlock()
		}
	}
}

// Middleware guards admin routes. Accepts a bearer token from Login, the
// X-Admin-Password header, or an adminPassword field in a JSON body (legacy
// dashboard clients).
func (a *Admin) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.authorized(r) {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "admin authorization required",
			"code":  "UNAUTHORIZED",
		})
	})
}

func (a *Admin) authorized(r *http.Request) bool {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		if a.Valid(strings.TrimPrefix(header, "Bearer ")) {
			return true
		}
	}
	if pw := r.Header.Get("X-Admin-Password"); pw != "" {
		return subtle.ConstantTimeCompare([]byte(pw), []byte(a.password)) == 1
	}
	if pw := bodyPassword(r); pw != "" {
		return subtle.ConstantTimeCompare([]byte(pw), []byte(a.password)) == 1
	}
	return false
}

// bodyPassword pulls adminPassword out of a JSON body, restoring the body so
// the handler can decode it again.
func bodyPassword(r *http.Request) string {
	if r.Body == nil || r.Method == http.MethodGet {
		return ""
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil {
		return ""
	}
	var creds struct {
		AdminPassword string `json:"adminPassword"`
	}
	if json.Unmarshal(raw, &creds) != nil {
		return ""
	}
	return creds.AdminPassword
}
