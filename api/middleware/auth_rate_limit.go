package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/freshcut/chickenshop/api/responses"
	pkgerrors "github.com/freshcut/chickenshop/pkg/errors"
	"github.com/freshcut/chickenshop/pkg/logger"
)

const maxCredentialBody = 64 << 10

// RateLimiter counts attempts in fixed windows.
type RateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// ThrottlePolicy limits attempts per client address and per username within
// one window. A zero limit disables that dimension.
type ThrottlePolicy struct {
	Name        string
	Window      time.Duration
	PerIP       int
	PerUsername int
}

func (p ThrottlePolicy) active() bool {
	return p.Window > 0 && (p.PerIP > 0 || p.PerUsername > 0)
}

func (p ThrottlePolicy) scope(dimension, value string) string {
	name := strings.ToLower(strings.TrimSpace(p.Name))
	if name == "" {
		name = "auth"
	}
	return name + ":" + dimension + ":" + value
}

// Throttle guards a credential endpoint. It is a no-op without a store,
// which is the case when redis is not configured.
func Throttle(policy ThrottlePolicy, store RateLimiter, logg *logger.Logger) func(http.Handler) http.Handler {
	if logg == nil {
		logg = logger.Nop()
	}
	return func(next http.Handler) http.Handler {
		if store == nil || !policy.active() {
			return next
		}
		t := throttle{policy: policy, store: store, logg: logg}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if t.admit(w, r) {
				next.ServeHTTP(w, r)
			}
		})
	}
}

type throttle struct {
	policy ThrottlePolicy
	store  RateLimiter
	logg   *logger.Logger
}

func (t throttle) admit(w http.ResponseWriter, r *http.Request) bool {
	ctx := r.Context()
	if t.policy.PerIP > 0 {
		if ip := remoteHost(r); ip != "" && !t.count(ctx, w, "ip", ip, t.policy.PerIP) {
			return false
		}
	}
	if t.policy.PerUsername <= 0 {
		return true
	}

	// the handler still needs the body
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCredentialBody))
	if err != nil {
		responses.WriteError(ctx, t.logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
		return false
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	if name := usernameOf(body); name != "" {
		sum := sha256.Sum256([]byte(name))
		return t.count(ctx, w, "username", hex.EncodeToString(sum[:]), t.policy.PerUsername)
	}
	return true
}

func (t throttle) count(ctx context.Context, w http.ResponseWriter, dimension, value string, limit int) bool {
	allowed, attempts, err := t.store.FixedWindowAllow(ctx, t.policy.scope(dimension, value), int64(limit), t.policy.Window)
	if err != nil {
		responses.WriteError(ctx, t.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
		return false
	}
	if allowed {
		return true
	}

	t.logg.Warn(t.logg.WithFields(ctx, map[string]any{
		"policy":    t.policy.Name,
		"dimension": dimension,
		"attempts":  attempts,
		"limit":     limit,
	}), "auth.throttled")
	w.Header().Set("Retry-After", strconv.Itoa(int(t.policy.Window.Seconds())))
	responses.WriteError(ctx, t.logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, try again later"))
	return false
}

// remoteHost reads RemoteAddr only; the router's RealIP middleware has
// already applied any forwarding headers.
func remoteHost(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}

func usernameOf(payload []byte) string {
	var body struct {
		Username string `json:"username"`
	}
	if json.Unmarshal(payload, &body) != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(body.Username))
}
