package gateway

import (
	"crypto/subtle"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/volumeee/zenclaw-sub000/internal/config"
)

// Auth modes.
const (
	AuthModeToken    = "token"
	AuthModePassword = "password"
)

// AuthResult is the outcome of checking a client's credentials. Reason is
// sent back to the client on failure.
type AuthResult struct {
	OK     bool   `json:"ok"`
	Method string `json:"method,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func denied(reason string) AuthResult { return AuthResult{Reason: reason} }

// ResolvedAuth is the gateway's effective auth after environment fallbacks.
type ResolvedAuth struct {
	Mode     string
	Token    string
	Password string
}

// secret returns the credential the mode compares against.
func (a ResolvedAuth) secret() string {
	if a.Mode == AuthModePassword {
		return a.Password
	}
	return a.Token
}

// ResolveAuth fills missing credentials from ZENCLAW_GATEWAY_TOKEN and
// ZENCLAW_GATEWAY_PASSWORD. With no explicit mode, a configured password
// selects password mode and anything else selects token mode.
func ResolveAuth(cfg config.GatewayAuth) ResolvedAuth {
	auth := ResolvedAuth{
		Mode:     cfg.Mode,
		Token:    firstNonEmpty(cfg.Token, os.Getenv("ZENCLAW_GATEWAY_TOKEN")),
		Password: firstNonEmpty(cfg.Password, os.Getenv("ZENCLAW_GATEWAY_PASSWORD")),
	}
	if auth.Mode == "" {
		auth.Mode = AuthModeToken
		if auth.Password != "" {
			auth.Mode = AuthModePassword
		}
	}
	return auth
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Authorize checks a connect request's credentials against the server's.
func Authorize(server ResolvedAuth, client *ConnectAuth) AuthResult {
	if client == nil {
		return denied("no credentials provided")
	}

	var offered string
	switch server.Mode {
	case AuthModeToken:
		offered = client.Token
	case AuthModePassword:
		offered = client.Password
	default:
		return denied("unknown auth mode: " + server.Mode)
	}

	switch {
	case server.secret() == "":
		return denied("server " + server.Mode + " not configured")
	case offered == "":
		return denied(server.Mode + " required")
	case !safeEqual(offered, server.secret()):
		return denied(server.Mode + "_mismatch")
	}
	return AuthResult{OK: true, Method: server.Mode}
}

// AuthorizeRequest checks an HTTP "Authorization: Bearer" header. The
// bearer value stands for whichever credential the server's mode uses.
func AuthorizeRequest(server ResolvedAuth, r *http.Request) AuthResult {
	bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || bearer == "" {
		return denied("no credentials provided")
	}
	return Authorize(server, &ConnectAuth{Token: bearer, Password: bearer})
}

// safeEqual compares in constant time, including when lengths differ.
func safeEqual(a, b string) bool {
	sameLen := subtle.ConstantTimeEq(int32(len(a)), int32(len(b)))
	same := subtle.ConstantTimeCompare([]byte(a), []byte(b))
	return subtle.ConstantTimeSelect(sameLen, same, 0) == 1
}

// authRateLimiter throttles failed authentication per remote host. Each
// host holds a token bucket of authRateMaxFails failures that refills over
// authRateWindow; a host with an empty bucket is refused before its
// credentials are checked.
type authRateLimiter struct {
	mu    sync.Mutex
	hosts map[string]*authVisitor
}

type authVisitor struct {
	bucket   *rate.Limiter
	lastFail time.Time
}

const (
	authRateWindow   = 5 * time.Minute
	authRateMaxFails = 10
	authRateMaxIPs   = 10000
)

func newAuthRateLimiter() *authRateLimiter {
	return &authRateLimiter{hosts: make(map[string]*authVisitor)}
}

func hostOf(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}

func (l *authRateLimiter) allow(remoteAddr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.hosts[hostOf(remoteAddr)]
	if !ok {
		return true
	}
	return v.bucket.Tokens() >= 1
}

func (l *authRateLimiter) recordFailure(remoteAddr string) {
	host := hostOf(remoteAddr)
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.hosts[host]
	if !ok {
		if len(l.hosts) >= authRateMaxIPs {
			l.evictLocked(now)
		}
		v = &authVisitor{bucket: rate.NewLimiter(rate.Every(authRateWindow/authRateMaxFails), authRateMaxFails)}
		l.hosts[host] = v
	}
	v.bucket.AllowN(now, 1)
	v.lastFail = now
}

// evictLocked forgets hosts whose last failure is older than the window;
// if none qualify it drops the host that failed least recently.
func (l *authRateLimiter) evictLocked(now time.Time) {
	var oldest string
	for host, v := range l.hosts {
		if now.Sub(v.lastFail) > authRateWindow {
			delete(l.hosts, host)
			continue
		}
		if oldest == "" || v.lastFail.Before(l.hosts[oldest].lastFail) {
			oldest = host
		}
	}
	if len(l.hosts) >= authRateMaxIPs && oldest != "" {
		delete(l.hosts, oldest)
	}
}

// checkWebSocketOrigin accepts upgrades without an Origin header, which
// browsers always send, and otherwise applies the CORS allow list.
func checkWebSocketOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || isOriginAllowed(origin, allowed)
	}
}
