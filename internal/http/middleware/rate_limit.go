package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/diagnosis/tour-bookings/internal/http/response"
	"github.com/diagnosis/tour-bookings/pkg/logger"
)

// RateCounter counts hits on key within a fixed window that starts at the
// first hit.
type RateCounter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	// TrustedProxies may set X-Forwarded-For. Ignored when KeyFunc is set.
	TrustedProxies TrustedProxies
	KeyFunc        func(r *http.Request) string
}

type RateLimiter struct {
	counter RateCounter
	config  RateLimitConfig
}

func NewRateLimiter(counter RateCounter, config RateLimitConfig) *RateLimiter {
	if config.KeyFunc == nil {
		config.KeyFunc = config.TrustedProxies.ClientIP
	}
	return &RateLimiter{counter: counter, config: config}
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := rl.config.KeyFunc(r)
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		count, err := rl.counter.Incr(ctx, hashKey(key), rl.config.Window)
		cancel()
		if err != nil {
			// fail open
			logger.WarnContext(r.Context(), "Rate limit check failed", "error", err)
			next.ServeHTTP(w, r)
			return
		}

		remaining := int64(rl.config.Requests) - count
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.config.Requests))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(rl.config.Requests) {
			w.Header().Set("Retry-After", strconv.Itoa(int(rl.config.Window.Seconds())))
			response.JSON(w, http.StatusTooManyRequests, response.Envelope{
				Status:  "fail",
				Message: "Too many requests from this IP, please try again in an hour!",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return "ratelimit:" + hex.EncodeToString(sum[:])
}

// TrustedProxies lists the peers whose X-Forwarded-For entries are believed.
type TrustedProxies []netip.Prefix

func (t TrustedProxies) contains(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range t {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientIP is the TCP peer unless that peer is a trusted proxy. Then
// X-Forwarded-For is walked from the right, each trusted hop vouching for the
// one before it, and the first untrusted entry is the client. Entries left of
// it are whatever the client sent and are never used.
func (t TrustedProxies) ClientIP(r *http.Request) string {
	peer := ClientIP(r)
	if !t.contains(peer) {
		return peer
	}
	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if _, err := netip.ParseAddr(hop); err != nil {
			// a trusted proxy never writes this
			return peer
		}
		if !t.contains(hop) {
			return hop
		}
		peer = hop
	}
	return peer
}

// ClientIP is the TCP peer address without its port.
func ClientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
