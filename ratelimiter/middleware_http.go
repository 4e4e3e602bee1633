package ratelimiter

import (
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/pitabwire/util"
)

// ErrorBody is the JSON payload written when a request is refused.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// GetIP extracts caller IP from request headers or the remote address.
func GetIP(r *http.Request) string {
	if r == nil {
		return unknownKey
	}

	ip := util.GetIP(r)
	if ip == "" {
		return unknownKey
	}
	return ip
}

// RemoteIP returns the host part of the connection address, ignoring any forwarding headers.
func RemoteIP(r *http.Request) string {
	if r == nil || r.RemoteAddr == "" {
		return unknownKey
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// CallerKey picks the key a request is limited under, honouring TrustForwardedHeaders.
func (k *KeyedLimiter) CallerKey(r *http.Request) string {
	if k.config.TrustForwardedHeaders {
		return GetIP(r)
	}
	return RemoteIP(r)
}

// RateLimitMiddleware throttles requests per caller IP. A nil limiter lets every request through.
func RateLimitMiddleware(limiter *KeyedLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			ip := limiter.CallerKey(r)
			allowed, wait := limiter.Reserve(ip)
			if !allowed {
				util.Log(r.Context()).
					WithField("ip", ip).
					WithField("path", r.URL.Path).
					Warn("request rate limited")
				rateLimitedResponse(w, limiter.config, wait)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.config.RequestsPerSecond))
			next.ServeHTTP(w, r)
		})
	}
}

func rateLimitedResponse(w http.ResponseWriter, cfg Config, wait time.Duration) {
	retryAfter := int(math.Ceil(wait.Seconds()))
	if retryAfter <= 0 {
		retryAfter = 1
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.RequestsPerSecond))
	w.Header().Set("X-RateLimit-Remaining", "0")
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(ErrorBody{Error: "rate limit exceeded", Code: "rate_limit_exceeded"})
}
