package httpadapter

import (
	"context"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	requestIDHeader = "X-Request-Id"
	maxRequestIDLen = 128
)

const (
	rejectRateLimited = "rate_limited"
	rejectOverloaded  = "overloaded"
)

type requestIDContextKey struct{}

func requestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey{}).(string)
	return id
}

// acceptableRequestID keeps caller-supplied ids out of the logs when they are
// oversized or carry control characters.
func acceptableRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	return strings.IndexFunc(id, func(r rune) bool { return !unicode.IsPrint(r) }) < 0
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if !acceptableRequestID(id) {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDContextKey{}, id)))
	})
}

func accessLogMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rec, r)

		client := r.RemoteAddr
		if host, _, err := net.SplitHostPort(client); err == nil {
			client = host
		}
		level := slog.LevelInfo
		switch {
		case rec.statusCode >= 500:
			level = slog.LevelError
		case rec.statusCode >= 400:
			level = slog.LevelWarn
		}
		logger.Log(r.Context(), level, "http_request",
			"request_id", requestIDFromContext(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_bytes", r.ContentLength,
			"response_bytes", rec.bytesWritten,
			"client", client,
		)
	})
}

type admissionConfig struct {
	RPS         float64
	Burst       int
	MaxInFlight int
	Wait        time.Duration
}

// admission fronts the inference routes. A token bucket rejects bursts with
// 429, then a bounded pool of in-flight slots makes excess callers queue for
// Wait before receiving 503. Zero RPS or MaxInFlight disables that stage.
type admission struct {
	next     http.Handler
	limiter  *rate.Limiter
	slots    chan struct{}
	wait     time.Duration
	onReject func(reason string)
}

func newAdmission(next http.Handler, cfg admissionConfig, onReject func(reason string)) http.Handler {
	a := &admission{next: next, wait: cfg.Wait, onReject: onReject}
	if cfg.RPS > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = int(math.Ceil(cfg.RPS))
		}
		a.limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}
	if cfg.MaxInFlight > 0 {
		a.slots = make(chan struct{}, cfg.MaxInFlight)
	}
	if a.limiter == nil && a.slots == nil {
		return next
	}
	return a
}

func (a *admission) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if a.limiter != nil {
		res := a.limiter.Reserve()
		if delay := res.Delay(); delay > 0 {
			res.Cancel()
			a.reject(rejectRateLimited)
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
			return
		}
	}
	if a.slots != nil {
		if !a.acquire(r.Context()) {
			if r.Context().Err() != nil {
				return
			}
			a.reject(rejectOverloaded)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "server overloaded, retry later"})
			return
		}
		defer func() { <-a.slots }()
	}
	a.next.ServeHTTP(w, r)
}

func (a *admission) acquire(ctx context.Context) bool {
	select {
	case a.slots <- struct{}{}:
		return true
	default:
	}
	if a.wait <= 0 {
		return false
	}
	timer := time.NewTimer(a.wait)
	defer timer.Stop()
	select {
	case a.slots <- struct{}{}:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

func (a *admission) reject(reason string) {
	if a.onReject != nil {
		a.onReject(reason)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.bytesWritten += n
	return n, err
}
