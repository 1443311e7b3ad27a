package httpx

import (
	"context"
	"mime"
	"net"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"socialnet/internal/auth"
	"socialnet/internal/util"
)

const requestIDHeader = "X-Request-ID"

type ctxKeyRequestID struct{}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID{}).(string)
	return id
}

// gate enforces the route policy. Body-carrying methods must declare a JSON
// content type before the token is even looked at.
func (s *Server) gate(p policy, next http.Handler) http.Handler {
	if p == public {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(tokenHeader)
		if p == optional && token == "" {
			next.ServeHTTP(w, r)
			return
		}
		if carriesBody(r.Method) && !isJSON(r) {
			util.Fail(w, http.StatusBadRequest, "content-type must be application/json")
			return
		}
		if token == "" {
			util.Fail(w, http.StatusUnauthorized, "missing token")
			return
		}
		payload, ok, err := s.sessions.Verify(r.Context(), token)
		if err != nil {
			s.log.WithError(err).WithField("request_id", requestIDFrom(r.Context())).Error("verify session")
			util.Fail(w, http.StatusInternalServerError, "internal error")
			return
		}
		if !ok {
			util.Fail(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithPayload(r.Context(), payload)))
	})
}

func carriesBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}

// ------------access log------------------------------------------------------

type statusRW struct {
	http.ResponseWriter
	status int
}

func (w *statusRW) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusRW{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		fields := logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     sw.status,
			"duration":   time.Since(start).Truncate(time.Millisecond).String(),
			"request_id": requestIDFrom(r.Context()),
		}
		if sc := trace.SpanContextFromContext(r.Context()); sc.HasTraceID() {
			fields["trace_id"] = sc.TraceID().String()
		}
		s.log.WithFields(fields).Info("request")
	})
}

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyRequestID{}, id)))
	})
}

func (s *Server) withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				if p == http.ErrAbortHandler {
					panic(p)
				}
				s.log.WithFields(logrus.Fields{
					"panic":      p,
					"stack":      string(debug.Stack()),
					"request_id": requestIDFrom(r.Context()),
				}).Error("handler panic")
				util.Fail(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, token")
		h.Set("Access-Control-Expose-Headers", requestIDHeader)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithTimeout bounds the whole request, handler included.
func WithTimeout(next http.Handler, d time.Duration) http.Handler {
	return http.TimeoutHandler(next, d, `{"success":false,"message":"request timeout"}`)
}

// ------------rate limit------------------------------------------------------

type rateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func newRateLimiter(perSec float64, burst int) *rateLimiter {
	if perSec <= 0 {
		perSec = 5
	}
	if burst <= 0 {
		burst = 10
	}
	return &rateLimiter{limiters: map[string]*rate.Limiter{}, rate: rate.Limit(perSec), burst: burst}
}

func (rl *rateLimiter) get(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	l, ok := rl.limiters[key]
	if !ok {
		// Bounded; overflow resets every bucket.
		if len(rl.limiters) >= 10000 {
			rl.limiters = map[string]*rate.Limiter{}
		}
		l = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[key] = l
	}
	return l
}

func (rl *rateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			key = r.RemoteAddr
		}
		if !rl.get(key).Allow() {
			util.Fail(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}
