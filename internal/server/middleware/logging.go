package middleware

import (
	"log"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"
)

// Logging records the client IP in the request context and logs one line per request.
// It also recovers handler panics, logging method, path and client IP and answering with
// a generic 500. Forwarding headers are only read when trustProxy is set.
func Logging(trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ip := ClientIP(r, trustProxy)
			r = r.WithContext(WithClientIP(r.Context(), ip))
			rw := &recorder{ResponseWriter: w, status: http.StatusOK}

			defer func() {
				if rec := recover(); rec != nil {
					log.Printf("http: panic %s %s from %s: %v\n%s", r.Method, r.URL.Path, ip, rec, debug.Stack())
					if !rw.wrote {
						writeJSON(rw, http.StatusInternalServerError, map[string]any{"error": "internal error"})
					}
				}
				log.Printf("http: %s %s %d %s ip=%s", r.Method, r.URL.Path, rw.status, time.Since(start).Round(time.Microsecond), ip)
			}()
			next.ServeHTTP(rw, r)
		})
	}
}

type recorder struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (w *recorder) WriteHeader(code int) {
	if !w.wrote {
		w.status = code
		w.wrote = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *recorder) Write(b []byte) (int, error) {
	w.wrote = true
	return w.ResponseWriter.Write(b)
}

func (w *recorder) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// ClientIP returns the client IP of r. With trustProxy it prefers the first valid address in
// X-Forwarded-For, then X-Real-IP. Otherwise only RemoteAddr counts, since clients set those
// headers freely. Returns "unknown" when nothing usable is present.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		for _, p := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
			if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
				return ip.String()
			}
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip.String()
		}
	}
	addr := strings.TrimSpace(r.RemoteAddr)
	if addr == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
