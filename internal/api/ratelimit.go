package api

import (
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitMiddleware applies a per-client token bucket keyed by remote
// IP. RATE_RPS=0 disables it. Idle client buckets are dropped after ten
// minutes.
func RateLimitMiddleware(next http.Handler) http.Handler {
	rps := envFloat("RATE_RPS", 50)
	burst := envInt("RATE_BURST", 100)
	if rps <= 0 {
		return next
	}

	type client struct {
		lim  *rate.Limiter
		seen time.Time
	}
	var (
		mu      sync.Mutex
		clients = map[string]*client{}
	)
	go func() {
		for range time.Tick(time.Minute) {
			mu.Lock()
			for ip, c := range clients {
				if time.Since(c.seen) > 10*time.Minute {
					delete(clients, ip)
				}
			}
			mu.Unlock()
		}
	}()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		mu.Lock()
		c, ok := clients[ip]
		if !ok {
			c = &client{lim: rate.NewLimiter(rate.Limit(rps), burst)}
			clients[ip] = c
		}
		c.seen = time.Now()
		mu.Unlock()
		if !c.lim.Allow() {
			w.Header().Set("Retry-After", "1")
			writeProblem(w, http.StatusTooManyRequests, "Rate limit exceeded", "slow down", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
