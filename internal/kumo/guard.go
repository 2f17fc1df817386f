package kumo

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateLimitError is returned when the local request guard blocks a call.
type RateLimitError struct {
	RetryAt time.Time
}

func (e RateLimitError) Error() string {
	if e.RetryAt.IsZero() {
		return "kumo rate limited"
	}
	return fmt.Sprintf("kumo rate limited (retry at %s)", e.RetryAt.UTC().Format(time.RFC3339))
}

// guard is a token bucket over a one-minute window. It also honors
// Retry-After cooldowns when the service answers 429.
type guard struct {
	mu       sync.Mutex
	capacity int
	tokens   float64
	last     time.Time
	cooldown time.Time
}

type guardedTripper struct {
	base  http.RoundTripper
	guard *guard
}

// guardHTTP wraps a client's transport with rate-limit enforcement.
func guardHTTP(base *http.Client, perMinute int) *http.Client {
	client := *base
	transport := client.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	client.Transport = &guardedTripper{
		base: transport,
		guard: &guard{
			capacity: perMinute,
			tokens:   float64(perMinute),
			last:     time.Now(),
		},
	}
	return &client
}

func (rt *guardedTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if retryAt, ok := rt.guard.allow(time.Now()); !ok {
		return nil, RateLimitError{RetryAt: retryAt}
	}

	resp, err := rt.base.RoundTrip(req)
	if err != nil {
		return resp, err
	}

	rt.guard.observe(resp.StatusCode, resp.Header)
	return resp, nil
}

func (g *guard) allow(now time.Time) (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.cooldown.IsZero() && now.Before(g.cooldown) {
		return g.cooldown, false
	}

	elapsed := now.Sub(g.last).Seconds()
	refillRate := float64(g.capacity) / time.Minute.Seconds()
	g.tokens = math.Min(float64(g.capacity), g.tokens+elapsed*refillRate)
	g.last = now

	if g.tokens < 1 {
		retryAt := now.Add(time.Minute / time.Duration(g.capacity))
		return retryAt, false
	}
	g.tokens--
	rateRemaining.Set(math.Floor(g.tokens))
	return time.Time{}, true
}

func (g *guard) observe(status int, headers http.Header) {
	g.mu.Lock()
	defer g.mu.Unlock()

	lastStatus.Set(float64(status))

	if status != http.StatusTooManyRequests {
		return
	}
	seconds := headerSeconds(headers, "Retry-After")
	if seconds <= 0 {
		seconds = 60
	}
	g.cooldown = time.Now().Add(time.Duration(seconds) * time.Second)
	rateRetryAfter.Set(float64(seconds))
}

func headerSeconds(h http.Header, key string) int {
	val := h.Get(key)
	if val == "" {
		return -1
	}
	out, err := strconv.Atoi(val)
	if err != nil {
		return -1
	}
	return out
}
