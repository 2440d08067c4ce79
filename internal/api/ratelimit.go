package api

import (
	"errors"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"arena/internal/game"

	"golang.org/x/time/rate"
)

// =============================================================================
// HTTP API
// =============================================================================

// RateLimitConfig configures the per-address limiter on the HTTP API
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	IdleTTL           time.Duration // Addresses quiet this long are forgotten
}

// DefaultRateLimitConfig suits polling dashboards and leaderboards
var DefaultRateLimitConfig = RateLimitConfig{
	RequestsPerSecond: 20,
	Burst:             40,
	IdleTTL:           10 * time.Minute,
}

type visitor struct {
	limiter *rate.Limiter
	seen    time.Time
}

// LimiterStats is reported under /api/stats
type LimiterStats struct {
	Allowed  uint64 `json:"allowed"`
	Rejected uint64 `json:"rejected"`
	Tracked  int    `json:"tracked"`
}

// IPRateLimiter throttles HTTP requests per client address
type IPRateLimiter struct {
	cfg RateLimitConfig

	mu       sync.Mutex
	visitors map[string]*visitor

	allowed  atomic.Uint64
	rejected atomic.Uint64

	stop     chan struct{}
	stopOnce sync.Once
}

// NewIPRateLimiter starts a limiter and its sweeper. Call Stop when done.
func NewIPRateLimiter(cfg RateLimitConfig) *IPRateLimiter {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultRateLimitConfig.IdleTTL
	}
	rl := &IPRateLimiter{
		cfg:      cfg,
		visitors: make(map[string]*visitor),
		stop:     make(chan struct{}),
	}
	go rl.sweepLoop()
	return rl
}

// Stop ends the sweeper
func (rl *IPRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *IPRateLimiter) sweepLoop() {
	ticker := time.NewTicker(rl.cfg.IdleTTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case now := <-ticker.C:
			rl.sweep(now)
		}
	}
}

// sweep forgets addresses that have been idle longer than IdleTTL
func (rl *IPRateLimiter) sweep(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, v := range rl.visitors {
		if now.Sub(v.seen) > rl.cfg.IdleTTL {
			delete(rl.visitors, ip)
		}
	}
}

// Allow takes one token from ip's bucket
func (rl *IPRateLimiter) Allow(ip string) bool {
	now := time.Now()

	rl.mu.Lock()
	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(rl.cfg.RequestsPerSecond), rl.cfg.Burst)}
		rl.visitors[ip] = v
	}
	v.seen = now
	rl.mu.Unlock()

	if v.limiter.AllowN(now, 1) {
		rl.allowed.Add(1)
		return true
	}
	rl.rejected.Add(1)
	return false
}

// Middleware answers 429 once an address runs out of tokens
func (rl *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(GetClientIP(r)) {
			RecordConnectionRejected("rate_limit")
			w.Header().Set("Retry-After", "1")
			writeError(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Stats returns counters for /api/stats
func (rl *IPRateLimiter) Stats() LimiterStats {
	rl.mu.Lock()
	tracked := len(rl.visitors)
	rl.mu.Unlock()
	return LimiterStats{
		Allowed:  rl.allowed.Load(),
		Rejected: rl.rejected.Load(),
		Tracked:  tracked,
	}
}

// GetClientIP returns the caller's address. Proxy headers are trusted only
// when they hold a parseable IP; X-Forwarded-For uses its first hop.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); net.ParseIP(ip) != nil {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(ip) != nil {
		return ip
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// =============================================================================
// WEBSOCKET SESSIONS
// =============================================================================

var (
	errServerFull = errors.New("server is at its connection limit")
	errIPFull     = errors.New("too many connections from this address")
)

// ConnectionGate admits WebSocket sessions against a total cap and a
// per-address cap. A slot is held from Acquire until Release, so sessions
// that are still handshaking count against both caps.
type ConnectionGate struct {
	maxTotal int
	maxPerIP int

	mu    sync.Mutex
	total int
	perIP map[string]int
}

// NewConnectionGate creates a gate. A cap of zero or less is unlimited.
func NewConnectionGate(maxTotal, maxPerIP int) *ConnectionGate {
	return &ConnectionGate{
		maxTotal: maxTotal,
		maxPerIP: maxPerIP,
		perIP:    make(map[string]int),
	}
}

// Acquire reserves a slot for ip or reports which cap is exhausted
func (g *ConnectionGate) Acquire(ip string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.maxTotal > 0 && g.total >= g.maxTotal {
		return errServerFull
	}
	if g.maxPerIP > 0 && g.perIP[ip] >= g.maxPerIP {
		return errIPFull
	}
	g.total++
	g.perIP[ip]++
	return nil
}

// Release returns a slot taken by Acquire. Releasing an address with no
// slots is a no-op.
func (g *ConnectionGate) Release(ip string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.perIP[ip]
	if !ok {
		return
	}
	if n <= 1 {
		delete(g.perIP, ip)
	} else {
		g.perIP[ip] = n - 1
	}
	g.total--
}

// Active returns the number of held slots
func (g *ConnectionGate) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.total
}

// SessionLimiter meters inbound messages per player. Messages over the
// budget are counted as rate_limited and never reach the engine.
type SessionLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[game.EntityID]*rate.Limiter
}

func NewSessionLimiter(perSecond float64, burst int) *SessionLimiter {
	return &SessionLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: make(map[game.EntityID]*rate.Limiter),
	}
}

// Allow takes one token from id's budget
func (s *SessionLimiter) Allow(id game.EntityID) bool {
	s.mu.Lock()
	l, ok := s.limiters[id]
	if !ok {
		l = rate.NewLimiter(s.limit, s.burst)
		s.limiters[id] = l
	}
	s.mu.Unlock()

	if l.Allow() {
		return true
	}
	RecordInbound("rate_limited")
	return false
}

// Forget drops id's budget when its session ends
func (s *SessionLimiter) Forget(id game.EntityID) {
	s.mu.Lock()
	delete(s.limiters, id)
	s.mu.Unlock()
}

// =============================================================================
// ORIGINS
// =============================================================================

// OriginPolicy decides which browser origins may open a WebSocket.
// Localhost on any port is always allowed.
type OriginPolicy struct {
	allowed map[string]bool
}

// NewOriginPolicy builds a policy from exact origins such as
// "https://arena.example"
func NewOriginPolicy(origins []string) *OriginPolicy {
	p := &OriginPolicy{allowed: make(map[string]bool, len(origins))}
	for _, o := range origins {
		p.allowed[strings.TrimRight(o, "/")] = true
	}
	return p
}

// Allowed checks an Origin header value. Non-browser clients send no
// Origin and are allowed; origin checks only protect browsers.
func (p *OriginPolicy) Allowed(origin string) bool {
	if origin == "" {
		return true
	}
	if origin == "http://localhost" || strings.HasPrefix(origin, "http://localhost:") ||
		origin == "http://127.0.0.1" || strings.HasPrefix(origin, "http://127.0.0.1:") {
		return true
	}
	return p.allowed[origin]
}

// CORSOrigins returns the patterns handed to the CORS middleware
func (p *OriginPolicy) CORSOrigins() []string {
	origins := []string{"http://localhost:*", "http://127.0.0.1:*"}
	for o := range p.allowed {
		origins = append(origins, o)
	}
	sort.Strings(origins[2:])
	return origins
}
