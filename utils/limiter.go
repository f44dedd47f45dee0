package utils

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedLimiter keeps one token bucket per key (an IP, or email+IP) and drops
// keys that have been idle for longer than ttl.
type KeyedLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor

	perMinute int
	burst     int
	ttl       time.Duration
	now       func() time.Time

	stop chan struct{}
	once sync.Once
}

// NewKeyedLimiter allows perMinute events per key with the given burst.
func NewKeyedLimiter(perMinute, burst int, ttl time.Duration) *KeyedLimiter {
	if burst <= 0 {
		burst = perMinute
	}
	l := &KeyedLimiter{
		visitors:  make(map[string]*visitor),
		perMinute: perMinute,
		burst:     burst,
		ttl:       ttl,
		now:       time.Now,
		stop:      make(chan struct{}),
	}
	go l.cleanup()
	return l
}

func (l *KeyedLimiter) get(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if v, ok := l.visitors[key]; ok {
		v.lastSeen = now
		return v.limiter
	}

	perSecond := rate.Limit(float64(l.perMinute) / 60.0)
	lim := rate.NewLimiter(perSecond, l.burst)
	l.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	return lim
}

// Allow consumes one token for key. When the bucket is empty it returns false
// and how long the caller has to wait for the next token.
func (l *KeyedLimiter) Allow(key string) (bool, time.Duration) {
	now := l.now()
	r := l.get(key, now).ReserveN(now, 1)
	if !r.OK() {
		return false, time.Minute
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return false, d
	}
	return true, 0
}

func (l *KeyedLimiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.prune(l.now())
		}
	}
}

func (l *KeyedLimiter) prune(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.ttl {
			delete(l.visitors, key)
		}
	}
}

// Close stops the idle-key cleanup goroutine.
func (l *KeyedLimiter) Close() error {
	l.once.Do(func() { close(l.stop) })
	return nil
}
