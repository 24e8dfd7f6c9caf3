// Package rate throttles requests per identity: by user or guest id
// when known, by remote address otherwise.
package rate

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type Limiter struct {
	Expiry   int
	Burst    int
	LimitRPS float64

	mu       sync.Mutex
	visitors map[string]*visitor
}

type visitor struct {
	limiter *rate.Limiter
	seen    time.Time
}

func NewLimiter(burst int, expiry int, limitRPS float64) *Limiter {
	lm := &Limiter{
		Expiry:   expiry,
		Burst:    burst,
		LimitRPS: limitRPS,
		visitors: make(map[string]*visitor),
	}
	go lm.sweep()
	return lm
}

// Check reports whether the identity may proceed, consuming one token
// from its bucket.
func (l *Limiter) Check(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.visitors[id]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(l.LimitRPS), l.Burst)}
		l.visitors[id] = v
	}
	v.seen = time.Now()

	return v.limiter.Allow()
}

// sweep drops identities idle for longer than the expiry, keeping the
// map bounded by active traffic.
func (l *Limiter) sweep() {
	for {
		time.Sleep(time.Minute)

		l.mu.Lock()
		for id, v := range l.visitors {
			if time.Since(v.seen) > time.Duration(l.Expiry)*time.Minute {
				delete(l.visitors, id)
			}
		}
		l.mu.Unlock()
	}
}

func Every(interval time.Duration) float64 {
	return float64(rate.Every(interval))
}
