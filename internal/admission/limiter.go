// Package admission gates comment creation with a per-connection
// points/duration budget. It runs entirely before the core; a rejected
// request never reaches the store.
package admission

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// staleAfter is how long an idle connection's bucket survives before the
// sweep reclaims it.
const staleAfter = 10 * time.Minute

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter hands each connection a token bucket of `points` tokens refilled
// over `window`.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	points  int
	window  time.Duration
	done    chan struct{}
}

// NewLimiter creates a limiter and starts its idle-bucket sweep.
func NewLimiter(points int, window time.Duration) *Limiter {
	l := &Limiter{
		buckets: make(map[string]*bucket),
		points:  points,
		window:  window,
		done:    make(chan struct{}),
	}
	go l.sweep()
	return l
}

// Allow consumes one point from the connection's budget. When the budget is
// exhausted it reports false together with a retry-after hint.
func (l *Limiter) Allow(connectionID string) (bool, time.Duration) {
	l.mu.Lock()
	b, ok := l.buckets[connectionID]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Every(l.window/time.Duration(l.points)), l.points)}
		l.buckets[connectionID] = b
	}
	b.lastSeen = time.Now()
	l.mu.Unlock()

	reservation := b.limiter.Reserve()
	if !reservation.OK() {
		return false, l.window
	}
	delay := reservation.Delay()
	if delay > 0 {
		reservation.Cancel()
		return false, delay
	}
	return true, 0
}

func (l *Limiter) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-staleAfter)
			l.mu.Lock()
			for id, b := range l.buckets {
				if b.lastSeen.Before(cutoff) {
					delete(l.buckets, id)
				}
			}
			l.mu.Unlock()
		}
	}
}

// Close stops the sweep goroutine.
func (l *Limiter) Close() {
	close(l.done)
}
