// Package ratelimit implements the per-domain politeness gate: a jittered
// minimum interval between consecutive requests to the same domain.
package ratelimit

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// Config holds the delay interval the limiter draws from.
type Config struct {
	MinDelay time.Duration
	MaxDelay time.Duration
}

// Limiter spaces out requests per domain. Each call to Wait draws a delay
// uniformly from [MinDelay, MaxDelay] and suspends the caller until that
// much time has passed since the domain's previous dispatch. Domains are
// independent; a slow domain never throttles a fast one.
type Limiter struct {
	cfg Config

	mu      sync.Mutex
	domains map[string]*domainState
}

// domainState serializes waiters for one domain. The domain lock is held
// across the elapsed-check and the timestamp update so two workers can
// never both pass the gate off a stale timestamp.
type domainState struct {
	mu           sync.Mutex
	lastDispatch time.Time
}

// New creates a Limiter. A zero or inverted interval collapses to no delay.
func New(cfg Config) *Limiter {
	if cfg.MaxDelay < cfg.MinDelay {
		cfg.MaxDelay = cfg.MinDelay
	}
	return &Limiter{
		cfg:     cfg,
		domains: make(map[string]*domainState),
	}
}

// Wait blocks until the domain's jittered delay has elapsed, then records
// now as the domain's last dispatch time. It returns early with an error
// if the context finishes first; in that case the timestamp is untouched.
func (l *Limiter) Wait(ctx context.Context, domain string) error {
	state := l.state(domain)

	state.mu.Lock()
	defer state.mu.Unlock()

	delay := l.drawDelay()
	if !state.lastDispatch.IsZero() {
		if remaining := delay - time.Since(state.lastDispatch); remaining > 0 {
			if err := sleep(ctx, remaining); err != nil {
				return fmt.Errorf("rate limit wait for %s: %w", domain, err)
			}
		}
	}
	state.lastDispatch = time.Now()
	return nil
}

func (l *Limiter) state(domain string) *domainState {
	l.mu.Lock()
	defer l.mu.Unlock()
	state, ok := l.domains[domain]
	if !ok {
		state = &domainState{}
		l.domains[domain] = state
	}
	return state
}

func (l *Limiter) drawDelay() time.Duration {
	if l.cfg.MaxDelay <= 0 {
		return 0
	}
	if l.cfg.MaxDelay == l.cfg.MinDelay {
		return l.cfg.MinDelay
	}
	span := l.cfg.MaxDelay - l.cfg.MinDelay
	return l.cfg.MinDelay + time.Duration(rand.Int63n(int64(span)))
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
