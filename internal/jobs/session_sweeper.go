package jobs

import (
	"context"
	"log"
	"sync"
	"time"
)

// Pruner is a session store that can drop idle sessions. The Redis store
// expires keys itself and does not need one.
type Pruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int, error)
}

// SessionSweeper periodically removes sessions idle for longer than ttl
type SessionSweeper struct {
	store    Pruner
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time

	mu        sync.Mutex
	isRunning bool
	stop      chan struct{}
	done      chan struct{}
}

// NewSessionSweeper creates a sweeper that runs every interval. A zero
// interval defaults to a tenth of the ttl, at least one minute.
func NewSessionSweeper(store Pruner, ttl, interval time.Duration) *SessionSweeper {
	if interval <= 0 {
		interval = ttl / 10
		if interval < time.Minute {
			interval = time.Minute
		}
	}
	return &SessionSweeper{
		store:    store,
		ttl:      ttl,
		interval: interval,
		now:      time.Now,
	}
}

// Start runs the sweep loop in the background
func (s *SessionSweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		log.Println("Session sweeper already running")
		return
	}
	s.isRunning = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	log.Printf("🧹 Session sweeper started (ttl %v, every %v)", s.ttl, s.interval)
	go s.loop(s.stop, s.done)
}

// Stop halts the loop and waits for an in-flight sweep to finish
func (s *SessionSweeper) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stop)
	done := s.done
	s.mu.Unlock()

	<-done
	log.Println("Session sweeper stopped")
}

func (s *SessionSweeper) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.interval)
			if _, err := s.Sweep(ctx); err != nil {
				log.Printf("❌ Session sweep failed: %v", err)
			}
			cancel()
		}
	}
}

// Sweep prunes once and returns how many sessions were removed
func (s *SessionSweeper) Sweep(ctx context.Context) (int, error) {
	pruned, err := s.store.Prune(ctx, s.now().Add(-s.ttl))
	if err != nil {
		return 0, err
	}
	if pruned > 0 {
		log.Printf("🧹 Pruned %d idle sessions", pruned)
	}
	return pruned, nil
}
