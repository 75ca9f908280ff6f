package service

import (
	"context"
	"log"
	"time"
)

// SessionCleaner prunes expired refresh tokens. Satisfied by
// repository.SessionRepository.
type SessionCleaner interface {
	CleanupExpired(ctx context.Context) error
}

const sessionCleanupEvery = time.Hour

// Sweeper drives the auction expiry transition on a fixed interval. Each
// tick is one idempotent pass: re-evaluating already-expired listings does
// nothing. It piggybacks an hourly refresh-token cleanup.
type Sweeper struct {
	listings *ListingService
	sessions SessionCleaner
	interval time.Duration
	done     chan struct{}
}

func NewSweeper(listings *ListingService, sessions SessionCleaner, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		listings: listings,
		sessions: sessions,
		interval: interval,
		done:     make(chan struct{}),
	}
}

func (s *Sweeper) Run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	lastCleanup := time.Now()
	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if _, err := s.listings.ExpireDue(ctx); err != nil {
				log.Printf("[SWEEP] expiry pass failed: %v", err)
			}
			if s.sessions != nil && time.Since(lastCleanup) >= sessionCleanupEvery {
				if err := s.sessions.CleanupExpired(ctx); err != nil {
					log.Printf("[SWEEP] session cleanup failed: %v", err)
				}
				lastCleanup = time.Now()
			}
			cancel()
		case <-s.done:
			return
		}
	}
}

func (s *Sweeper) Shutdown() {
	close(s.done)
}
