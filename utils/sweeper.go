package utils

import (
	"context"
	"time"
)

// Sweeper releases sessions idle for longer than a threshold.
type Sweeper interface {
	Sweep(idle time.Duration) int
}

// StartSessionSweeper runs s.Sweep every interval until ctx is done.
func StartSessionSweeper(ctx context.Context, s Sweeper, idle, interval time.Duration) {
	if idle <= 0 || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.Sweep(idle); n > 0 {
					Sugar.Infof("released %d idle account sessions", n)
				}
			}
		}
	}()
}
