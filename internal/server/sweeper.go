package server

import (
	"context"
	"time"

	"github.com/dmitrijs2005/sehatbot/internal/logging"
)

// expirer cancels sessions whose TTL has passed.
type expirer interface {
	CancelExpired(ctx context.Context) (int64, error)
}

// runSweeper cancels expired sessions every interval until ctx is done.
// A non-positive interval disables it.
func runSweeper(ctx context.Context, interval time.Duration, s expirer, l logging.Logger) {
	if interval <= 0 {
		return
	}

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.CancelExpired(ctx)
			if err != nil {
				if ctx.Err() == nil {
					l.Error(ctx, "expired session sweep failed", "error", err)
				}
				continue
			}
			if n > 0 {
				l.Info(ctx, "expired sessions cancelled", "count", n)
			}
		}
	}
}
