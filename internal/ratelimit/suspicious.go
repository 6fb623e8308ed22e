package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	suspicionWindow  = 5 * time.Minute
	suspicionSample  = 5
	minSample        = 3
	// varianceFloorMs2 is the interval variance below which timing looks
	// machine-generated. Units are milliseconds squared.
	varianceFloorMs2 = 1000.0
	// tooFastRate is actions per minute above which a burst of at least
	// four actions is flagged.
	tooFastRate = 3.0
)

// DetectSuspicious inspects the actor's recent timing for the action and
// records a hit when it looks automated. The result reports whether a hit
// was recorded; the caller decides what to do with it.
func (l *Limiter) DetectSuspicious(ctx context.Context, actorID int64, action string) (bool, error) {
	now := l.clock.Now()
	rows, err := l.repo.RecentActions(ctx, l.db, actorID, action, now.Add(-suspicionWindow), suspicionSample)
	if err != nil {
		return false, fmt.Errorf("recent actions: %w", err)
	}
	if len(rows) < minSample {
		return false, nil
	}

	// rows are newest first; intervals are successive gaps in ms.
	intervals := make([]float64, 0, len(rows)-1)
	for i := 0; i < len(rows)-1; i++ {
		intervals = append(intervals, float64(rows[i].CreatedAt.Sub(rows[i+1].CreatedAt).Milliseconds()))
	}

	if v := variance(intervals); v < varianceFloorMs2 {
		return true, l.flag(ctx, actorID, action, ReasonUniformIntervals,
			fmt.Sprintf("interval variance %.0f over %d actions", v, len(rows)))
	}

	span := rows[0].CreatedAt.Sub(rows[len(rows)-1].CreatedAt)
	if len(rows) >= 4 && span > 0 {
		perMinute := float64(len(rows)) / span.Minutes()
		if perMinute > tooFastRate {
			return true, l.flag(ctx, actorID, action, ReasonTooFast,
				fmt.Sprintf("%.1f actions per minute", perMinute))
		}
	}
	return false, nil
}

func (l *Limiter) flag(ctx context.Context, actorID int64, action, reason, details string) error {
	l.log.Warn("suspicious activity",
		zap.Int64("actor_id", actorID),
		zap.String("action", action),
		zap.String("reason", reason),
		zap.String("details", details),
	)
	return l.repo.InsertSuspicious(ctx, l.db, &SuspiciousActivity{
		ID:      l.genID.Generate(),
		ActorID: actorID,
		Action:  action,
		Reason:  reason,
		Details: details,
	})
}

func variance(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	var sq float64
	for _, x := range xs {
		d := x - mean
		sq += d * d
	}
	return sq / float64(len(xs))
}
