package engine

import (
	"context"
	"sync/atomic"
	"time"

	. "github.com/jorgenhanssen/grail/pkg/common"
)

const (
	defaultMovesToGo = 30
	moveOverhead     = 10 * time.Millisecond
	minTimeLimit     = 1 * time.Millisecond
)

// timeManager turns the go-command limits into a soft and a hard
// deadline. The hard deadline is enforced by a watchdog that flips the
// cancellation flag the search polls; the soft deadline only stops new
// iterations from starting.
type timeManager struct {
	start     time.Time
	limits    LimitsType
	softLimit time.Duration
	hardLimit time.Duration
	done      atomic.Bool
	cancel    context.CancelFunc
}

func newTimeManager(ctx context.Context, start time.Time,
	limits LimitsType, p *Position) *timeManager {

	var tm = &timeManager{
		start:  start,
		limits: limits,
	}

	if limits.MoveTime > 0 {
		var budget = time.Duration(limits.MoveTime)*time.Millisecond - moveOverhead
		if budget < minTimeLimit {
			budget = minTimeLimit
		}
		tm.softLimit = budget
		tm.hardLimit = budget
	} else if limits.WhiteTime > 0 || limits.BlackTime > 0 {
		var remaining, inc time.Duration
		if p.WhiteMove {
			remaining = time.Duration(limits.WhiteTime) * time.Millisecond
			inc = time.Duration(limits.WhiteIncrement) * time.Millisecond
		} else {
			remaining = time.Duration(limits.BlackTime) * time.Millisecond
			inc = time.Duration(limits.BlackIncrement) * time.Millisecond
		}
		tm.softLimit, tm.hardLimit = calcLimits(remaining, inc, limits.MovesToGo)
	}

	var cancel context.CancelFunc
	if tm.hardLimit != 0 {
		ctx, cancel = context.WithDeadline(ctx, start.Add(tm.hardLimit))
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	// node and depth stops raise the flag at once, not when the watchdog runs
	tm.cancel = func() {
		tm.done.Store(true)
		cancel()
	}

	go func() {
		<-ctx.Done()
		tm.done.Store(true)
	}()

	return tm
}

func calcLimits(remaining, inc time.Duration, movesToGo int) (soft, hard time.Duration) {
	remaining -= moveOverhead
	if remaining < minTimeLimit {
		remaining = minTimeLimit
	}
	if movesToGo == 0 {
		movesToGo = defaultMovesToGo
	}

	hard = remaining/time.Duration(movesToGo) + 3*inc
	if hard > remaining/2 {
		hard = remaining / 2
	}
	if hard < minTimeLimit {
		hard = minTimeLimit
	}
	soft = hard / 3
	if soft < minTimeLimit {
		soft = minTimeLimit
	}
	return
}

func (tm *timeManager) IsDone() bool {
	return tm.done.Load()
}

func (tm *timeManager) OnNodesChanged(nodes int) {
	if tm.limits.Nodes > 0 && nodes >= tm.limits.Nodes {
		tm.cancel()
	}
}

func (tm *timeManager) OnIterationComplete(line mainLine) {
	if tm.limits.Infinite {
		return
	}
	if tm.limits.Depth != 0 && line.depth >= tm.limits.Depth {
		tm.cancel()
		return
	}
	if line.score >= winIn(line.depth-5) ||
		line.score <= lossIn(line.depth-5) {
		tm.cancel()
		return
	}
	if tm.softLimit != 0 &&
		time.Since(tm.start) >= tm.softLimit {
		tm.cancel()
		return
	}
}

func (tm *timeManager) Close() {
	tm.cancel()
}
