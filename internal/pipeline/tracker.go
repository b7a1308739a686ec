package pipeline

import (
	"context"
	"sync/atomic"
	"time"
)

// tracker counts accepted items and spawned sub-tasks that have not yet
// run to completion. A lead request uses it to detect that everything
// it seeded, including transitively fanned-out work, has drained.
type tracker struct {
	inflight atomic.Int64
}

func (t *tracker) add()  { t.inflight.Add(1) }
func (t *tracker) done() { t.inflight.Add(-1) }

func (t *tracker) idle() bool { return t.inflight.Load() == 0 }

// quiescePoll is how often Quiesce re-checks the drain condition.
const quiescePoll = 200 * time.Millisecond

// quiesceSettle is how many consecutive polls must see the pipeline idle
// before Quiesce declares it drained; a worker handing off between queues is briefly
// invisible to both the queue lengths and the in-flight counter.
const quiesceSettle = 3

// waitIdle blocks until consecutive polls see the idle condition hold,
// or ctx expires.
func (t *tracker) waitIdle(ctx context.Context, alsoIdle func() bool) error {
	settled := 0
	ticker := time.NewTicker(quiescePoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if t.idle() && alsoIdle() {
				settled++
				if settled >= quiesceSettle {
					return nil
				}
			} else {
				settled = 0
			}
		}
	}
}
