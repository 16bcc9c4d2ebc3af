package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/valyala/fastrand"

	"github.com/llxisdsh/srvcore"
	"github.com/llxisdsh/srvcore/internal/logging"
)

type queueStats struct {
	pushed, popped, left int
}

// runQueue pushes random numbers at the given interval until duration has
// passed, while a second worker prints them as it pops them. Both workers
// are then stopped and any consumer still parked is released with WakeAll.
func runQueue(ctx context.Context, out io.Writer, duration, interval time.Duration) (queueStats, error) {
	var stats queueStats
	q := srvcore.NewBlockingQueue[uint32]()
	tm := srvcore.NewThreadManager(nil, srvcore.WithBaseContext(ctx))

	// The Lock serialises writes to out between the two workers.
	outMu := srvcore.NewLock()
	printf := func(format string, args ...any) {
		outMu.WriteLock()
		fmt.Fprintf(out, format, args...)
		outMu.WriteUnlock()
	}

	err := tm.Launch(func(ctx context.Context) error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				v := fastrand.Uint32n(100)
				q.Push(v)
				stats.pushed++
				logging.DebugLog.Printf("pushed %d", v)
			}
		}
	})
	if err != nil {
		return stats, err
	}
	err = tm.Launch(func(ctx context.Context) error {
		for {
			v, ok := q.PopBlocking(ctx)
			if !ok {
				return nil
			}
			stats.popped++
			printf("worker %d popped %d\n", srvcore.Current(), v)
		}
	})
	if err != nil {
		return stats, err
	}

	select {
	case <-time.After(duration):
	case <-ctx.Done():
	}
	tm.Stop()
	q.WakeAll()
	if err := tm.Join(); err != nil {
		return stats, err
	}
	for {
		if _, ok := q.TryPop(); !ok {
			break
		}
		stats.left++
	}
	return stats, nil
}

// runLock has every worker increment a shared counter under the write lock,
// taking the lock reentrantly and reading the counter back under a nested
// read lock.
func runLock(out io.Writer, workers, iterations int) (int, error) {
	tm := srvcore.NewThreadManager(nil)
	l := srvcore.NewLock()
	counter := 0

	for range workers {
		err := tm.Launch(func(context.Context) error {
			id := srvcore.Current()
			seen := 0
			for range iterations {
				l.WriteLock()
				l.WriteLock()
				counter++
				l.WriteUnlock()

				l.ReadLock()
				seen = counter
				l.ReadUnlock()
				l.WriteUnlock()
			}
			srvcore.WithWriteLock(l, func() {
				fmt.Fprintf(out, "worker %d done, last saw %d\n", id, seen)
			})
			return nil
		})
		if err != nil {
			return 0, err
		}
	}
	if err := tm.Join(); err != nil {
		return 0, err
	}
	return counter, nil
}
