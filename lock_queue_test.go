package srvcore

import (
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNextPowOf2(t *testing.T) {
	cases := map[int]int{-3: 1, 0: 1, 1: 1, 2: 2, 3: 4, 16: 16, 17: 32, 1000: 1024}
	for in, want := range cases {
		require.Equal(t, want, nextPowOf2(in), "nextPowOf2(%d)", in)
	}
}

func TestLockQueue_FIFO(t *testing.T) {
	var q LockQueue[int]
	require.Zero(t, q.Len())
	_, ok := q.TryPop()
	require.False(t, ok)

	for i := range 100 {
		q.Push(i)
	}
	require.Equal(t, 100, q.Len())
	for i := range 100 {
		v, ok := q.TryPop()
		require.True(t, ok)
		require.Equal(t, i, v)
	}
	require.Zero(t, q.Len())
}

func TestLockQueue_WrapAndGrow(t *testing.T) {
	q := NewLockQueue[int](4)
	require.Len(t, q.ring, 4)

	// Move head into the middle of the ring so the next grow has to unwrap.
	for i := range 3 {
		q.Push(i)
	}
	for range 2 {
		_, _ = q.TryPop()
	}
	for i := 3; i < 10; i++ {
		q.Push(i)
	}
	require.Equal(t, 8, q.Len())
	require.GreaterOrEqual(t, len(q.ring), 8)

	for want := 2; want < 10; want++ {
		v, ok := q.TryPop()
		require.True(t, ok)
		require.Equal(t, want, v)
	}
	_, ok := q.TryPop()
	require.False(t, ok)
}

func TestLockQueue_PopAll(t *testing.T) {
	q := NewLockQueue[string](0)
	require.Empty(t, q.PopAll())

	q.Push("a")
	q.Push("b")
	_, _ = q.TryPop()
	q.Push("c")
	q.Push("d")
	require.Equal(t, []string{"b", "c", "d"}, q.PopAll())
	require.Zero(t, q.Len())

	q.Push("e")
	v, ok := q.TryPop()
	require.True(t, ok)
	require.Equal(t, "e", v)
}

func TestLockQueue_ClearDropsReferences(t *testing.T) {
	q := NewLockQueue[*tracked](0)
	var released atomic.Int32
	for i := range 10 {
		p := &tracked{id: i}
		runtime.AddCleanup(p, func(int) { released.Add(1) }, i)
		q.Push(p)
	}
	q.Clear()
	require.Zero(t, q.Len())

	require.Eventually(t, func() bool {
		runtime.GC()
		return released.Load() == 10
	}, 5*time.Second, 10*time.Millisecond)
}

func TestLockQueue_Concurrent(t *testing.T) {
	var q LockQueue[int]
	producers, consumers := 4, 4
	per := loops(10000)
	total := producers * per

	var pwg, cwg sync.WaitGroup
	var producing atomic.Bool
	producing.Store(true)
	got := make([][]int, consumers)

	pwg.Add(producers)
	for p := range producers {
		go func() {
			defer pwg.Done()
			for i := range per {
				q.Push(p*per + i)
			}
		}()
	}
	cwg.Add(consumers)
	for c := range consumers {
		go func() {
			defer cwg.Done()
			for {
				if v, ok := q.TryPop(); ok {
					got[c] = append(got[c], v)
					continue
				}
				if !producing.Load() && q.Len() == 0 {
					return
				}
				runtime.Gosched()
			}
		}()
	}
	pwg.Wait()
	producing.Store(false)
	cwg.Wait()

	all := slices.Concat(got...)
	slices.Sort(all)
	require.Len(t, all, total)
	for i, v := range all {
		require.Equal(t, i, v)
	}
}
