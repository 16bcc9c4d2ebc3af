package srvcore

import (
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/valyala/fastrand"
)

func TestLocate(t *testing.T) {
	cases := []struct {
		idx      uint32
		seg, off int
	}{
		{1, 0, 0},
		{arenaBase, 0, arenaBase - 1},
		{arenaBase + 1, 1, 0},
		{3 * arenaBase, 1, 2*arenaBase - 1},
		{3*arenaBase + 1, 2, 0},
		{^uint32(0), arenaSegments - 1, arenaBase - 2},
	}
	for _, c := range cases {
		seg, off := locate(c.idx)
		require.Equal(t, c.seg, seg, "segment of %d", c.idx)
		require.Equal(t, c.off, off, "offset of %d", c.idx)
		require.Less(t, off, arenaBase<<seg)
	}
}

func TestStack_LIFO(t *testing.T) {
	var s Stack[int]
	require.True(t, s.Empty())
	_, ok := s.TryPop()
	require.False(t, ok)

	const n = 1000
	for i := range n {
		s.Push(i)
	}
	require.False(t, s.Empty())
	for i := n - 1; i >= 0; i-- {
		v, ok := s.TryPop()
		require.True(t, ok)
		require.Equal(t, i, v)
	}
	_, ok = s.TryPop()
	require.False(t, ok)
	require.True(t, s.Empty())
}

func TestStack_ProducerToConsumer(t *testing.T) {
	s := NewStack[int]()
	const n = 500
	pushed := make(chan struct{})
	go func() {
		for i := range n {
			s.Push(i)
		}
		close(pushed)
	}()
	<-pushed

	got := make([]int, 0, n)
	done := goDone(func() {
		for {
			v, ok := s.TryPop()
			if !ok {
				return
			}
			got = append(got, v)
		}
	})
	waitDone(t, done, 5*time.Second, "consumer")

	require.Len(t, got, n)
	for i, v := range got {
		require.Equal(t, n-1-i, v)
	}
}

func TestStack_RecyclesNodes(t *testing.T) {
	var s Stack[string]
	for range 1000 {
		s.Push("x")
		s.Push("y")
		_, _ = s.TryPop()
		_, _ = s.TryPop()
	}
	require.Equal(t, 2, s.Nodes())

	for range 3 * arenaBase {
		s.Push("z")
	}
	require.Equal(t, 3*arenaBase, s.Nodes())
}

func TestStack_ConcurrentNoLossNoDup(t *testing.T) {
	var s Stack[int]
	producers, consumers := 8, 8
	perProducer := loops(20000)
	total := producers * perProducer

	var popped atomic.Int64
	results := make([][]int, consumers)
	var pwg, cwg sync.WaitGroup
	var producing atomic.Bool
	producing.Store(true)

	pwg.Add(producers)
	for p := range producers {
		go func() {
			defer pwg.Done()
			for i := range perProducer {
				s.Push(p*perProducer + i)
			}
		}()
	}
	cwg.Add(consumers)
	for c := range consumers {
		go func() {
			defer cwg.Done()
			for {
				v, ok := s.TryPop()
				if ok {
					results[c] = append(results[c], v)
					popped.Add(1)
					continue
				}
				if !producing.Load() && s.Empty() {
					return
				}
				runtime.Gosched()
			}
		}()
	}
	pwg.Wait()
	producing.Store(false)
	cwg.Wait()

	require.Equal(t, int64(total), popped.Load())
	all := slices.Concat(results...)
	slices.Sort(all)
	for i, v := range all {
		require.Equal(t, i, v, "value lost or duplicated")
	}
}

func TestStack_ChurnABA(t *testing.T) {
	// Every goroutine pushes and pops its own tagged values as fast as it
	// can, which keeps the same few nodes cycling through the free list.
	var s Stack[uint64]
	const workers = 8
	rounds := loops(50000)

	seen := make([][]uint64, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := range workers {
		go func() {
			defer wg.Done()
			for i := range rounds {
				s.Push(uint64(w)<<32 | uint64(i))
				if fastrand.Uint32n(4) == 0 {
					runtime.Gosched()
				}
				v, ok := s.TryPop()
				if !ok {
					t.Errorf("pop after own push found the stack empty")
					return
				}
				seen[w] = append(seen[w], v)
			}
		}()
	}
	wg.Wait()

	require.True(t, s.Empty())
	all := make(map[uint64]bool, workers*rounds)
	for _, vs := range seen {
		for _, v := range vs {
			require.False(t, all[v], "value %#x popped twice", v)
			all[v] = true
		}
	}
	require.Len(t, all, workers*rounds)
	// At most one value per worker is on the stack, plus nodes in transit
	// to the free list.
	require.LessOrEqual(t, s.Nodes(), 2*workers)
}

type tracked struct {
	id  int
	pad [64]byte
}

func TestStack_DoesNotRetainPoppedValues(t *testing.T) {
	var s Stack[*tracked]
	const n = 100
	var released atomic.Int32
	for i := range n {
		p := &tracked{id: i}
		runtime.AddCleanup(p, func(int) { released.Add(1) }, i)
		s.Push(p)
	}
	for range n {
		v, ok := s.TryPop()
		require.True(t, ok)
		require.NotNil(t, v)
	}

	require.Eventually(t, func() bool {
		runtime.GC()
		return released.Load() == n
	}, 5*time.Second, 10*time.Millisecond)
}
