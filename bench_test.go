package srvcore

import (
	"context"
	"sync"
	"testing"
)

func BenchmarkLockWrite(b *testing.B) {
	b.ReportAllocs()
	l := NewLock()
	counter := 0
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			l.WriteLock()
			counter++
			l.WriteUnlock()
		}
	})
}

func BenchmarkLockRead(b *testing.B) {
	b.ReportAllocs()
	l := NewLock()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			l.ReadLock()
			l.ReadUnlock()
		}
	})
}

func BenchmarkLockReadMostly(b *testing.B) {
	b.ReportAllocs()
	l := NewLock()
	counter := 0
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			if i%16 == 0 {
				l.WriteLock()
				counter++
				l.WriteUnlock()
			} else {
				l.ReadLock()
				_ = counter
				l.ReadUnlock()
			}
			i++
		}
	})
}

func BenchmarkRWMutexReadMostly(b *testing.B) {
	b.ReportAllocs()
	var mu sync.RWMutex
	counter := 0
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			if i%16 == 0 {
				mu.Lock()
				counter++
				mu.Unlock()
			} else {
				mu.RLock()
				_ = counter
				mu.RUnlock()
			}
			i++
		}
	})
}

func BenchmarkStackPushPop(b *testing.B) {
	b.ReportAllocs()
	var s Stack[int]
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			s.Push(i)
			_, _ = s.TryPop()
			i++
		}
	})
}

func BenchmarkBlockingQueuePushPop(b *testing.B) {
	b.ReportAllocs()
	var q BlockingQueue[int]
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			q.Push(i)
			_, _ = q.TryPop()
			i++
		}
	})
}

func BenchmarkBlockingQueueHandoff(b *testing.B) {
	b.ReportAllocs()
	q := NewBlockingQueue[int]()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, ok := q.PopBlocking(ctx); !ok {
				return
			}
		}
	}()
	b.ResetTimer()
	for i := range b.N {
		q.Push(i)
	}
	b.StopTimer()
	cancel()
	q.WakeAll()
	<-done
}

func BenchmarkLockQueuePushPop(b *testing.B) {
	b.ReportAllocs()
	var q LockQueue[int]
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			q.Push(i)
			_, _ = q.TryPop()
			i++
		}
	})
}
