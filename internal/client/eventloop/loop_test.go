package eventloop

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestLoopRunsInOrder(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got []int
	done := make(chan struct{})
	for i := 0; i < 100; i++ {
		i := i
		l.Dispatch(func() { got = append(got, i) })
	}
	l.Dispatch(func() { close(done) })

	go l.Run(ctx)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("got[%d]=%d", i, v)
		}
	}
}

func TestLoopHandlersDoNotOverlap(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	var wg sync.WaitGroup
	running := 0
	overlap := false
	counter := 0
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				l.Dispatch(func() {
					running++
					if running > 1 {
						overlap = true
					}
					counter++
					running--
				})
			}
		}()
	}
	wg.Wait()

	done := make(chan struct{})
	l.Dispatch(func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
	if overlap || counter != 400 {
		t.Fatalf("overlap=%v counter=%d", overlap, counter)
	}
}

func TestLoopDropsAfterStop(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped
	l.Dispatch(func() { t.Error("handler ran after loop stopped") })
}
