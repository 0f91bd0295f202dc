package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"tunnelwatch/internal/client/eventloop"
	"tunnelwatch/internal/client/store"
	"tunnelwatch/pkg/model"
)

type recorder struct {
	added   []store.Item
	evicted []store.Item
	notices []string
	calls   int
}

func (r *recorder) EntriesChanged(added, evicted []store.Item) {
	r.calls++
	r.added = append(r.added, added...)
	r.evicted = append(r.evicted, evicted...)
}

func (r *recorder) Notice(msg string) { r.notices = append(r.notices, msg) }

func e(path string) model.LogEntry {
	return model.LogEntry{Method: "GET", Path: path, Status: 200}
}

func raw(path string) []byte {
	return []byte(fmt.Sprintf(`{"method":"GET","path":%q,"status":200}`, path))
}

func order(s *store.Store) []string {
	var out []string
	for _, it := range s.Snapshot() {
		out = append(out, it.Entry.Path)
	}
	return out
}

func TestBootstrapThenLive(t *testing.T) {
	s := store.New(10)
	r := &recorder{}
	in := New(s, r)

	in.Bootstrap([]model.LogEntry{e("/e1"), e("/e2"), e("/e3")})
	if !in.Push(raw("/live")) {
		t.Fatal("push rejected")
	}
	got := fmt.Sprint(order(s))
	if got != "[/live /e3 /e2 /e1]" {
		t.Fatalf("order=%s", got)
	}
	if r.calls != 2 || len(r.added) != 4 {
		t.Fatalf("calls=%d added=%d", r.calls, len(r.added))
	}
}

func TestLiveBeforeBootstrapIsDeferred(t *testing.T) {
	s := store.New(10)
	r := &recorder{}
	in := New(s, r)

	in.Push(raw("/live"))
	if s.Len() != 0 || in.Pending() != 1 || r.calls != 0 {
		t.Fatalf("live entry applied before history: len=%d pending=%d", s.Len(), in.Pending())
	}
	in.Bootstrap([]model.LogEntry{e("/e1"), e("/e2"), e("/e3")})

	got := fmt.Sprint(order(s))
	if got != "[/live /e3 /e2 /e1]" {
		t.Fatalf("order=%s", got)
	}
	if r.calls != 1 {
		t.Fatalf("bootstrap should be a single change notification, calls=%d", r.calls)
	}
}

func TestMalformedPushLeavesStoreUnchanged(t *testing.T) {
	s := store.New(10)
	r := &recorder{}
	in := New(s, r)
	in.Bootstrap([]model.LogEntry{e("/a")})
	before := s.Snapshot()
	calls := r.calls

	for _, bad := range [][]byte{[]byte("garbage"), []byte("{"), []byte("[]"), nil} {
		if in.Push(bad) {
			t.Fatalf("Push(%q) accepted", bad)
		}
	}
	after := s.Snapshot()
	if len(after) != len(before) || after[0].Seq != before[0].Seq {
		t.Fatalf("store changed: %v -> %v", before, after)
	}
	if r.calls != calls || in.Dropped() != 4 {
		t.Fatalf("calls=%d dropped=%d", r.calls, in.Dropped())
	}
}

func TestBootstrapFailedReleasesPending(t *testing.T) {
	s := store.New(10)
	r := &recorder{}
	in := New(s, r)
	in.Push(raw("/live"))
	in.BootstrapFailed(errors.New("boom"))
	if len(r.notices) != 1 || !in.Bootstrapped() {
		t.Fatalf("notices=%v", r.notices)
	}
	if fmt.Sprint(order(s)) != "[/live]" {
		t.Fatalf("order=%v", order(s))
	}
}

func TestBootstrapOverCapacityReportsOnlySurvivors(t *testing.T) {
	s := store.New(3)
	r := &recorder{}
	in := New(s, r)
	in.Bootstrap([]model.LogEntry{e("/1"), e("/2"), e("/3"), e("/4"), e("/5")})
	if len(r.added) != 3 || len(r.evicted) != 2 {
		t.Fatalf("added=%d evicted=%d", len(r.added), len(r.evicted))
	}
	if fmt.Sprint(order(s)) != "[/5 /4 /3]" {
		t.Fatalf("order=%v", order(s))
	}
}

func TestDuplicateBootstrapIgnored(t *testing.T) {
	s := store.New(10)
	in := New(s, &recorder{})
	in.Bootstrap([]model.LogEntry{e("/a")})
	in.Bootstrap([]model.LogEntry{e("/b")})
	if fmt.Sprint(order(s)) != "[/a]" {
		t.Fatalf("order=%v", order(s))
	}
}

// fakeSource 让测试控制历史接口返回的时机。
type fakeSource struct {
	history  []model.LogEntry
	release  chan struct{}
	messages [][]byte
	liveErr  error

	mu        sync.Mutex
	liveCalls int
}

func (f *fakeSource) History(ctx context.Context) ([]model.LogEntry, error) {
	select {
	case <-f.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return f.history, nil
}

func (f *fakeSource) Live(ctx context.Context, onMessage func([]byte)) error {
	f.mu.Lock()
	f.liveCalls++
	f.mu.Unlock()
	for _, m := range f.messages {
		onMessage(m)
	}
	if f.liveErr != nil {
		return f.liveErr
	}
	<-ctx.Done()
	return nil
}

func waitFor(t *testing.T, loop *eventloop.Loop, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		ok := make(chan bool, 1)
		loop.Dispatch(func() { ok <- cond() })
		if <-ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestPumpLiveDuringFetchEndsUpFirst(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loop := eventloop.New()
	go loop.Run(ctx)

	s := store.New(10)
	r := &recorder{}
	in := New(s, r)
	src := &fakeSource{
		history:  []model.LogEntry{e("/e1"), e("/e2"), e("/e3")},
		release:  make(chan struct{}),
		messages: [][]byte{raw("/live"), []byte("junk")},
	}
	p := NewPump(src, in, loop)
	p.Start(ctx)

	waitFor(t, loop, func() bool { return in.Pending() == 1 })
	close(src.release)
	waitFor(t, loop, func() bool { return in.Bootstrapped() })

	done := make(chan string, 1)
	loop.Dispatch(func() { done <- fmt.Sprint(order(s)) })
	if got := <-done; got != "[/live /e3 /e2 /e1]" {
		t.Fatalf("order=%s", got)
	}
}

func TestPumpSurfacesTransportError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loop := eventloop.New()
	go loop.Run(ctx)

	s := store.New(10)
	r := &recorder{}
	in := New(s, r)
	src := &fakeSource{release: make(chan struct{}), liveErr: errors.New("connection reset")}
	close(src.release)
	p := NewPump(src, in, loop)
	p.Start(ctx)

	waitFor(t, loop, func() bool { return len(r.notices) == 1 })
	waitFor(t, loop, func() bool { return !p.Live() })

	if !p.Reconnect(ctx) {
		t.Fatal("reconnect refused after disconnect")
	}
	waitFor(t, loop, func() bool { return len(r.notices) == 2 })
	src.mu.Lock()
	calls := src.liveCalls
	src.mu.Unlock()
	if calls != 2 {
		t.Fatalf("liveCalls=%d", calls)
	}
}

// heldDispatcher 攒下投递的函数，由测试决定何时执行。
type heldDispatcher struct {
	mu  sync.Mutex
	fns []func()
}

func (d *heldDispatcher) Dispatch(fn func()) {
	d.mu.Lock()
	d.fns = append(d.fns, fn)
	d.mu.Unlock()
}

func (d *heldDispatcher) pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.fns)
}

func (d *heldDispatcher) runAll() {
	d.mu.Lock()
	fns := d.fns
	d.fns = nil
	d.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func TestPumpStaysLiveUntilNoticeDelivered(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := &heldDispatcher{}
	r := &recorder{}
	in := New(store.New(10), r)
	src := &fakeSource{release: make(chan struct{}), liveErr: errors.New("connection reset")}
	close(src.release)
	p := NewPump(src, in, d)
	p.Start(ctx)

	// 历史结果和断开提示都已投递，但还没执行。
	deadline := time.Now().Add(2 * time.Second)
	for d.pending() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("pending=%d", d.pending())
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !p.Live() {
		t.Fatal("live cleared before the notice was delivered")
	}
	if p.Reconnect(ctx) {
		t.Fatal("reconnect accepted while the old notice is still queued")
	}

	d.runAll()
	if len(r.notices) != 1 || p.Live() {
		t.Fatalf("notices=%v live=%v", r.notices, p.Live())
	}
	if !p.Reconnect(ctx) {
		t.Fatal("reconnect refused after notice delivered")
	}
	cancel()
	p.Wait()
}
