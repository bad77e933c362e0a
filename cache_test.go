package catalogcache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	c "github.com/unkn0wn-root/catalogcache/codec"
	pr "github.com/unkn0wn-root/catalogcache/provider"
)

type memEntry struct {
	v   []byte
	exp time.Time // zero => no TTL
}

type memProvider struct {
	mu sync.Mutex
	m  map[string]memEntry
}

var _ pr.Provider = (*memProvider)(nil)

func newMemProvider() *memProvider { return &memProvider{m: make(map[string]memEntry)} }

func (p *memProvider) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.m[key]
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		delete(p.m, key)
		return nil, false, nil
	}
	return e.v, true, nil
}

func (p *memProvider) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	p.m[key] = memEntry{v: value, exp: exp}
	return true, nil
}

func (p *memProvider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.m, key)
	return nil
}

func (p *memProvider) Close(_ context.Context) error { return nil }

func (p *memProvider) raw(key string) ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.m[key]
	return e.v, ok
}

func (p *memProvider) put(key string, value []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.m[key] = memEntry{v: value}
}

type recordHooks struct {
	mu          sync.Mutex
	selfHeals   map[string]int // reason -> count
	setRejected int
	retries     int
	superseded  int
}

func newRecordHooks() *recordHooks { return &recordHooks{selfHeals: make(map[string]int)} }

func (h *recordHooks) SelfHeal(_, reason string) {
	h.mu.Lock()
	h.selfHeals[reason]++
	h.mu.Unlock()
}

func (h *recordHooks) ProviderSetRejected(string) {
	h.mu.Lock()
	h.setRejected++
	h.mu.Unlock()
}

func (h *recordHooks) FetchRetry(string, int, error) {
	h.mu.Lock()
	h.retries++
	h.mu.Unlock()
}

func (h *recordHooks) FetchSuperseded(string) {
	h.mu.Lock()
	h.superseded++
	h.mu.Unlock()
}

func (h *recordHooks) healCount(reason string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.selfHeals[reason]
}

type item struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func newTestStore(t *testing.T, mp pr.Provider, optsOpt func(*Options)) *Store {
	t.Helper()
	opts := Options{Provider: mp}
	if optsOpt != nil {
		optsOpt(&opts)
	}
	s, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func newItemView(s *Store) *View[item] {
	return NewView[item](s, TagProduct, c.JSON[item]{})
}

// ==============================
// Key identity
// ==============================

func TestKeyCanonicalization(t *testing.T) {
	if ListKey(" phone ", "", "") != ListKey("phone", "", "") {
		t.Fatalf("search text should be trimmed in the key")
	}
	// partial sort specs collapse to the unsorted slot
	if ListKey("x", "price", "") != ListKey("x", "", "") {
		t.Fatalf("sort field without direction should be dropped")
	}
	if ListKey("x", "", "asc") != ListKey("x", "", "") {
		t.Fatalf("direction without sort field should be dropped")
	}
	if ListKey("x", "price", "asc") == ListKey("x", "price", "desc") {
		t.Fatalf("different sort parameters must be independent slots")
	}
	if ListKey("x", "", "").Storage() == DetailKey(1).Storage() {
		t.Fatalf("tags must not collide in storage keys")
	}
	if got := DetailKey(7).ID(); got != 7 {
		t.Fatalf("DetailKey ID = %d", got)
	}
}

// ==============================
// Write / read / remove
// ==============================

func TestWriteReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newMemProvider(), nil)
	defer s.Close(ctx)
	v := newItemView(s)

	k := DetailKey(1)
	if _, ok, err := v.Read(ctx, k); err != nil || ok {
		t.Fatalf("expected miss on empty store, ok=%v err=%v", ok, err)
	}

	want := item{ID: 1, Name: "Ada"}
	if err := v.Write(ctx, k, want); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, ok, err := v.Read(ctx, k)
	if err != nil || !ok || got != want {
		t.Fatalf("Read after write: ok=%v err=%v got=%+v", ok, err, got)
	}

	st, ok := s.State(k)
	if !ok || st.Status != StatusSuccess || !st.HasData || st.Seq != 1 {
		t.Fatalf("unexpected state after write: %+v ok=%v", st, ok)
	}

	if err := v.Remove(ctx, k); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok := s.State(k); ok {
		t.Fatalf("key should be untracked after remove")
	}
	if _, ok, _ := v.Read(ctx, k); ok {
		t.Fatalf("read after remove should miss")
	}
}

func TestViewRejectsForeignTag(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newMemProvider(), nil)
	defer s.Close(ctx)
	v := newItemView(s) // bound to TagProduct

	if err := v.Write(ctx, ListKey("", "", ""), item{}); !errors.Is(err, ErrTagMismatch) {
		t.Fatalf("expected ErrTagMismatch, got %v", err)
	}
}

// ==============================
// Fetch path
// ==============================

func TestFetchServesFreshCache(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newMemProvider(), nil)
	defer s.Close(ctx)
	v := newItemView(s)

	k := DetailKey(1)
	calls := 0
	load := func(context.Context) (item, error) {
		calls++
		return item{ID: 1, Name: "Ada"}, nil
	}

	if _, err := v.Fetch(ctx, k, load); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	got, err := v.Fetch(ctx, k, load)
	if err != nil {
		t.Fatalf("Fetch (cached): %v", err)
	}
	if calls != 1 {
		t.Fatalf("loader ran %d times, want 1", calls)
	}
	if got.Name != "Ada" {
		t.Fatalf("unexpected cached value: %+v", got)
	}
}

func TestFetchReloadsWhenStale(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newMemProvider(), func(o *Options) {
		o.StaleAfter = time.Nanosecond
	})
	defer s.Close(ctx)
	v := newItemView(s)

	k := DetailKey(1)
	calls := 0
	load := func(context.Context) (item, error) {
		calls++
		return item{ID: 1, Name: "Ada"}, nil
	}

	if _, err := v.Fetch(ctx, k, load); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	time.Sleep(time.Millisecond)
	if _, err := v.Fetch(ctx, k, load); err != nil {
		t.Fatalf("Fetch (stale): %v", err)
	}
	if calls != 2 {
		t.Fatalf("loader ran %d times, want 2", calls)
	}
}

func TestFetchRetriesReadOnce(t *testing.T) {
	ctx := context.Background()
	hooks := newRecordHooks()
	s := newTestStore(t, newMemProvider(), func(o *Options) { o.Hooks = hooks })
	defer s.Close(ctx)
	v := newItemView(s)

	calls := 0
	got, err := v.Fetch(ctx, DetailKey(1), func(context.Context) (item, error) {
		calls++
		if calls == 1 {
			return item{}, errors.New("flaky")
		}
		return item{ID: 1, Name: "Ada"}, nil
	})
	if err != nil {
		t.Fatalf("Fetch should succeed on retry: %v", err)
	}
	if calls != 2 {
		t.Fatalf("loader ran %d times, want 2 (one retry)", calls)
	}
	if got.Name != "Ada" {
		t.Fatalf("unexpected value: %+v", got)
	}
	if hooks.retries != 1 {
		t.Fatalf("FetchRetry hook fired %d times, want 1", hooks.retries)
	}
}

func TestFetchErrorKeepsPriorData(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newMemProvider(), func(o *Options) {
		o.StaleAfter = time.Nanosecond
		o.RetryReads = -1
	})
	defer s.Close(ctx)
	v := newItemView(s)

	k := DetailKey(1)
	if _, err := v.Fetch(ctx, k, func(context.Context) (item, error) {
		return item{ID: 1, Name: "Ada"}, nil
	}); err != nil {
		t.Fatalf("seed Fetch: %v", err)
	}
	time.Sleep(time.Millisecond)

	boom := errors.New("remote down")
	if _, err := v.Fetch(ctx, k, func(context.Context) (item, error) {
		return item{}, boom
	}); !errors.Is(err, boom) {
		t.Fatalf("expected loader error, got %v", err)
	}

	st, ok := s.State(k)
	if !ok || st.Status != StatusError || !errors.Is(st.Err, boom) {
		t.Fatalf("entry should be in error state: %+v", st)
	}
	// stale data is still readable while in error state
	if got, ok, _ := v.Read(ctx, k); !ok || got.Name != "Ada" {
		t.Fatalf("prior data should survive a failed refetch, got ok=%v %+v", ok, got)
	}
}

func TestInvalidateSupersedesInFlightFetch(t *testing.T) {
	ctx := context.Background()
	hooks := newRecordHooks()
	s := newTestStore(t, newMemProvider(), func(o *Options) { o.Hooks = hooks })
	defer s.Close(ctx)
	v := newItemView(s)

	k := DetailKey(1)
	started := make(chan struct{})
	release := make(chan struct{})

	done := make(chan item, 1)
	go func() {
		got, _ := v.Fetch(ctx, k, func(context.Context) (item, error) {
			close(started)
			<-release
			return item{ID: 1, Name: "old"}, nil
		})
		done <- got
	}()

	<-started
	s.Invalidate(k)
	close(release)

	if got := <-done; got.Name != "old" {
		t.Fatalf("caller should still receive the loaded value, got %+v", got)
	}
	// but the superseded result must not have been stored
	if st, ok := s.State(k); ok && st.HasData {
		t.Fatalf("superseded fetch result must not populate the cache: %+v", st)
	}
	if hooks.superseded == 0 {
		t.Fatalf("FetchSuperseded hook should have fired")
	}
}

func TestDisabledStorePassesThrough(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newMemProvider(), func(o *Options) { o.Disabled = true })
	defer s.Close(ctx)
	v := newItemView(s)

	calls := 0
	load := func(context.Context) (item, error) {
		calls++
		return item{ID: 1}, nil
	}
	for i := 0; i < 3; i++ {
		if _, err := v.Fetch(ctx, DetailKey(1), load); err != nil {
			t.Fatalf("Fetch: %v", err)
		}
	}
	if calls != 3 {
		t.Fatalf("disabled store must pass every fetch through, got %d calls", calls)
	}
	if s.Len() != 0 {
		t.Fatalf("disabled store must not track entries")
	}
}

// ==============================
// Bulk updates
// ==============================

func TestUpdateMatchingSkipsUnchangedEntries(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newMemProvider(), nil)
	defer s.Close(ctx)
	v := newItemView(s)

	k := DetailKey(1)
	if err := v.Write(ctx, k, item{ID: 1, Name: "Ada"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	before, _ := s.State(k)

	var events []Event
	cancel := s.Subscribe(k, func(ev Event) { events = append(events, ev) })
	defer cancel()

	if err := v.UpdateMatching(ctx, func(old item, ok bool) (item, bool) {
		return old, ok // identity
	}); err != nil {
		t.Fatalf("UpdateMatching: %v", err)
	}

	after, _ := s.State(k)
	if after.Seq != before.Seq {
		t.Fatalf("identity update must not bump seq: %d -> %d", before.Seq, after.Seq)
	}
	if len(events) != 0 {
		t.Fatalf("identity update must not notify, got %v", events)
	}
}

func TestUpdateMatchingClearsEntries(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newMemProvider(), nil)
	defer s.Close(ctx)
	v := newItemView(s)

	k := DetailKey(1)
	if err := v.Write(ctx, k, item{ID: 1, Name: "Ada"}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var events []Event
	cancel := s.Subscribe(k, func(ev Event) { events = append(events, ev) })
	defer cancel()

	if err := v.UpdateMatching(ctx, func(old item, ok bool) (item, bool) {
		return item{}, false // clear everything
	}); err != nil {
		t.Fatalf("UpdateMatching: %v", err)
	}

	if _, ok, _ := v.Read(ctx, k); ok {
		t.Fatalf("cleared entry must read as absent")
	}
	st, ok := s.State(k)
	if !ok {
		t.Fatalf("cleared key must stay tracked")
	}
	if st.HasData {
		t.Fatalf("cleared entry must not claim data")
	}
	if len(events) != 1 || events[0].Reason != ReasonClear {
		t.Fatalf("expected one clear event, got %v", events)
	}
}

func TestUpdateMatchingLeavesAbsentAbsent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newMemProvider(), nil)
	defer s.Close(ctx)
	v := newItemView(s)

	k := DetailKey(1)
	s.Subscribe(k, func(Event) {}) // tracked, no data

	calls := 0
	if err := v.UpdateMatching(ctx, func(old item, ok bool) (item, bool) {
		calls++
		if ok {
			t.Fatalf("updater saw data on an empty entry")
		}
		return old, false
	}); err != nil {
		t.Fatalf("UpdateMatching: %v", err)
	}
	if calls != 1 {
		t.Fatalf("updater should visit tracked empty entries once, got %d", calls)
	}
	if st, _ := s.State(k); st.HasData {
		t.Fatalf("absent entry must stay absent")
	}
}

func TestUpdateMatchingOnlyTouchesTag(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newMemProvider(), nil)
	defer s.Close(ctx)

	details := newItemView(s)
	lists := NewView[item](s, TagProducts, c.JSON[item]{})

	if err := details.Write(ctx, DetailKey(1), item{ID: 1, Name: "detail"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := lists.Write(ctx, ListKey("", "", ""), item{ID: 2, Name: "list"}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := lists.UpdateMatching(ctx, func(old item, ok bool) (item, bool) {
		old.Name = "patched"
		return old, ok
	}); err != nil {
		t.Fatalf("UpdateMatching: %v", err)
	}

	if got, _, _ := details.Read(ctx, DetailKey(1)); got.Name != "detail" {
		t.Fatalf("detail entry touched by list patch: %+v", got)
	}
	if got, _, _ := lists.Read(ctx, ListKey("", "", "")); got.Name != "patched" {
		t.Fatalf("list entry not patched: %+v", got)
	}
}

// ==============================
// Self-heal
// ==============================

func TestSelfHealOnCorruptSnapshot(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	hooks := newRecordHooks()
	s := newTestStore(t, mp, func(o *Options) { o.Hooks = hooks })
	defer s.Close(ctx)
	v := newItemView(s)

	k := DetailKey(1)
	if err := v.Write(ctx, k, item{ID: 1, Name: "Ada"}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	mp.put(k.Storage(), []byte("not a frame"))

	if _, ok, err := v.Read(ctx, k); err != nil || ok {
		t.Fatalf("corrupt snapshot must miss, ok=%v err=%v", ok, err)
	}
	if _, ok := mp.raw(k.Storage()); ok {
		t.Fatalf("corrupt snapshot should have been deleted")
	}
	if hooks.healCount("corrupt") != 1 {
		t.Fatalf("SelfHeal(corrupt) fired %d times, want 1", hooks.healCount("corrupt"))
	}
}

func TestSelfHealOnStaleSequence(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	hooks := newRecordHooks()
	s := newTestStore(t, mp, func(o *Options) { o.Hooks = hooks })
	defer s.Close(ctx)
	v := newItemView(s)

	k := DetailKey(1)
	if err := v.Write(ctx, k, item{ID: 1, Name: "v1"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	stale, _ := mp.raw(k.Storage())
	staleCopy := append([]byte(nil), stale...)

	if err := v.Write(ctx, k, item{ID: 1, Name: "v2"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	// a shared provider hands back bytes from the older write
	mp.put(k.Storage(), staleCopy)

	if _, ok, _ := v.Read(ctx, k); ok {
		t.Fatalf("stale-sequence snapshot must not be served")
	}
	if hooks.healCount("seq_mismatch") != 1 {
		t.Fatalf("SelfHeal(seq_mismatch) fired %d times, want 1", hooks.healCount("seq_mismatch"))
	}
}

func TestSelfHealOnProviderEviction(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	hooks := newRecordHooks()
	s := newTestStore(t, mp, func(o *Options) { o.Hooks = hooks })
	defer s.Close(ctx)
	v := newItemView(s)

	k := DetailKey(1)
	if err := v.Write(ctx, k, item{ID: 1, Name: "Ada"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	_ = mp.Del(ctx, k.Storage()) // provider expired/evicted the snapshot

	if _, ok, _ := v.Read(ctx, k); ok {
		t.Fatalf("evicted snapshot must read as absent")
	}
	if hooks.healCount("provider_miss") != 1 {
		t.Fatalf("SelfHeal(provider_miss) fired %d times, want 1", hooks.healCount("provider_miss"))
	}
}

// ==============================
// Subscriptions
// ==============================

func TestSubscribeReceivesOrderedEvents(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newMemProvider(), func(o *Options) {
		o.StaleAfter = time.Nanosecond
		o.RetryReads = -1
	})
	defer s.Close(ctx)
	v := newItemView(s)

	k := DetailKey(1)
	var reasons []Reason
	cancel := s.Subscribe(k, func(ev Event) { reasons = append(reasons, ev.Reason) })

	if _, err := v.Fetch(ctx, k, func(context.Context) (item, error) {
		return item{ID: 1}, nil
	}); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	time.Sleep(time.Millisecond)
	boom := errors.New("down")
	_, _ = v.Fetch(ctx, k, func(context.Context) (item, error) { return item{}, boom })

	want := []Reason{ReasonLoading, ReasonWrite, ReasonLoading, ReasonError}
	if len(reasons) != len(want) {
		t.Fatalf("event reasons = %v, want %v", reasons, want)
	}
	for i := range want {
		if reasons[i] != want[i] {
			t.Fatalf("event %d = %q, want %q (all: %v)", i, reasons[i], want[i], reasons)
		}
	}

	cancel()
	if err := v.Write(ctx, k, item{ID: 1, Name: "after cancel"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(reasons) != len(want) {
		t.Fatalf("cancelled subscriber still notified: %v", reasons)
	}
}
