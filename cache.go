package catalogcache

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/unkn0wn-root/catalogcache/internal/wire"
	pr "github.com/unkn0wn-root/catalogcache/provider"
)

// Store is the process-wide query cache. One instance is constructed at
// session start and shared by reference; tests build a fresh one each.
//
// A single mutex covers the entry index and snapshot storage, so reads,
// writes, and whole mutation patches are serialized: no two patches can
// interleave mid-application. Loaders run outside the lock; they are the only
// suspension points.
type Store struct {
	provider    pr.Provider
	log         Logger
	hooks       Hooks
	staleAfter  time.Duration
	snapshotTTL time.Duration
	retryReads  int
	enabled     bool

	mu      sync.Mutex
	entries map[Key]*entry

	sf singleflight.Group
}

type entry struct {
	key       Key
	status    Status
	err       error
	hasData   bool
	seq       uint64 // bumped on every data write or clear; embedded in the wire frame
	token     uint64 // bumped by Invalidate; in-flight fetches holding an old token discard their result
	fetchedAt time.Time

	subs    map[int]func(Event)
	nextSub int
}

// notification pairs an event with the subscriber set captured while the lock
// was held, so delivery stays ordered even though it runs unlocked.
type notification struct {
	ev  Event
	fns []func(Event)
}

func (s *Store) Enabled() bool { return s.enabled }

// Len returns the number of tracked keys (entries may be data-absent).
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) Close(ctx context.Context) error {
	return s.provider.Close(ctx)
}

// State reports an entry's bookkeeping; ok=false when the key is untracked.
func (s *Store) State(key Key) (EntryState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return EntryState{}, false
	}
	return EntryState{
		Key:       e.key,
		Status:    e.status,
		Err:       e.err,
		HasData:   e.hasData,
		Seq:       e.seq,
		FetchedAt: e.fetchedAt,
	}, true
}

// Subscribe registers fn for events on key and returns a cancel func.
// fn is invoked synchronously in the same pass as each change, without the
// store lock held; it must not block.
func (s *Store) Subscribe(key Key, fn func(Event)) (cancel func()) {
	s.mu.Lock()
	e := s.ensureLocked(key)
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if cur, ok := s.entries[key]; ok {
				delete(cur.subs, id)
			}
			s.mu.Unlock()
		})
	}
}

// Invalidate marks the entry stale and supersedes any in-flight fetch for it.
// Cached data is kept and served to plain reads until the next Fetch reloads.
func (s *Store) Invalidate(key Key) {
	s.mu.Lock()
	if e, ok := s.entries[key]; ok {
		e.fetchedAt = time.Time{}
		e.token++
	}
	s.mu.Unlock()
	s.sf.Forget(key.Storage())
}

func (s *Store) ensureLocked(key Key) *entry {
	if e, ok := s.entries[key]; ok {
		return e
	}
	e := &entry{key: key, subs: make(map[int]func(Event))}
	s.entries[key] = e
	return e
}

// snapshotLocked loads and validates the entry's snapshot from the provider.
// Invalid bytes (corrupt frame, foreign tag, stale sequence) are deleted and
// the entry degrades to data-absent: heal on read instead of serving garbage.
func (s *Store) snapshotLocked(ctx context.Context, e *entry) ([]byte, bool, error) {
	if !e.hasData {
		return nil, false, nil
	}
	sk := e.key.Storage()
	raw, ok, err := s.provider.Get(ctx, sk)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		// expired or evicted by the provider's own lifetime policy
		e.hasData = false
		s.hooks.SelfHeal(sk, "provider_miss")
		return nil, false, nil
	}
	tag, seq, payload, derr := wire.Decode(raw)
	if derr != nil || Tag(tag) != e.key.Tag() {
		_ = s.provider.Del(ctx, sk)
		e.hasData = false
		s.hooks.SelfHeal(sk, "corrupt")
		return nil, false, nil
	}
	if seq != e.seq {
		_ = s.provider.Del(ctx, sk)
		e.hasData = false
		s.hooks.SelfHeal(sk, "seq_mismatch")
		return nil, false, nil
	}
	return payload, true, nil
}

// storeLocked persists payload as the entry's new snapshot and marks success.
func (s *Store) storeLocked(ctx context.Context, e *entry, payload []byte) error {
	e.seq++
	e.hasData = true
	e.status = StatusSuccess
	e.err = nil
	e.fetchedAt = time.Now()

	sk := e.key.Storage()
	frame := wire.Encode(byte(e.key.Tag()), e.seq, payload)
	ok, err := s.provider.Set(ctx, sk, frame, int64(len(frame)), s.snapshotTTL)
	if err != nil {
		// index says data present; the next read misses and self-heals
		return err
	}
	if !ok {
		s.hooks.ProviderSetRejected(sk)
		s.log.Debug("snapshot rejected by provider (pressure)", Fields{"key": sk})
	}
	return nil
}

func (s *Store) eventLocked(e *entry, reason Reason) notification {
	fns := make([]func(Event), 0, len(e.subs))
	ids := make([]int, 0, len(e.subs))
	for id := range e.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		fns = append(fns, e.subs[id])
	}
	return notification{ev: Event{Key: e.key, Seq: e.seq, Reason: reason}, fns: fns}
}

func deliver(ns []notification) {
	for _, n := range ns {
		for _, fn := range n.fns {
			fn(n.ev)
		}
	}
}

// read returns the entry's payload, absent when the key is untracked or the
// entry holds no data.
func (s *Store) read(ctx context.Context, key Key) ([]byte, bool, error) {
	if !s.enabled {
		return nil, false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	return s.snapshotLocked(ctx, e)
}

// write replaces the entry's data snapshot and notifies its subscribers.
func (s *Store) write(ctx context.Context, key Key, payload []byte) error {
	if !s.enabled {
		return nil
	}
	s.mu.Lock()
	e := s.ensureLocked(key)
	err := s.storeLocked(ctx, e, payload)
	n := s.eventLocked(e, ReasonWrite)
	s.mu.Unlock()

	deliver([]notification{n})
	return err
}

// bulkUpdater is applied to every entry matched by a tag pattern. ok reports
// whether the entry currently holds data; keep=false clears it. Returning
// bytes equal to old leaves the entry untouched and emits no notification.
type bulkUpdater func(storageKey string, old []byte, ok bool) (next []byte, keep bool, err error)

// updateMatching applies fn to every tracked entry whose tag matches, in
// canonical key order, as one synchronous pass under the store lock. Provider
// failures on individual entries do not stop the pass; they are collected
// into a *PatchError.
func (s *Store) updateMatching(ctx context.Context, tag Tag, fn bulkUpdater) error {
	if !s.enabled {
		return nil
	}
	s.mu.Lock()

	matched := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.key.Tag() == tag {
			matched = append(matched, e)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].key.Storage() < matched[j].key.Storage()
	})

	var (
		errs []error
		ns   []notification
	)
	for _, e := range matched {
		sk := e.key.Storage()
		old, ok, err := s.snapshotLocked(ctx, e)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		next, keep, err := fn(sk, old, ok)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		switch {
		case !keep && !ok:
			// absent stays absent
		case !keep:
			// clear data; the key itself stays tracked
			e.seq++
			e.hasData = false
			if derr := s.provider.Del(ctx, sk); derr != nil {
				errs = append(errs, derr)
			}
			ns = append(ns, s.eventLocked(e, ReasonClear))
		case ok && bytes.Equal(old, next):
			// unchanged: no write, no notification
		default:
			if serr := s.storeLocked(ctx, e, next); serr != nil {
				errs = append(errs, serr)
			}
			ns = append(ns, s.eventLocked(e, ReasonWrite))
		}
	}
	s.mu.Unlock()

	deliver(ns)
	if len(errs) > 0 {
		return &PatchError{Tag: tag, Errs: errs}
	}
	return nil
}

// remove drops the entry and its subscriber associations entirely. A later
// query for the key starts from scratch (fresh fetch, new subscriptions).
func (s *Store) remove(ctx context.Context, key Key) error {
	if !s.enabled {
		return nil
	}
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	e.seq++
	n := s.eventLocked(e, ReasonRemove)
	delete(s.entries, key)
	err := s.provider.Del(ctx, key.Storage())
	s.mu.Unlock()

	s.sf.Forget(key.Storage())
	deliver([]notification{n})
	return err
}

// freshPayload returns the cached snapshot when it is inside the stale
// window; used by Fetch's fast path.
func (s *Store) freshPayload(ctx context.Context, key Key) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || e.status != StatusSuccess || e.fetchedAt.IsZero() {
		return nil, false
	}
	if time.Since(e.fetchedAt) >= s.staleAfter {
		return nil, false
	}
	payload, ok, err := s.snapshotLocked(ctx, e)
	if err != nil || !ok {
		return nil, false
	}
	return payload, true
}

// beginFetch transitions the entry to loading and returns the supersede token
// the fetch must present on completion.
func (s *Store) beginFetch(key Key) uint64 {
	s.mu.Lock()
	e := s.ensureLocked(key)
	e.status = StatusLoading
	token := e.token
	n := s.eventLocked(e, ReasonLoading)
	s.mu.Unlock()

	deliver([]notification{n})
	return token
}

// completeFetch stores a fetch result unless the entry was invalidated or
// refetched while the load was in flight (last response wins).
func (s *Store) completeFetch(ctx context.Context, key Key, token uint64, payload []byte) error {
	s.mu.Lock()
	e := s.ensureLocked(key)
	if e.token != token {
		s.mu.Unlock()
		s.hooks.FetchSuperseded(key.Storage())
		return nil
	}
	err := s.storeLocked(ctx, e, payload)
	n := s.eventLocked(e, ReasonWrite)
	s.mu.Unlock()

	deliver([]notification{n})
	return err
}

// failFetch records a fetch error. Previously cached data is kept; the entry
// serves it to plain reads while surfacing the error state.
func (s *Store) failFetch(key Key, token uint64, ferr error) {
	s.mu.Lock()
	e := s.ensureLocked(key)
	if e.token != token {
		s.mu.Unlock()
		s.hooks.FetchSuperseded(key.Storage())
		return
	}
	e.status = StatusError
	e.err = ferr
	n := s.eventLocked(e, ReasonError)
	s.mu.Unlock()

	deliver([]notification{n})
}
