// Package asynchook decouples hook sinks from the store's hot paths.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{SelfHealEvery: 10})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	store, _ := catalogcache.New(catalogcache.Options{
//	    Provider: provider,
//	    Hooks:    hooks, // or `raw` if the sink is already cheap
//	})
package asynchook

import (
	"sync"

	"github.com/unkn0wn-root/catalogcache"
)

type Hooks struct {
	inner catalogcache.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ catalogcache.Hooks = (*Hooks)(nil)

func New(inner catalogcache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) SelfHeal(k, r string)         { h.try(func() { h.inner.SelfHeal(k, r) }) }
func (h *Hooks) ProviderSetRejected(k string) { h.try(func() { h.inner.ProviderSetRejected(k) }) }
func (h *Hooks) FetchSuperseded(k string)     { h.try(func() { h.inner.FetchSuperseded(k) }) }
func (h *Hooks) FetchRetry(k string, attempt int, err error) {
	h.try(func() { h.inner.FetchRetry(k, attempt, err) })
}
