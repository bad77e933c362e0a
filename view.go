package catalogcache

import (
	"context"

	"github.com/unkn0wn-root/catalogcache/codec"
)

// View binds one key tag and a codec to a Store, giving typed access to the
// slots under that tag. Views sharing a Store share its entries; the console
// uses one view for list envelopes and one for detail records.
type View[V any] struct {
	store *Store
	tag   Tag
	codec codec.Codec[V]
}

func NewView[V any](s *Store, tag Tag, c codec.Codec[V]) *View[V] {
	return &View[V]{store: s, tag: tag, codec: c}
}

func (v *View[V]) Store() *Store { return v.store }

// Read returns the cached value for key; ok=false when the key is untracked
// or its entry holds no data.
func (v *View[V]) Read(ctx context.Context, key Key) (V, bool, error) {
	var zero V
	if key.Tag() != v.tag {
		return zero, false, ErrTagMismatch
	}
	payload, ok, err := v.store.read(ctx, key)
	if err != nil || !ok {
		return zero, false, err
	}
	val, err := v.codec.Decode(payload)
	if err != nil {
		return zero, false, err
	}
	return val, true, nil
}

// Write replaces the entry's data snapshot and marks it successful.
// Subscribers of the key are notified in the same pass.
func (v *View[V]) Write(ctx context.Context, key Key, val V) error {
	if key.Tag() != v.tag {
		return ErrTagMismatch
	}
	payload, err := v.codec.Encode(val)
	if err != nil {
		return err
	}
	return v.store.write(ctx, key, payload)
}

// UpdateMatching applies fn to every tracked entry under the view's tag,
// regardless of parameters, as one synchronous pass. fn receives the current
// value (ok=false when the entry holds none) and returns the next value;
// keep=false clears the entry's data while the key stays tracked. Returning
// a value that encodes to the same bytes leaves the entry untouched and
// emits no notification.
func (v *View[V]) UpdateMatching(ctx context.Context, fn func(old V, ok bool) (V, bool)) error {
	return v.store.updateMatching(ctx, v.tag, func(sk string, old []byte, ok bool) ([]byte, bool, error) {
		var oldV V
		if ok {
			dv, derr := v.codec.Decode(old)
			if derr != nil {
				// corrupt snapshot: drop it rather than feed garbage to fn
				v.store.hooks.SelfHeal(sk, "decode")
				return nil, false, nil
			}
			oldV = dv
		}
		newV, keep := fn(oldV, ok)
		if !keep {
			return nil, false, nil
		}
		b, err := v.codec.Encode(newV)
		if err != nil {
			return nil, false, err
		}
		return b, true, nil
	})
}

// Remove drops the entry and its subscribers entirely, so a later query for
// the key triggers a fresh fetch instead of serving an empty slot.
func (v *View[V]) Remove(ctx context.Context, key Key) error {
	if key.Tag() != v.tag {
		return ErrTagMismatch
	}
	return v.store.remove(ctx, key)
}

// Fetch is the normal query path: cached data inside the stale window is
// returned as-is; otherwise load runs (with the store's read-retry budget),
// the entry transitions idle→loading→success/error, and the result is stored
// unless the entry was invalidated mid-flight (last response wins).
// Identical concurrent fetches for one key share a single load.
func (v *View[V]) Fetch(ctx context.Context, key Key, load Loader[V]) (V, error) {
	var zero V
	if key.Tag() != v.tag {
		return zero, ErrTagMismatch
	}
	s := v.store
	if !s.enabled {
		return load(ctx)
	}

	if payload, ok := s.freshPayload(ctx, key); ok {
		val, err := v.codec.Decode(payload)
		if err == nil {
			return val, nil
		}
		// undecodable snapshot falls through to a reload
		s.hooks.SelfHeal(key.Storage(), "decode")
	}

	sk := key.Storage()
	res, err, _ := s.sf.Do(sk, func() (any, error) {
		token := s.beginFetch(key)

		val, ferr := v.runLoader(ctx, sk, load)
		if ferr != nil {
			s.failFetch(key, token, ferr)
			return nil, ferr
		}

		payload, eerr := v.codec.Encode(val)
		if eerr != nil {
			s.failFetch(key, token, eerr)
			return nil, eerr
		}
		if serr := s.completeFetch(ctx, key, token, payload); serr != nil {
			// the caller still gets the loaded value; only the snapshot is gone
			s.log.Warn("fetch result not persisted", Fields{"key": sk, "err": serr})
		}
		return val, nil
	})
	if err != nil {
		return zero, err
	}
	return res.(V), nil
}

// Refetch forces a reload: it invalidates the entry (superseding any fetch
// already in flight) and loads anew.
func (v *View[V]) Refetch(ctx context.Context, key Key, load Loader[V]) (V, error) {
	var zero V
	if key.Tag() != v.tag {
		return zero, ErrTagMismatch
	}
	v.store.Invalidate(key)
	return v.Fetch(ctx, key, load)
}

func (v *View[V]) runLoader(ctx context.Context, sk string, load Loader[V]) (V, error) {
	attempts := 1 + v.store.retryReads
	var (
		val V
		err error
	)
	for i := 0; i < attempts; i++ {
		val, err = load(ctx)
		if err == nil || ctx.Err() != nil {
			break
		}
		if i+1 < attempts {
			v.store.hooks.FetchRetry(sk, i+1, err)
			v.store.log.Debug("retrying read query", Fields{"key": sk, "attempt": i + 1, "err": err})
		}
	}
	return val, err
}
