package catalogcache

import (
	"context"
	"fmt"
	"time"

	pr "github.com/unkn0wn-root/catalogcache/provider"
)

// Status is the fetch state of one cache entry.
type Status uint8

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Reason says why subscribers were notified.
type Reason string

const (
	ReasonLoading Reason = "loading"
	ReasonWrite   Reason = "write"
	ReasonClear   Reason = "clear"
	ReasonRemove  Reason = "remove"
	ReasonError   Reason = "error"
)

// Event is delivered to subscribers of a key, synchronously and in write
// order, in the same pass as the change that produced it.
type Event struct {
	Key    Key
	Seq    uint64
	Reason Reason
}

// EntryState is a point-in-time snapshot of one entry's bookkeeping.
type EntryState struct {
	Key       Key
	Status    Status
	Err       error
	HasData   bool
	Seq       uint64
	FetchedAt time.Time
}

// Options tune the store. Only Provider is required; others have defaults.
type Options struct {
	// Required
	Provider pr.Provider

	Logger      Logger        // if nil, NopLogger is used
	Hooks       Hooks         // if nil, NopHooks is used
	StaleAfter  time.Duration // window during which Fetch serves cached data without reloading; 0 => 1m
	SnapshotTTL time.Duration // provider TTL for snapshots; 0 => 10m
	RetryReads  int           // automatic retries for read queries; 0 => 1, negative => none
	Disabled    bool          // default false (enabled); disabled stores pass every Fetch through to the loader
}

// New constructs a Store.
func New(opts Options) (*Store, error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("catalogcache: provider is required")
	}

	s := &Store{
		provider: opts.Provider,
		enabled:  !opts.Disabled,
		entries:  make(map[Key]*entry),
	}

	// defaults
	s.log = coalesce[Logger](opts.Logger, NopLogger{})
	s.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	s.staleAfter = coalesce[time.Duration](opts.StaleAfter, time.Minute)
	s.snapshotTTL = coalesce[time.Duration](opts.SnapshotTTL, 10*time.Minute)
	switch {
	case opts.RetryReads < 0:
		s.retryReads = 0
	case opts.RetryReads == 0:
		s.retryReads = 1
	default:
		s.retryReads = opts.RetryReads
	}

	return s, nil
}

// Loader produces the remote value for a query on miss or stale entry.
type Loader[V any] func(ctx context.Context) (V, error)
