package catalogcache

// Hooks are lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking; the store calls them on hot
// paths. Wrap with hooks/async if a sink can stall.
type Hooks interface {
	// An entry's snapshot was dropped on read.
	// reason ∈ {"corrupt", "seq_mismatch", "provider_miss", "decode"}
	SelfHeal(storageKey, reason string)

	// Provider returned ok=false on Set (backpressure/eviction).
	ProviderSetRejected(storageKey string)

	// A read query failed and is being retried. attempt is 1-based.
	FetchRetry(storageKey string, attempt int, err error)

	// An in-flight fetch completed after its entry was invalidated or
	// refetched; its result was discarded (last response wins).
	FetchSuperseded(storageKey string)
}

// NopHooks is the default no-op.
type NopHooks struct{}

func (NopHooks) SelfHeal(string, string)       {}
func (NopHooks) ProviderSetRejected(string)    {}
func (NopHooks) FetchRetry(string, int, error) {}
func (NopHooks) FetchSuperseded(string)        {}
