// Package sloghooks turns store hooks into sampled slog records. Self-heals
// can fire in bursts (e.g. a shared Redis flushed under the console), so they
// are sampled; retries and supersessions are rare enough to log every time.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/catalogcache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	SelfHealEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	selfHealCtr atomic.Uint64
}

var _ catalogcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) SelfHeal(storageKey, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("catalogcache.self_heal",
		"key", h.redact(storageKey),
		"reason", reason)
}

func (h *Hooks) ProviderSetRejected(storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Warn("catalogcache.provider_set_rejected",
		"key", h.redact(storageKey))
}

func (h *Hooks) FetchRetry(storageKey string, attempt int, err error) {
	if h.l == nil {
		return
	}
	h.l.Info("catalogcache.fetch_retry",
		"key", h.redact(storageKey),
		"attempt", attempt,
		"err", err)
}

func (h *Hooks) FetchSuperseded(storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Debug("catalogcache.fetch_superseded",
		"key", h.redact(storageKey))
}
