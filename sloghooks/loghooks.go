package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/tablekit"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	AddRejectEvery uint64
	ReadErrorEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	addRejectCtr atomic.Uint64
	readErrCtr   atomic.Uint64
}

var _ tablekit.Hooks = (*Hooks)(nil)

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

func (h *Hooks) CacheReadError(table, key string, err error) {
	if h.l == nil || !sample(h.opts.ReadErrorEvery, &h.readErrCtr) {
		return
	}
	h.l.Warn("tablekit.cache_read_error",
		"table", table,
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) CacheDecodeError(table, key string) {
	if h.l == nil {
		return
	}
	h.l.Debug("tablekit.cache_decode_error",
		"table", table,
		"key", h.redact(key))
}

func (h *Hooks) ProviderAddRejected(table, key string) {
	if h.l == nil || !sample(h.opts.AddRejectEvery, &h.addRejectCtr) {
		return
	}
	h.l.Debug("tablekit.provider_add_rejected",
		"table", table,
		"key", h.redact(key))
}

func (h *Hooks) EpochReadError(group string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("tablekit.epoch_read_error",
		"group", group,
		"err", err)
}

func (h *Hooks) EpochBumpError(group string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("tablekit.epoch_bump_error",
		"group", group,
		"err", err)
}
