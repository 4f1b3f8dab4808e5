// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    AddRejectEvery: 10, // sample logs: ~every 10th rejected add
//	})
//
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	tbl, _ := tablekit.New(tablekit.Options{
//	    Schema:   schema,
//	    Executor: exec,
//	    Provider: provider,
//	    Hooks:    hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"

	"github.com/unkn0wn-root/tablekit"
)

type Hooks struct {
	inner tablekit.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ tablekit.Hooks = (*Hooks)(nil)

func New(inner tablekit.Hooks, workers, qlen int) *Hooks {
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

func (h *Hooks) CacheReadError(t, k string, err error) {
	h.try(func() { h.inner.CacheReadError(t, k, err) })
}
func (h *Hooks) CacheDecodeError(t, k string) { h.try(func() { h.inner.CacheDecodeError(t, k) }) }
func (h *Hooks) ProviderAddRejected(t, k string) {
	h.try(func() { h.inner.ProviderAddRejected(t, k) })
}
func (h *Hooks) EpochReadError(g string, err error) {
	h.try(func() { h.inner.EpochReadError(g, err) })
}
func (h *Hooks) EpochBumpError(g string, err error) {
	h.try(func() { h.inner.EpochBumpError(g, err) })
}
