package tablekit

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The engine calls them on hot paths.
type Hooks interface {
	// The provider errored on a cache read; the query fell through to the
	// executor.
	CacheReadError(table, key string, err error)

	// A cached entry failed to decode and was deleted (self-heal).
	CacheDecodeError(table, key string)

	// The provider declined an add-if-absent store (entry already present,
	// or rejected under pressure).
	ProviderAddRejected(table, key string)

	// The epoch store could not produce a generation; caching was skipped
	// for this call.
	EpochReadError(group string, err error)

	// The epoch bump after a successful write failed. Cached reads may
	// serve pre-write rows until entries expire.
	EpochBumpError(group string, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) CacheReadError(string, string, error) {}
func (NopHooks) CacheDecodeError(string, string)      {}
func (NopHooks) ProviderAddRejected(string, string)   {}
func (NopHooks) EpochReadError(string, error)         {}
func (NopHooks) EpochBumpError(string, error)         {}
