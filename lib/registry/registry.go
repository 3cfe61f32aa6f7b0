package registry

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/ValentinKolb/jstore/lib/db"
	"github.com/ValentinKolb/jstore/lib/db/engines/badgerdb"
	"github.com/ValentinKolb/jstore/lib/home"
	"github.com/ValentinKolb/jstore/lib/lockmgr"
	"github.com/ValentinKolb/jstore/lib/store"
	"github.com/ValentinKolb/jstore/lib/store/lstore"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("registry")

// DefaultRecoveryWorkers is the number of sources recovered in parallel at startup
const DefaultRecoveryWorkers = 4

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

type options struct {
	factory db.Factory
	workers int
}

// Option configures a Registry.
type Option func(*options)

// WithDBFactory sets the engine factory used to open store handles.
// The default is badgerdb.Open.
func WithDBFactory(factory db.Factory) Option {
	return func(o *options) {
		o.factory = factory
	}
}

// WithRecoveryWorkers sets how many sources are recovered in parallel.
func WithRecoveryWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// --------------------------------------------------------------------------
// Registry
// --------------------------------------------------------------------------

// Registry maps source names to open store handles and drives their lifecycle.
// All methods are safe for concurrent use.
type Registry struct {
	home    *home.Home
	factory db.Factory
	workers int

	stores *xsync.MapOf[string, store.IStore]
	// locks serializes lifecycle and sidecar operations per source
	locks lockmgr.ILockManager
	// patches serializes read-modify-write patches per document
	patches lockmgr.ILockManager

	metrics          *metrics.Set
	creates          *metrics.Counter
	opens            *metrics.Counter
	closes           *metrics.Counter
	removes          *metrics.Counter
	recoveryFailures *metrics.Counter
	syncFailures     *metrics.Counter
}

// New creates a Registry on homeDir and recovers every source found there.
// A source that fails to recover is logged and skipped.
func New(homeDir string, opts ...Option) (*Registry, error) {
	o := options{
		factory: badgerdb.Open,
		workers: DefaultRecoveryWorkers,
	}
	for _, opt := range opts {
		opt(&o)
	}

	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}

	r := &Registry{
		home:    h,
		factory: o.factory,
		workers: o.workers,
		stores:  xsync.NewMapOf[string, store.IStore](),
		locks:   lockmgr.NewLockManager(),
		patches: lockmgr.NewLockManager(),
		metrics: metrics.NewSet(),
	}
	r.creates = r.metrics.NewCounter("jstore_store_creates_total")
	r.opens = r.metrics.NewCounter("jstore_store_opens_total")
	r.closes = r.metrics.NewCounter("jstore_store_closes_total")
	r.removes = r.metrics.NewCounter("jstore_store_removes_total")
	r.recoveryFailures = r.metrics.NewCounter("jstore_recovery_failures_total")
	r.syncFailures = r.metrics.NewCounter("jstore_shutdown_sync_failures_total")
	r.metrics.NewGauge("jstore_open_stores", func() float64 {
		return float64(r.stores.Size())
	})

	if err := r.recover(); err != nil {
		return nil, err
	}
	return r, nil
}

// Dir returns the absolute home directory.
func (r *Registry) Dir() string {
	return r.home.Root()
}

// WriteMetrics writes the registry metrics in Prometheus text format.
func (r *Registry) WriteMetrics(w io.Writer) {
	r.metrics.WritePrometheus(w)
}

// --------------------------------------------------------------------------
// Queries
// --------------------------------------------------------------------------

// Has reports whether an open handle is registered for source.
func (r *Registry) Has(source string) bool {
	_, ok := r.stores.Load(source)
	return ok
}

// Knows reports whether source is registered or its directory exists.
// Disk errors are returned, they are never mistaken for "does not exist".
func (r *Registry) Knows(source string) (bool, error) {
	if err := home.ValidateSource(source); err != nil {
		return false, err
	}
	if r.Has(source) {
		return true, nil
	}
	return r.home.Exists(source)
}

// Get returns the registered handle of source.
func (r *Registry) Get(source string) (store.IStore, bool) {
	return r.stores.Load(source)
}

// Sources returns the names of all registered sources, sorted.
func (r *Registry) Sources() []string {
	names := make([]string, 0, r.stores.Size())
	r.stores.Range(func(name string, _ store.IStore) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)
	return names
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// Create returns the handle of source, creating the source if needed.
// Concurrent calls for one source open exactly one engine, calls for different
// sources do not wait for each other.
func (r *Registry) Create(source string) (store.IStore, error) {
	if err := home.ValidateSource(source); err != nil {
		return nil, err
	}
	if s, ok := r.stores.Load(source); ok {
		return s, nil
	}

	unlock := r.locks.Lock(source)
	defer unlock()

	// another caller may have won the race while we waited
	if s, ok := r.stores.Load(source); ok {
		return s, nil
	}
	return r.createLocked(source)
}

// createLocked creates the directory, resolves and persists the config and opens
// the handle. The caller must hold the lock of source.
func (r *Registry) createLocked(source string) (store.IStore, error) {
	if err := r.home.Ensure(source); err != nil {
		return nil, err
	}

	text, _, err := r.home.ReadSidecar(source, home.ConfigFile)
	if err != nil {
		return nil, err
	}
	cfg, err := store.ResolveText(text)
	if err != nil {
		return nil, fmt.Errorf("source %q: %w", source, err)
	}
	if resolved := cfg.Marshal(); string(resolved) != string(text) {
		if err := r.home.WriteSidecar(source, home.ConfigFile, resolved); err != nil {
			return nil, err
		}
	}

	s, err := lstore.NewLocalStore(r.home.SourceDir(source), cfg, r.factory)
	if err != nil {
		return nil, fmt.Errorf("source %q: %w", source, err)
	}
	r.stores.Store(source, s)
	r.creates.Inc()
	Logger.Infof("created store for source %q", source)
	return s, nil
}

// Open reopens a registered handle in place or rehydrates a closed source from
// its directory. It returns false if the source is unknown.
func (r *Registry) Open(source string) (bool, error) {
	if err := home.ValidateSource(source); err != nil {
		return false, err
	}

	unlock := r.locks.Lock(source)
	defer unlock()

	if s, ok := r.stores.Load(source); ok {
		if err := s.Open(); err != nil {
			return false, err
		}
		return true, nil
	}

	exists, err := r.home.Exists(source)
	if err != nil || !exists {
		return false, err
	}
	if _, err := r.createLocked(source); err != nil {
		return false, err
	}
	r.opens.Inc()
	Logger.Infof("opened source %q", source)
	return true, nil
}

// Close deregisters and closes the handle of source. Closing a source that is
// only on disk is a no-op. It returns false if the source is unknown.
func (r *Registry) Close(source string) (bool, error) {
	if err := home.ValidateSource(source); err != nil {
		return false, err
	}

	unlock := r.locks.Lock(source)
	defer unlock()

	if s, ok := r.stores.LoadAndDelete(source); ok {
		r.closes.Inc()
		if err := s.Close(); err != nil {
			return true, err
		}
		Logger.Infof("closed source %q", source)
		return true, nil
	}
	return r.home.Exists(source)
}

// Remove closes source and deletes its directory irreversibly.
// It returns false if the source is unknown.
func (r *Registry) Remove(source string) (bool, error) {
	if err := home.ValidateSource(source); err != nil {
		return false, err
	}

	unlock := r.locks.Lock(source)
	defer unlock()

	// a failed close does not stop the removal, the error is reported afterwards
	registered := false
	var closeErr error
	if s, ok := r.stores.LoadAndDelete(source); ok {
		registered = true
		if err := s.Close(); err != nil {
			closeErr = fmt.Errorf("close source %q before removal: %w", source, err)
		}
	}

	exists, err := r.home.Exists(source)
	if err != nil {
		return registered, errors.Join(closeErr, err)
	}
	if !exists {
		return registered, closeErr
	}

	trash, err := r.home.Trash(source)
	if err != nil {
		return registered, errors.Join(closeErr, err)
	}
	r.removes.Inc()
	Logger.Infof("removed source %q", source)

	// the source is gone at this point, leftovers are purged on the next start
	if err := r.home.Purge(trash); err != nil {
		Logger.Warningf("failed to purge removed source %q: %v", source, err)
	}
	return true, closeErr
}

// Shutdown syncs and closes every registered handle. Failures are logged and
// never retried. The registry stays usable, sources can be created again.
func (r *Registry) Shutdown() {
	r.stores.Range(func(source string, _ store.IStore) bool {
		unlock := r.locks.Lock(source)
		defer unlock()

		// the handle seen by Range may have been closed or replaced meanwhile
		s, ok := r.stores.LoadAndDelete(source)
		if !ok {
			return true
		}
		if err := s.Sync(); err != nil {
			r.syncFailures.Inc()
			Logger.Errorf("failed to sync source %q on shutdown: %v", source, err)
		}
		if err := s.Close(); err != nil {
			Logger.Errorf("failed to close source %q on shutdown: %v", source, err)
		}
		return true
	})
	Logger.Infof("registry shut down")
}
