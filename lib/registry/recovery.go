package registry

import (
	"sync/atomic"

	"github.com/ValentinKolb/jstore/lib/home"
	"golang.org/x/sync/errgroup"
)

// recover purges leftover trash and creates a handle for every source directory
// of the home. Each source is recovered on its own: a failure is logged and
// counted, the remaining sources are still recovered.
// Only failing to list the home directory is returned.
func (r *Registry) recover() error {
	purged, err := r.home.PurgeTrash()
	if err != nil {
		Logger.Warningf("failed to purge trash: %v", err)
	}
	if purged > 0 {
		Logger.Infof("purged %d interrupted removals", purged)
	}

	sources, err := r.home.List()
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return nil
	}
	Logger.Infof("recovering %d sources from %s", len(sources), r.home.Root())

	var (
		g         errgroup.Group
		recovered atomic.Int64
	)
	g.SetLimit(r.workers)
	for _, source := range sources {
		g.Go(func() error {
			if err := home.ValidateSource(source); err != nil {
				Logger.Warningf("skipping directory %q: %v", source, err)
				return nil
			}
			if _, err := r.Create(source); err != nil {
				r.recoveryFailures.Inc()
				Logger.Errorf("failed to recover source %q: %v", source, err)
				return nil
			}
			recovered.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	Logger.Infof("recovered %d of %d sources", recovered.Load(), len(sources))
	return nil
}
