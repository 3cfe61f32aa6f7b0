package registry

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/jstore/lib/home"
	"github.com/ValentinKolb/jstore/lib/store"
)

// --------------------------------------------------------------------------
// Schema sidecar
// --------------------------------------------------------------------------

// GetSchema returns the schema text of source. found is false if there is none.
func (r *Registry) GetSchema(source string) ([]byte, bool, error) {
	return r.readSidecar(source, home.SchemaFile)
}

// PutSchema replaces the schema of source with text, stored verbatim.
// text must be valid JSON.
func (r *Registry) PutSchema(source string, text []byte) error {
	if !json.Valid(text) {
		return store.NewError(store.RetCConfig, "schema is not valid JSON")
	}
	return r.writeSidecar(source, home.SchemaFile, text)
}

// RemoveSchema deletes the schema of source and returns its prior content.
func (r *Registry) RemoveSchema(source string) ([]byte, bool, error) {
	return r.removeSidecar(source, home.SchemaFile)
}

// --------------------------------------------------------------------------
// Config sidecar
// --------------------------------------------------------------------------

// GetConfig returns the config text of source. found is false if there is none.
func (r *Registry) GetConfig(source string) ([]byte, bool, error) {
	return r.readSidecar(source, home.ConfigFile)
}

// PutConfig validates text, fills the defaults and replaces the config of source
// with the resolved result. The new config is used the next time the source is
// opened. The resolved config is returned.
func (r *Registry) PutConfig(source string, text []byte) (store.StoreConfig, error) {
	cfg, err := store.ResolveText(text)
	if err != nil {
		return store.StoreConfig{}, err
	}
	if err := r.writeSidecar(source, home.ConfigFile, cfg.Marshal()); err != nil {
		return store.StoreConfig{}, err
	}
	return cfg, nil
}

// RemoveConfig deletes the config of source and returns its prior content.
// The defaults apply the next time the source is opened.
func (r *Registry) RemoveConfig(source string) ([]byte, bool, error) {
	return r.removeSidecar(source, home.ConfigFile)
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

func (r *Registry) readSidecar(source string, kind home.Sidecar) ([]byte, bool, error) {
	if err := home.ValidateSource(source); err != nil {
		return nil, false, err
	}
	return r.home.ReadSidecar(source, kind)
}

// writeSidecar replaces a sidecar of a known source under the source lock
func (r *Registry) writeSidecar(source string, kind home.Sidecar, data []byte) error {
	if err := home.ValidateSource(source); err != nil {
		return err
	}

	unlock := r.locks.Lock(source)
	defer unlock()

	if err := r.requireKnownLocked(source); err != nil {
		return err
	}
	return r.home.WriteSidecar(source, kind, data)
}

func (r *Registry) removeSidecar(source string, kind home.Sidecar) ([]byte, bool, error) {
	if err := home.ValidateSource(source); err != nil {
		return nil, false, err
	}

	unlock := r.locks.Lock(source)
	defer unlock()

	return r.home.RemoveSidecar(source, kind)
}

func (r *Registry) requireKnownLocked(source string) error {
	if r.Has(source) {
		return nil
	}
	exists, err := r.home.Exists(source)
	if err != nil {
		return err
	}
	if !exists {
		return store.NewError(store.RetCNotFound, fmt.Sprintf("source %q does not exist", source))
	}
	return nil
}
