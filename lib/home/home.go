package home

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ValentinKolb/jstore/lib/store"
	"github.com/google/uuid"
)

// Sidecar names one of the auxiliary JSON files stored beside the engine files.
type Sidecar string

const (
	ConfigFile Sidecar = "config.json"
	SchemaFile Sidecar = "schema.json"
)

const (
	trashPrefix = ".trash-"
	dirPerm     = 0o755
	filePerm    = 0o644
)

// Home is the home directory holding one sub directory per source.
type Home struct {
	root string
}

// New opens the home directory at root, creating it if needed.
func New(root string) (*Home, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, store.WrapError(store.RetCIO, err, "resolve home directory %q", root)
	}
	if err := os.MkdirAll(abs, dirPerm); err != nil {
		return nil, store.WrapError(store.RetCIO, err, "create home directory %q", abs)
	}
	return &Home{root: abs}, nil
}

// Root returns the absolute path of the home directory.
func (h *Home) Root() string {
	return h.root
}

// ValidateSource checks that name can be used as a directory name below the home.
// Names starting with a dot are reserved.
func ValidateSource(name string) error {
	switch {
	case name == "":
		return store.NewError(store.RetCInvalidOperation, "source name must not be empty")
	case strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0):
		return store.NewError(store.RetCInvalidOperation, fmt.Sprintf("source name %q contains a path separator", name))
	case strings.HasPrefix(name, "."):
		return store.NewError(store.RetCInvalidOperation, fmt.Sprintf("source name %q must not start with a dot", name))
	}
	return nil
}

// SourceDir returns the directory of source.
func (h *Home) SourceDir(source string) string {
	return filepath.Join(h.root, source)
}

// --------------------------------------------------------------------------
// Source directories
// --------------------------------------------------------------------------

// Exists reports whether the directory of source exists.
// Errors other than "does not exist" are returned as RetCIO errors.
func (h *Home) Exists(source string) (bool, error) {
	fi, err := os.Stat(h.SourceDir(source))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, store.WrapError(store.RetCIO, err, "stat source %q", source)
	case !fi.IsDir():
		return false, store.NewError(store.RetCIO, fmt.Sprintf("source %q exists but is not a directory", source))
	}
	return true, nil
}

// Ensure creates the directory of source if it is missing.
func (h *Home) Ensure(source string) error {
	if err := os.MkdirAll(h.SourceDir(source), dirPerm); err != nil {
		return store.WrapError(store.RetCIO, err, "create source directory %q", source)
	}
	return nil
}

// List returns the names of all source directories, sorted.
// Entries starting with a dot (trash, hidden files) are skipped.
func (h *Home) List() ([]string, error) {
	entries, err := os.ReadDir(h.root)
	if err != nil {
		return nil, store.WrapError(store.RetCIO, err, "list home directory")
	}
	var sources []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		sources = append(sources, e.Name())
	}
	sort.Strings(sources)
	return sources, nil
}

// --------------------------------------------------------------------------
// Two-phase removal
// --------------------------------------------------------------------------

// Trash atomically moves the directory of source into a trash entry of the home
// directory and returns the trash path. Once Trash returned, the source is gone.
func (h *Home) Trash(source string) (string, error) {
	trash := filepath.Join(h.root, trashPrefix+uuid.NewString())
	if err := os.Rename(h.SourceDir(source), trash); err != nil {
		return "", store.WrapError(store.RetCIO, err, "move source %q to trash", source)
	}
	return trash, nil
}

// Purge deletes a trash entry recursively.
func (h *Home) Purge(trash string) error {
	if err := os.RemoveAll(trash); err != nil {
		return store.WrapError(store.RetCIO, err, "purge %s", trash)
	}
	return nil
}

// PurgeTrash deletes every trash entry left behind by an interrupted removal.
// It returns the number of purged entries.
func (h *Home) PurgeTrash() (int, error) {
	entries, err := os.ReadDir(h.root)
	if err != nil {
		return 0, store.WrapError(store.RetCIO, err, "list home directory")
	}
	purged := 0
	var errs []error
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), trashPrefix) {
			continue
		}
		if err := h.Purge(filepath.Join(h.root, e.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		purged++
	}
	return purged, errors.Join(errs...)
}

// --------------------------------------------------------------------------
// Sidecar files
// --------------------------------------------------------------------------

func (h *Home) sidecarPath(source string, kind Sidecar) string {
	return filepath.Join(h.SourceDir(source), string(kind))
}

// ReadSidecar returns the content of a sidecar file. found is false if it does not exist.
func (h *Home) ReadSidecar(source string, kind Sidecar) (data []byte, found bool, err error) {
	data, err = os.ReadFile(h.sidecarPath(source, kind))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, false, nil
	case err != nil:
		return nil, false, store.WrapError(store.RetCIO, err, "read %s of %q", kind, source)
	}
	return data, true, nil
}

// WriteSidecar replaces a sidecar file atomically: the data is written and
// fsynced to a uniquely named temp file which is then renamed over the target.
// Readers see either the old or the new content, never a partial file.
func (h *Home) WriteSidecar(source string, kind Sidecar, data []byte) error {
	target := h.sidecarPath(source, kind)
	tmpPath := filepath.Join(filepath.Dir(target), "."+string(kind)+"."+uuid.NewString()+".tmp")

	if err := writeSynced(tmpPath, data); err != nil {
		os.Remove(tmpPath)
		return store.WrapError(store.RetCIO, err, "write %s of %q", kind, source)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return store.WrapError(store.RetCIO, err, "rename %s of %q", kind, source)
	}
	return nil
}

// RemoveSidecar deletes a sidecar file and returns its prior content.
func (h *Home) RemoveSidecar(source string, kind Sidecar) (prior []byte, found bool, err error) {
	prior, found, err = h.ReadSidecar(source, kind)
	if err != nil || !found {
		return nil, false, err
	}
	if err := os.Remove(h.sidecarPath(source, kind)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, false, store.WrapError(store.RetCIO, err, "remove %s of %q", kind, source)
	}
	return prior, true, nil
}

func writeSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
