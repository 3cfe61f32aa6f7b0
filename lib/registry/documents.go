package registry

import (
	"fmt"

	"github.com/ValentinKolb/jstore/lib/store"
)

// PatchKind selects how PatchDocument interprets a patch
type PatchKind int

const (
	MergePatch PatchKind = iota // RFC 7386 merge patch
	JSONPatch                   // RFC 6902 list of operations
)

// handle returns the open handle of source or a RetCNotFound error
func (r *Registry) handle(source string) (store.IStore, error) {
	s, ok := r.stores.Load(source)
	if !ok {
		return nil, store.NewError(store.RetCNotFound, fmt.Sprintf("source %q is not open", source))
	}
	return s, nil
}

func keyNotFound(source, key string) error {
	return store.NewError(store.RetCNotFound, fmt.Sprintf("key %q not found in source %q", key, source))
}

// GetDocument returns the document stored under key in source.
func (r *Registry) GetDocument(source, key string) (store.Document, error) {
	s, err := r.handle(source)
	if err != nil {
		return nil, err
	}
	doc, ok, err := s.Get(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, keyNotFound(source, key)
	}
	return doc, nil
}

// GetDocuments returns the documents of all keys that exist in source.
// Missing keys are left out of the result.
func (r *Registry) GetDocuments(source string, keys []string) (map[string]store.Document, error) {
	s, err := r.handle(source)
	if err != nil {
		return nil, err
	}
	docs := make(map[string]store.Document, len(keys))
	for _, key := range keys {
		doc, ok, err := s.Get(key)
		if err != nil {
			return nil, err
		}
		if ok {
			docs[key] = doc
		}
	}
	return docs, nil
}

// PutDocument stores doc under key in source and returns the replaced document.
func (r *Registry) PutDocument(source, key string, doc store.Document) (store.Document, bool, error) {
	s, err := r.handle(source)
	if err != nil {
		return nil, false, err
	}
	return s.Put(key, doc)
}

// DeleteDocument removes key from source and returns the removed document.
func (r *Registry) DeleteDocument(source, key string) (store.Document, bool, error) {
	s, err := r.handle(source)
	if err != nil {
		return nil, false, err
	}
	return s.Delete(key)
}

// PatchDocument applies patch to the document under key and stores the result.
// A missing document is patched as {}. Patches of one document are serialized,
// a concurrent PutDocument on the same key may still interleave.
func (r *Registry) PatchDocument(source, key string, patch []byte, kind PatchKind) (store.Document, error) {
	s, err := r.handle(source)
	if err != nil {
		return nil, err
	}

	// spellings of one key share a lock, "007" and "7" are the same numeric key
	canonical, err := s.CanonicalKey(key)
	if err != nil {
		return nil, err
	}
	unlock := r.patches.Lock(source + "\x00" + canonical)
	defer unlock()

	current, _, err := s.Get(key)
	if err != nil {
		return nil, err
	}
	var patched store.Document
	switch kind {
	case JSONPatch:
		patched, err = current.ApplyPatch(patch)
	default:
		patched, err = current.MergePatch(patch)
	}
	if err != nil {
		return nil, err
	}
	if _, _, err := s.Put(key, patched); err != nil {
		return nil, err
	}
	return patched, nil
}

// Iterate calls fn for every document of source until fn returns false.
func (r *Registry) Iterate(source string, fn func(key string, doc store.Document) bool) error {
	s, err := r.handle(source)
	if err != nil {
		return err
	}
	return s.Iterate(fn)
}

// Persist flushes pending writes of source without fsync.
func (r *Registry) Persist(source string) error {
	s, err := r.handle(source)
	if err != nil {
		return err
	}
	return s.Persist()
}

// Sync makes every write to source made before the call durable.
func (r *Registry) Sync(source string) error {
	s, err := r.handle(source)
	if err != nil {
		return err
	}
	return s.Sync()
}

// Info returns the statistics of the handle of source.
func (r *Registry) Info(source string) (store.StoreInfo, error) {
	s, err := r.handle(source)
	if err != nil {
		return store.StoreInfo{}, err
	}
	return s.GetInfo(), nil
}
