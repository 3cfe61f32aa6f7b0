package lstore

import (
	"errors"
	"sync"

	"github.com/ValentinKolb/jstore/lib/codec"
	"github.com/ValentinKolb/jstore/lib/db"
	"github.com/ValentinKolb/jstore/lib/store"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/rcrowley/go-metrics"
)

var Logger = logger.GetLogger("store")

type storeImpl struct {
	dir     string
	config  store.StoreConfig
	factory db.Factory
	keys    codec.KeyCodec
	values  codec.DocumentCodec

	// mu guards the engine reference. Operations only hold it while reading the
	// reference, so a concurrent Close surfaces as db.ErrClosed from the engine.
	mu sync.RWMutex
	db db.KVDB // nil while closed

	gets     metrics.Counter
	puts     metrics.Counter
	deletes  metrics.Counter
	persists metrics.Timer
	syncs    metrics.Timer
}

// NewLocalStore opens a store handle on dir with a resolved config.
// The engine is opened through factory, which is kept to reopen the handle later.
func NewLocalStore(dir string, config store.StoreConfig, factory db.Factory) (store.IStore, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	keys, err := codec.KeyCodecByID(config.KeyCodec)
	if err != nil {
		return nil, store.CodecErr(err, "key codec")
	}
	values, err := codec.DocumentCodecByID(config.ValueCodec)
	if err != nil {
		return nil, store.CodecErr(err, "value codec")
	}

	s := &storeImpl{
		dir:      dir,
		config:   config,
		factory:  factory,
		keys:     keys,
		values:   values,
		gets:     metrics.NewCounter(),
		puts:     metrics.NewCounter(),
		deletes:  metrics.NewCounter(),
		persists: metrics.NewTimer(),
		syncs:    metrics.NewTimer(),
	}
	if err := s.Open(); err != nil {
		return nil, err
	}
	return s, nil
}

// engine returns the open engine or ErrClosed
func (s *storeImpl) engine() (db.KVDB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, store.ErrClosed
	}
	return s.db, nil
}

// engineErr translates an engine error into a store error
func engineErr(err error, msg string) error {
	if errors.Is(err, db.ErrClosed) {
		return store.WrapError(store.RetCClosed, err, msg)
	}
	return store.WrapError(store.RetCIO, err, msg)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Get(key string) (store.Document, bool, error) {
	e, err := s.engine()
	if err != nil {
		return nil, false, err
	}
	if !e.SupportsFeature(db.FeatureGet) {
		return nil, false, store.NewError(store.RetCUnsupportedOperation, "Get operation is not supported")
	}
	bkey, err := s.keys.ToBinary(key)
	if err != nil {
		return nil, false, store.CodecErr(err, "encode key")
	}

	s.gets.Inc(1)
	raw, ok, err := e.Get(bkey)
	if err != nil {
		return nil, false, engineErr(err, "get")
	}
	if !ok {
		return nil, false, nil
	}
	doc, err := s.decode(raw)
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

func (s *storeImpl) Put(key string, doc store.Document) (store.Document, bool, error) {
	if doc == nil {
		return nil, false, store.NewError(store.RetCCodec, "cannot store a missing document")
	}
	e, err := s.engine()
	if err != nil {
		return nil, false, err
	}
	if !e.SupportsFeature(db.FeatureSet) {
		return nil, false, store.NewError(store.RetCUnsupportedOperation, "Put operation is not supported")
	}
	bkey, err := s.keys.ToBinary(key)
	if err != nil {
		return nil, false, store.CodecErr(err, "encode key")
	}
	payload, err := s.values.Encode(doc)
	if err != nil {
		return nil, false, store.CodecErr(err, "encode document")
	}

	s.puts.Inc(1)
	prev, loaded, err := e.Set(bkey, payload)
	if err != nil {
		return nil, false, engineErr(err, "put")
	}
	return s.previous(prev, loaded)
}

func (s *storeImpl) Delete(key string) (store.Document, bool, error) {
	e, err := s.engine()
	if err != nil {
		return nil, false, err
	}
	if !e.SupportsFeature(db.FeatureDelete) {
		return nil, false, store.NewError(store.RetCUnsupportedOperation, "Delete operation is not supported")
	}
	bkey, err := s.keys.ToBinary(key)
	if err != nil {
		return nil, false, store.CodecErr(err, "encode key")
	}

	s.deletes.Inc(1)
	prev, loaded, err := e.Delete(bkey)
	if err != nil {
		return nil, false, engineErr(err, "delete")
	}
	return s.previous(prev, loaded)
}

func (s *storeImpl) Iterate(fn func(key string, doc store.Document) bool) error {
	e, err := s.engine()
	if err != nil {
		return err
	}
	if !e.SupportsFeature(db.FeatureIterate) {
		return store.NewError(store.RetCUnsupportedOperation, "Iterate operation is not supported")
	}

	// decoding errors stop the iteration and are returned to the caller
	var iterErr error
	err = e.Iterate(func(bkey, raw []byte) bool {
		key, err := s.keys.FromBinary(bkey)
		if err != nil {
			iterErr = store.CodecErr(err, "decode key")
			return false
		}
		doc, err := s.decode(raw)
		if err != nil {
			iterErr = err
			return false
		}
		return fn(key, doc)
	})
	if err != nil {
		return engineErr(err, "iterate")
	}
	return iterErr
}

func (s *storeImpl) CanonicalKey(key string) (string, error) {
	bkey, err := s.keys.ToBinary(key)
	if err != nil {
		return "", store.CodecErr(err, "encode key")
	}
	canonical, err := s.keys.FromBinary(bkey)
	if err != nil {
		return "", store.CodecErr(err, "decode key")
	}
	return canonical, nil
}

func (s *storeImpl) Persist() error {
	e, err := s.engine()
	if err != nil {
		return err
	}
	if !e.SupportsFeature(db.FeaturePersist) {
		return store.NewError(store.RetCUnsupportedOperation, "Persist operation is not supported")
	}
	s.persists.Time(func() { err = e.Persist() })
	if err != nil {
		return engineErr(err, "persist")
	}
	return nil
}

func (s *storeImpl) Sync() error {
	e, err := s.engine()
	if err != nil {
		return err
	}
	if !e.SupportsFeature(db.FeatureSync) {
		return store.NewError(store.RetCUnsupportedOperation, "Sync operation is not supported")
	}
	s.syncs.Time(func() { err = e.Sync() })
	if err != nil {
		return engineErr(err, "sync")
	}
	return nil
}

func (s *storeImpl) Capacity() int {
	return s.config.InitialCapacity
}

func (s *storeImpl) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}
	e, err := s.factory(s.config.EngineOptions(s.dir))
	if err != nil {
		return store.WrapError(store.RetCIO, err, "open engine at %s", s.dir)
	}
	s.db = e
	Logger.Debugf("opened store at %s (%s, %s, %s)", s.dir, s.config.SegmentStrategy, s.config.KeyCodec, s.config.ValueCodec)
	return nil
}

func (s *storeImpl) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	e := s.db
	s.db = nil
	if err := e.Close(); err != nil {
		return store.WrapError(store.RetCIO, err, "close engine at %s", s.dir)
	}
	Logger.Debugf("closed store at %s", s.dir)
	return nil
}

func (s *storeImpl) IsOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db != nil
}

func (s *storeImpl) GetInfo() store.StoreInfo {
	info := store.StoreInfo{
		Capacity: s.config.InitialCapacity,
		Config:   s.config,
		Gets:     s.gets.Count(),
		Puts:     s.puts.Count(),
		Deletes:  s.deletes.Count(),
		Persists: s.persists.Count(),
		Syncs:    s.syncs.Count(),
		SyncMean: s.syncs.Mean() / 1e6,
	}
	if e, err := s.engine(); err == nil {
		info.Open = true
		info.Engine = e.GetInfo()
	}
	return info
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

func (s *storeImpl) decode(raw []byte) (store.Document, error) {
	text, err := s.values.Decode(raw)
	if err != nil {
		return nil, store.CodecErr(err, "decode document")
	}
	return store.Document(text), nil
}

// previous decodes the value returned by a write
func (s *storeImpl) previous(raw []byte, loaded bool) (store.Document, bool, error) {
	if !loaded {
		return nil, false, nil
	}
	doc, err := s.decode(raw)
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}
