package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ValentinKolb/jstore/lib/codec"
	"github.com/google/go-cmp/cmp"
)

func TestResolveDefaults(t *testing.T) {
	got := StoreConfig{}.Resolve()
	want := StoreConfig{
		InitialCapacity:   1000000,
		BatchSize:         1000,
		NumSyncBatches:    10,
		SegmentFileSizeMB: 128,
		SegmentStrategy:   "buffered-write",
		KeyCodec:          "numeric-path",
		ValueCodec:        "compressed-document",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}
	if err := got.Validate(); err != nil {
		t.Errorf("defaults must be valid: %v", err)
	}
}

func TestResolveKeepsCallerFields(t *testing.T) {
	partial := StoreConfig{BatchSize: 5, KeyCodec: codec.RawPath}
	got := partial.Resolve()

	if got.BatchSize != 5 || got.KeyCodec != codec.RawPath {
		t.Errorf("caller supplied fields were overwritten: %+v", got)
	}
	if got.InitialCapacity != DefaultInitialCapacity || got.ValueCodec != DefaultValueCodec {
		t.Errorf("missing fields were not filled: %+v", got)
	}
}

func TestResolveIdempotent(t *testing.T) {
	configs := []StoreConfig{
		{},
		{BatchSize: 7},
		{InitialCapacity: 3, BatchSize: 2, NumSyncBatches: 1, SegmentFileSizeMB: 1,
			SegmentStrategy: "direct-write", KeyCodec: "raw-path", ValueCodec: "plain-document"},
	}
	for i, c := range configs {
		once := c.Resolve()
		if diff := cmp.Diff(once, once.Resolve()); diff != "" {
			t.Errorf("config %d: resolving twice changed it:\n%s", i, diff)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []StoreConfig{
		{BatchSize: -1},
		{SegmentFileSizeMB: MaxSegmentFileSizeMB + 1},
		{SegmentStrategy: "append-only"},
		{KeyCodec: "uuid-path"},
		{ValueCodec: "bson-document"},
	}
	for _, c := range tests {
		t.Run(fmt.Sprintf("%+v", c), func(t *testing.T) {
			err := c.Resolve().Validate()
			if !errors.Is(err, ErrConfig) {
				t.Errorf("expected a config error, got %v", err)
			}
		})
	}
}

func TestParseConfig(t *testing.T) {
	c, err := ResolveText([]byte(`{"batchSize": 50, "keyCodec": "numeric-int-path"}`))
	if err != nil {
		t.Fatalf("ResolveText failed: %v", err)
	}
	if c.BatchSize != 50 || c.KeyCodec != codec.NumericIntPath || c.NumSyncBatches != DefaultNumSyncBatches {
		t.Errorf("unexpected resolved config %+v", c)
	}

	empty, err := ResolveText(nil)
	if err != nil || empty != DefaultConfig() {
		t.Errorf("empty text must resolve to the defaults, got %+v, %v", empty, err)
	}

	for _, bad := range []string{`{"batchSize":`, `[1,2]`, `{"unknownField": 1}`, `{"batchSize": "ten"}`} {
		if _, err := ResolveText([]byte(bad)); CodeOf(err) != RetCConfig {
			t.Errorf("%s: expected RetCConfig, got %v", bad, err)
		}
	}
}

func TestConfigMarshalRoundTrip(t *testing.T) {
	c := StoreConfig{BatchSize: 12}.Resolve()
	parsed, err := ParseConfig(c.Marshal())
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}
	if parsed != c {
		t.Errorf("expected %+v, got %+v", c, parsed)
	}
}

func TestEngineOptions(t *testing.T) {
	c := DefaultConfig()
	opts := c.EngineOptions("/tmp/x")
	if opts.Dir != "/tmp/x" || opts.Capacity != c.InitialCapacity || opts.BatchSize != c.BatchSize ||
		opts.NumSyncBatches != c.NumSyncBatches || opts.SegmentFileSizeMB != c.SegmentFileSizeMB ||
		string(opts.Strategy) != c.SegmentStrategy {
		t.Errorf("options do not reflect the config: %+v", opts)
	}
}

func TestErrors(t *testing.T) {
	cause := errors.New("disk on fire")
	err := fmt.Errorf("outer: %w", WrapError(RetCIO, cause, "write %s", "config.json"))

	if !errors.Is(err, ErrIO) {
		t.Errorf("expected errors.Is to match the code")
	}
	if errors.Is(err, ErrNotFound) {
		t.Errorf("different codes must not match")
	}
	if !errors.Is(err, cause) {
		t.Errorf("expected the cause to be reachable")
	}
	if CodeOf(err) != RetCIO {
		t.Errorf("expected RetCIO, got %s", CodeOf(err))
	}
	if CodeOf(nil) != RetCSuccess || CodeOf(cause) != RetCInternalError {
		t.Errorf("unexpected codes for nil or foreign errors")
	}

	keyErr := CodecErr(fmt.Errorf("%w: bad", codec.ErrInvalidKey), "encode key")
	if keyErr.Code != RetCKeyFormat {
		t.Errorf("expected RetCKeyFormat, got %s", keyErr.Code)
	}
	docErr := CodecErr(fmt.Errorf("%w: bad", codec.ErrInvalidDocument), "decode")
	if docErr.Code != RetCCodec {
		t.Errorf("expected RetCCodec, got %s", docErr.Code)
	}
}

func TestDocument(t *testing.T) {
	a := Document(`{"a": 1, "b": [1, 2]}`)
	b := Document(`{"b":[1,2],"a":1}`)
	c := Document(`{"a": 2, "b": [1, 2]}`)

	if !a.Equal(b) {
		t.Errorf("documents with different key order must be equal")
	}
	if a.Equal(c) {
		t.Errorf("different documents must not be equal")
	}
	if a.Equal(nil) || !Document(nil).Equal(nil) {
		t.Errorf("unexpected nil equality")
	}

	if _, err := ParseDocument([]byte(`{"open":`)); !errors.Is(err, ErrCodec) {
		t.Errorf("expected a codec error, got %v", err)
	}

	patched, err := a.MergePatch([]byte(`{"a": null, "c": true}`))
	if err != nil {
		t.Fatalf("MergePatch failed: %v", err)
	}
	if !patched.Equal(Document(`{"b":[1,2],"c":true}`)) {
		t.Errorf("unexpected merge result %s", patched)
	}

	patched, err = a.ApplyPatch([]byte(`[{"op":"replace","path":"/a","value":5}]`))
	if err != nil {
		t.Fatalf("ApplyPatch failed: %v", err)
	}
	if !patched.Equal(Document(`{"a":5,"b":[1,2]}`)) {
		t.Errorf("unexpected patch result %s", patched)
	}
	if _, err := a.ApplyPatch([]byte(`{"not":"a patch"}`)); !errors.Is(err, ErrCodec) {
		t.Errorf("expected a codec error for an invalid patch, got %v", err)
	}
}
