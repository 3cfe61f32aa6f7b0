package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ValentinKolb/jstore/lib/codec"
	"github.com/ValentinKolb/jstore/lib/db"
)

// --------------------------------------------------------------------------
// Defaults
// --------------------------------------------------------------------------

const (
	DefaultInitialCapacity   = 1_000_000
	DefaultBatchSize         = 1_000
	DefaultNumSyncBatches    = 10
	DefaultSegmentFileSizeMB = 128
	DefaultSegmentStrategy   = string(db.StrategyBufferedWrite)
	DefaultKeyCodec          = codec.NumericPath
	DefaultValueCodec        = codec.CompressedDocument

	// MaxSegmentFileSizeMB is the largest segment file the engine accepts
	MaxSegmentFileSizeMB = 2047
)

// StoreConfig is the per-source configuration persisted in config.json.
// A zero field is unset and receives its default during Resolve.
type StoreConfig struct {
	InitialCapacity   int    `json:"initialCapacity,omitempty"`
	BatchSize         int    `json:"batchSize,omitempty"`
	NumSyncBatches    int    `json:"numSyncBatches,omitempty"`
	SegmentFileSizeMB int    `json:"segmentFileSizeMB,omitempty"`
	SegmentStrategy   string `json:"segmentStrategy,omitempty"`
	KeyCodec          string `json:"keyCodec,omitempty"`
	ValueCodec        string `json:"valueCodec,omitempty"`
}

// DefaultConfig returns the fully resolved default configuration.
func DefaultConfig() StoreConfig {
	return StoreConfig{
		InitialCapacity:   DefaultInitialCapacity,
		BatchSize:         DefaultBatchSize,
		NumSyncBatches:    DefaultNumSyncBatches,
		SegmentFileSizeMB: DefaultSegmentFileSizeMB,
		SegmentStrategy:   DefaultSegmentStrategy,
		KeyCodec:          DefaultKeyCodec,
		ValueCodec:        DefaultValueCodec,
	}
}

// --------------------------------------------------------------------------
// Resolution and Validation
// --------------------------------------------------------------------------

// Resolve fills every unset field with its default and keeps the others.
// Resolving a resolved config returns it unchanged.
func (c StoreConfig) Resolve() StoreConfig {
	d := DefaultConfig()
	if c.InitialCapacity == 0 {
		c.InitialCapacity = d.InitialCapacity
	}
	if c.BatchSize == 0 {
		c.BatchSize = d.BatchSize
	}
	if c.NumSyncBatches == 0 {
		c.NumSyncBatches = d.NumSyncBatches
	}
	if c.SegmentFileSizeMB == 0 {
		c.SegmentFileSizeMB = d.SegmentFileSizeMB
	}
	if c.SegmentStrategy == "" {
		c.SegmentStrategy = d.SegmentStrategy
	}
	if c.KeyCodec == "" {
		c.KeyCodec = d.KeyCodec
	}
	if c.ValueCodec == "" {
		c.ValueCodec = d.ValueCodec
	}
	return c
}

// Validate checks a resolved config. All failures are RetCConfig errors.
func (c StoreConfig) Validate() error {
	positive := []struct {
		name  string
		value int
	}{
		{"initialCapacity", c.InitialCapacity},
		{"batchSize", c.BatchSize},
		{"numSyncBatches", c.NumSyncBatches},
		{"segmentFileSizeMB", c.SegmentFileSizeMB},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return NewError(RetCConfig, fmt.Sprintf("%s must be positive, got %d", p.name, p.value))
		}
	}
	if c.SegmentFileSizeMB > MaxSegmentFileSizeMB {
		return NewError(RetCConfig, fmt.Sprintf("segmentFileSizeMB must not exceed %d, got %d",
			MaxSegmentFileSizeMB, c.SegmentFileSizeMB))
	}
	if _, ok := db.Strategies[db.SegmentStrategy(c.SegmentStrategy)]; !ok {
		return NewError(RetCConfig, fmt.Sprintf("unknown segmentStrategy %q", c.SegmentStrategy))
	}
	if _, err := codec.KeyCodecByID(c.KeyCodec); err != nil {
		return CodecErr(err, "invalid keyCodec")
	}
	if _, err := codec.DocumentCodecByID(c.ValueCodec); err != nil {
		return CodecErr(err, "invalid valueCodec")
	}
	return nil
}

// ParseConfig parses config.json text. Missing fields stay unset.
func ParseConfig(text []byte) (StoreConfig, error) {
	var c StoreConfig
	if !json.Valid(text) {
		return StoreConfig{}, NewError(RetCConfig, "config text is not valid JSON")
	}
	dec := json.NewDecoder(bytes.NewReader(text))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return StoreConfig{}, WrapError(RetCConfig, err, "invalid config text")
	}
	return c, nil
}

// ResolveText parses, resolves and validates config text in one step.
// Empty text resolves to the defaults.
func ResolveText(text []byte) (StoreConfig, error) {
	var c StoreConfig
	if len(bytes.TrimSpace(text)) > 0 {
		var err error
		if c, err = ParseConfig(text); err != nil {
			return StoreConfig{}, err
		}
	}
	c = c.Resolve()
	if err := c.Validate(); err != nil {
		return StoreConfig{}, err
	}
	return c, nil
}

// Marshal renders the config as indented JSON text for the sidecar file.
func (c StoreConfig) Marshal() []byte {
	out, _ := json.MarshalIndent(c, "", "  ")
	return append(out, '\n')
}

// EngineOptions derives the engine options of a resolved config.
func (c StoreConfig) EngineOptions(dir string) db.Options {
	return db.Options{
		Dir:               dir,
		Capacity:          c.InitialCapacity,
		BatchSize:         c.BatchSize,
		NumSyncBatches:    c.NumSyncBatches,
		SegmentFileSizeMB: c.SegmentFileSizeMB,
		Strategy:          db.SegmentStrategy(c.SegmentStrategy),
	}
}

func (c StoreConfig) String() string {
	var sb strings.Builder

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	sb.WriteString("STORE CONFIGURATION\n")
	addField("Initial Capacity", strconv.Itoa(c.InitialCapacity))
	addField("Batch Size", strconv.Itoa(c.BatchSize))
	addField("Sync Batches", strconv.Itoa(c.NumSyncBatches))
	addField("Segment File Size", fmt.Sprintf("%d MB", c.SegmentFileSizeMB))
	addField("Segment Strategy", c.SegmentStrategy)
	addField("Key Codec", c.KeyCodec)
	addField("Value Codec", c.ValueCodec)

	return sb.String()
}
