package source

import (
	"context"
	"errors"
	"strings"
)

// Kind identifies which adapter produced a reading. Topic routing keys off
// this tag, never off the reading's content.
type Kind int

const (
	// KindCooling marks readings from the liquid-cooling controller.
	KindCooling Kind = iota
	// KindGPU marks readings synthesized by the GPU adapter.
	KindGPU
)

func (k Kind) String() string {
	if k == KindGPU {
		return "gpu"
	}
	return "cooling"
}

// Shape tags which of the two payload layouts a reading carries. It is
// resolved once, when the adapter builds the reading.
type Shape int

const (
	// ShapeAdHoc means Fields holds a free-form nested mapping.
	ShapeAdHoc Shape = iota
	// ShapeStatusList means Status holds the canonical key/value/unit list.
	ShapeStatusList
)

// StatusEntry is one element of a status-list reading. Entries with an
// empty Key or nil Value are carried through so the normalizer can count
// them as invalid.
type StatusEntry struct {
	Key   string
	Value interface{}
	Unit  string
}

// DeviceReading is one polled sample from one hardware device.
type DeviceReading struct {
	SourceID    string
	DisplayName string
	Kind        Kind
	Shape       Shape

	// Status is populated when Shape is ShapeStatusList.
	Status []StatusEntry
	// Fields is populated when Shape is ShapeAdHoc.
	Fields map[string]interface{}
}

// Source is a pollable hardware source.
type Source interface {
	// Name identifies the source in logs.
	Name() string
	// Poll gathers the current readings. A missing device yields an empty
	// slice, not an error; errors mean the source was present but failed.
	Poll(ctx context.Context) ([]DeviceReading, error)
}

// Error taxonomy for source failures. Adapters wrap these so callers can
// test with errors.Is while the message keeps the command detail.
var (
	// ErrUnavailable means the source executable is not installed.
	ErrUnavailable = errors.New("source executable not found")
	// ErrTimeout means the source command exceeded its deadline.
	ErrTimeout = errors.New("source command timed out")
	// ErrProtocol means the source produced output we cannot parse.
	ErrProtocol = errors.New("source produced malformed output")
)

// Slug lowercases s and replaces whitespace with underscores. It is the
// single sanitization rule for device identities and topic segments, for
// both source kinds.
func Slug(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), "_"))
}
