package publish

import (
	"strings"

	"github.com/eddielth/sensor2mqtt/sensor"
	"github.com/eddielth/sensor2mqtt/source"
)

// Namespaces holds the two topic-tree prefixes.
type Namespaces struct {
	// Default receives cooling-controller telemetry.
	Default string
	// GPU receives GPU telemetry.
	GPU string
}

// Payload is the wire format published under each topic.
type Payload struct {
	Timestamp   string      `json:"timestamp"`
	Category    string      `json:"category"`
	Name        string      `json:"name"`
	Value       interface{} `json:"value"`
	Unit        string      `json:"unit,omitempty"`
	OriginalKey string      `json:"original_key,omitempty"`
}

// BuildTopic derives the topic path for one record. Namespace selection is
// the reading's kind tag, stamped by the adapter that synthesized it; GPU
// topics drop the name segment because it always equals the category for
// single-metric GPU records.
func BuildTopic(record sensor.Record, reading source.DeviceReading, ns Namespaces) string {
	deviceID := deviceID(reading)

	if reading.Kind == source.KindGPU {
		return strings.Join([]string{ns.GPU, deviceID, string(record.Category)}, "/")
	}
	return strings.Join([]string{ns.Default, deviceID, string(record.Category), record.Name}, "/")
}

// deviceID slugs the reading identity, preferring the source ID, then the
// display name, then the kind tag itself.
func deviceID(reading source.DeviceReading) string {
	if reading.SourceID != "" {
		return source.Slug(reading.SourceID)
	}
	if reading.DisplayName != "" {
		return source.Slug(reading.DisplayName)
	}
	return reading.Kind.String()
}

// BuildPayload assembles the wire payload for one record with the shared
// per-run timestamp.
func BuildPayload(record sensor.Record, timestamp string) Payload {
	return Payload{
		Timestamp:   timestamp,
		Category:    string(record.Category),
		Name:        record.Name,
		Value:       record.Value,
		Unit:        record.Unit,
		OriginalKey: record.OriginalKey,
	}
}
