package sensor

import (
	"github.com/eddielth/sensor2mqtt/logger"
	"github.com/eddielth/sensor2mqtt/source"
)

// metadataFields never become categories or names; they describe the
// device, not a sensor.
var metadataFields = map[string]bool{
	"device":      true,
	"description": true,
	"bus":         true,
	"address":     true,
}

// Normalizer flattens device readings into records.
type Normalizer struct {
	// IncludeUnits controls whether source-supplied units are carried
	// onto records.
	IncludeUnits bool
}

// Normalize converts one reading into records. The traversal mode follows
// the shape tag the adapter resolved; an empty reading yields no records
// and no error.
func (n Normalizer) Normalize(reading source.DeviceReading) []Record {
	if reading.Shape == source.ShapeStatusList {
		return n.fromStatusList(reading)
	}
	return n.fromFields(reading)
}

// fromStatusList handles the canonical key/value/unit sequence. Entries
// missing a key or a value are counted and skipped, never fatal.
func (n Normalizer) fromStatusList(reading source.DeviceReading) []Record {
	records := make([]Record, 0, len(reading.Status))
	invalid := 0

	for _, entry := range reading.Status {
		if entry.Key == "" || entry.Value == nil {
			invalid++
			continue
		}

		// GPU readings arrive with keys that already are category
		// names; the lexical heuristic is only for cooling hardware.
		var category Category
		if reading.Kind == source.KindGPU {
			category = Category(entry.Key)
		} else {
			category = Classify(entry.Key)
		}

		record := Record{
			Category:    category,
			Name:        source.Slug(entry.Key),
			Value:       entry.Value,
			SourceID:    reading.SourceID,
			OriginalKey: entry.Key,
		}
		if n.IncludeUnits && entry.Unit != "" {
			record.Unit = entry.Unit
		}
		records = append(records, record)
	}

	if invalid > 0 {
		logger.Warn("skipped %d malformed status entries from %s", invalid, reading.SourceID)
	}
	return records
}

// fromFields walks the free-form field mapping. Every reachable leaf scalar
// yields exactly one record; the only drops are the metadata fields and
// lists whose elements are not {name, value} items.
func (n Normalizer) fromFields(reading source.DeviceReading) []Record {
	var records []Record
	n.walkMap(reading, "", reading.Fields, &records)
	return records
}

func (n Normalizer) walkMap(reading source.DeviceReading, parentKey string, fields map[string]interface{}, records *[]Record) {
	for key, value := range fields {
		if metadataFields[key] {
			continue
		}

		switch v := value.(type) {
		case map[string]interface{}:
			n.walkMap(reading, key, v, records)
		case []interface{}:
			n.walkList(reading, key, v, records)
		default:
			*records = append(*records, Record{
				Category:    resolveCategory(parentKey, key),
				Name:        source.Slug(key),
				Value:       value,
				SourceID:    reading.SourceID,
				OriginalKey: key,
			})
		}
	}
}

// walkList expands a list of {name, value} items under the parent key.
// A list whose elements are anything else carries no addressable sensors
// and is skipped whole, with a warning.
func (n Normalizer) walkList(reading source.DeviceReading, parentKey string, items []interface{}, records *[]Record) {
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			logger.Warn("skipping list %q from %s: elements are not named items", parentKey, reading.SourceID)
			return
		}
		if _, hasName := m["name"].(string); !hasName {
			logger.Warn("skipping list %q from %s: elements are not named items", parentKey, reading.SourceID)
			return
		}
		if _, hasValue := m["value"]; !hasValue {
			logger.Warn("skipping list %q from %s: elements are not named items", parentKey, reading.SourceID)
			return
		}
	}

	for _, item := range items {
		m := item.(map[string]interface{})
		name := m["name"].(string)

		*records = append(*records, Record{
			Category:    resolveCategory(parentKey, name),
			Name:        source.Slug(name),
			Value:       m["value"],
			SourceID:    reading.SourceID,
			OriginalKey: name,
		})
	}
}

// resolveCategory classifies the leaf key first and only consults the
// enclosing key when the leaf is inconclusive. "pump_speed" under "fan"
// must classify as pump, while "cpu_core" under "temperature" inherits
// temperature from its parent.
func resolveCategory(parentKey, leafKey string) Category {
	if c := Classify(leafKey); c != CategorySensor {
		return c
	}
	if parentKey == "" {
		return CategorySensor
	}
	return Classify(parentKey)
}
