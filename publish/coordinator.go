package publish

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/eddielth/sensor2mqtt/logger"
	"github.com/eddielth/sensor2mqtt/sensor"
	"github.com/eddielth/sensor2mqtt/source"
	"github.com/eddielth/sensor2mqtt/transform"
)

// Sink is where topic/payload pairs go. The MQTT client satisfies it; tests
// substitute an in-memory recorder.
type Sink interface {
	Publish(topic string, payload []byte) error
}

// ErrNoData reports a run in which no source contributed any readings.
var ErrNoData = errors.New("no data from any source")

// RunResult summarizes one publish cycle.
type RunResult struct {
	Published int
	Failed    int
	Dropped   int
}

// Coordinator turns readings into records and writes them to the sink.
type Coordinator struct {
	Sink       Sink
	Normalizer sensor.Normalizer
	Namespaces Namespaces
	// Transforms is optional; nil means records pass through untouched.
	Transforms *transform.Manager

	// now is stubbed in tests.
	now func() time.Time
}

// NewCoordinator wires a coordinator for the given sink.
func NewCoordinator(sink Sink, normalizer sensor.Normalizer, ns Namespaces, transforms *transform.Manager) *Coordinator {
	return &Coordinator{
		Sink:       sink,
		Normalizer: normalizer,
		Namespaces: ns,
		Transforms: transforms,
		now:        time.Now,
	}
}

// Run publishes every record derived from the readings. All records share
// one timestamp captured at the start of the run. A per-record publish
// failure is logged and counted but never aborts the remaining records;
// the run errors only when there was nothing to publish at all, or when
// records existed and not a single one reached the sink.
func (c *Coordinator) Run(readings []source.DeviceReading) (RunResult, error) {
	var result RunResult

	if len(readings) == 0 {
		return result, ErrNoData
	}

	timestamp := c.timestamp()
	total := 0

	for _, reading := range readings {
		records := c.Normalizer.Normalize(reading)
		total += len(records)

		for _, record := range records {
			record, keep, err := c.applyTransform(reading, record)
			if err != nil {
				logger.Error("transform failed for %s/%s: %v", record.Category, record.Name, err)
				result.Failed++
				continue
			}
			if !keep {
				logger.Debug("transform dropped record %s/%s", record.Category, record.Name)
				result.Dropped++
				continue
			}

			topic := BuildTopic(record, reading, c.Namespaces)
			payload, err := json.Marshal(BuildPayload(record, timestamp))
			if err != nil {
				logger.Error("failed to encode payload for topic %s: %v", topic, err)
				result.Failed++
				continue
			}

			if err := c.Sink.Publish(topic, payload); err != nil {
				logger.Error("failed to publish %s to topic %s: %v", record.Name, topic, err)
				result.Failed++
				continue
			}

			logger.Info("published to %s: %v %s", topic, record.Value, record.Unit)
			result.Published++
		}
	}

	if total == 0 {
		return result, fmt.Errorf("%w: readings produced no records", ErrNoData)
	}
	// Guards against a sink that silently accepts nothing: normalized
	// records that never reached the broker are a failed run even when no
	// individual publish reported an error.
	if result.Published == 0 && total > result.Dropped {
		return result, fmt.Errorf("produced %d records but published none", total)
	}

	return result, nil
}

func (c *Coordinator) applyTransform(reading source.DeviceReading, record sensor.Record) (sensor.Record, bool, error) {
	if c.Transforms == nil {
		return record, true, nil
	}
	return c.Transforms.Apply(reading.Kind.String(), record)
}

// timestamp returns the shared ISO-8601 UTC timestamp for one run.
func (c *Coordinator) timestamp() string {
	now := time.Now
	if c.now != nil {
		now = c.now
	}
	return now().UTC().Format(time.RFC3339)
}
