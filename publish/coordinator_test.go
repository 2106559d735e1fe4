package publish

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddielth/sensor2mqtt/config"
	"github.com/eddielth/sensor2mqtt/sensor"
	"github.com/eddielth/sensor2mqtt/source"
	"github.com/eddielth/sensor2mqtt/transform"
)

// fakeSink records publishes and can fail selected topics.
type fakeSink struct {
	published map[string][]byte
	failWhen  func(topic string) bool
}

func newFakeSink() *fakeSink {
	return &fakeSink{published: make(map[string][]byte)}
}

func (f *fakeSink) Publish(topic string, payload []byte) error {
	if f.failWhen != nil && f.failWhen(topic) {
		return errors.New("broker rejected publish")
	}
	f.published[topic] = payload
	return nil
}

func testCoordinator(sink Sink) *Coordinator {
	c := NewCoordinator(sink, sensor.Normalizer{IncludeUnits: true}, testNamespaces, nil)
	c.now = func() time.Time {
		return time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	}
	return c
}

func coolingReading() source.DeviceReading {
	return source.DeviceReading{
		SourceID: "NZXT Kraken X73",
		Kind:     source.KindCooling,
		Shape:    source.ShapeStatusList,
		Status: []source.StatusEntry{
			{Key: "Liquid temperature", Value: 33.1, Unit: "°C"},
			{Key: "Pump speed", Value: 2235.0, Unit: "rpm"},
		},
	}
}

func gpuReading() source.DeviceReading {
	return source.DeviceReading{
		SourceID: "rtx_3080_0",
		Kind:     source.KindGPU,
		Shape:    source.ShapeStatusList,
		Status: []source.StatusEntry{
			{Key: "temperature", Value: 61, Unit: "°C"},
			{Key: "power", Value: 227.4, Unit: "W"},
		},
	}
}

func TestRunPublishesAllRecords(t *testing.T) {
	sink := newFakeSink()
	c := testCoordinator(sink)

	result, err := c.Run([]source.DeviceReading{coolingReading(), gpuReading()})
	require.NoError(t, err)
	assert.Equal(t, 4, result.Published)
	assert.Equal(t, 0, result.Failed)

	assert.Contains(t, sink.published, "home/liquidctl/nzxt_kraken_x73/temperature/liquid_temperature")
	assert.Contains(t, sink.published, "home/liquidctl/nzxt_kraken_x73/pump/pump_speed")
	assert.Contains(t, sink.published, "home/gpu/rtx_3080_0/temperature")
	assert.Contains(t, sink.published, "home/gpu/rtx_3080_0/power")
}

func TestRunSharesOneTimestamp(t *testing.T) {
	sink := newFakeSink()
	c := testCoordinator(sink)

	_, err := c.Run([]source.DeviceReading{coolingReading(), gpuReading()})
	require.NoError(t, err)

	timestamps := make(map[string]bool)
	for _, payload := range sink.published {
		var p Payload
		require.NoError(t, json.Unmarshal(payload, &p))
		timestamps[p.Timestamp] = true
	}
	require.Len(t, timestamps, 1)
	for ts := range timestamps {
		assert.Equal(t, "2026-08-24T10:00:00Z", ts)
		assert.True(t, strings.HasSuffix(ts, "Z"))
	}
}

func TestRunToleratesPerRecordFailures(t *testing.T) {
	sink := newFakeSink()
	sink.failWhen = func(topic string) bool {
		return strings.Contains(topic, "pump_speed")
	}
	c := testCoordinator(sink)

	result, err := c.Run([]source.DeviceReading{coolingReading()})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Published)
	assert.Equal(t, 1, result.Failed)
	assert.Contains(t, sink.published, "home/liquidctl/nzxt_kraken_x73/temperature/liquid_temperature")
}

func TestRunFailsWithoutReadings(t *testing.T) {
	c := testCoordinator(newFakeSink())

	_, err := c.Run(nil)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestRunFailsWhenReadingsProduceNoRecords(t *testing.T) {
	c := testCoordinator(newFakeSink())

	empty := source.DeviceReading{
		SourceID: "silent",
		Shape:    source.ShapeAdHoc,
		Fields:   map[string]interface{}{},
	}
	_, err := c.Run([]source.DeviceReading{empty})
	assert.ErrorIs(t, err, ErrNoData)
}

func TestRunFailsWhenNothingWasPublished(t *testing.T) {
	sink := newFakeSink()
	sink.failWhen = func(string) bool { return true }
	c := testCoordinator(sink)

	result, err := c.Run([]source.DeviceReading{coolingReading()})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoData)
	assert.Equal(t, 0, result.Published)
	assert.Equal(t, 2, result.Failed)
}

func TestRunGPUOnlyTopicsStayInGPUNamespace(t *testing.T) {
	sink := newFakeSink()
	c := testCoordinator(sink)

	_, err := c.Run([]source.DeviceReading{gpuReading()})
	require.NoError(t, err)

	for topic := range sink.published {
		assert.True(t, strings.HasPrefix(topic, "home/gpu/"), "unexpected topic %s", topic)
	}
}

func TestRunAppliesTransforms(t *testing.T) {
	transforms, err := transform.NewManager(config.TransformsConfig{
		"cooling": {ScriptCode: `
			function transform(record) {
				if (record.category === "pump") {
					return null;
				}
				record.name = record.name + "_adj";
				return record;
			}
		`},
	})
	require.NoError(t, err)

	sink := newFakeSink()
	c := NewCoordinator(sink, sensor.Normalizer{IncludeUnits: true}, testNamespaces, transforms)

	result, err := c.Run([]source.DeviceReading{coolingReading()})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Published)
	assert.Equal(t, 1, result.Dropped)
	assert.Contains(t, sink.published, "home/liquidctl/nzxt_kraken_x73/temperature/liquid_temperature_adj")
}
