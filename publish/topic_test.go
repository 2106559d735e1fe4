package publish

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddielth/sensor2mqtt/sensor"
	"github.com/eddielth/sensor2mqtt/source"
)

var testNamespaces = Namespaces{Default: "home/liquidctl", GPU: "home/gpu"}

func TestBuildTopicCooling(t *testing.T) {
	reading := source.DeviceReading{
		SourceID: "NZXT Kraken X73",
		Kind:     source.KindCooling,
	}
	record := sensor.Record{
		Category: sensor.CategoryTemperature,
		Name:     "cpu_core",
	}

	topic := BuildTopic(record, reading, testNamespaces)
	assert.Equal(t, "home/liquidctl/nzxt_kraken_x73/temperature/cpu_core", topic)
}

func TestBuildTopicGPUOmitsNameSegment(t *testing.T) {
	reading := source.DeviceReading{
		SourceID: "nvidia_geforce_rtx_3080_0",
		Kind:     source.KindGPU,
	}
	record := sensor.Record{
		Category: sensor.CategoryTemperature,
		Name:     "temperature",
	}

	topic := BuildTopic(record, reading, testNamespaces)
	assert.Equal(t, "home/gpu/nvidia_geforce_rtx_3080_0/temperature", topic)
}

func TestBuildTopicRoutingIsStructural(t *testing.T) {
	// A cooling device whose name happens to mention a GPU must still be
	// routed to the default namespace.
	reading := source.DeviceReading{
		SourceID: "gpu cooler block",
		Kind:     source.KindCooling,
	}
	record := sensor.Record{Category: sensor.CategoryFlow, Name: "flow_rate"}

	topic := BuildTopic(record, reading, testNamespaces)
	assert.Equal(t, "home/liquidctl/gpu_cooler_block/flow/flow_rate", topic)
}

func TestBuildTopicDeterministic(t *testing.T) {
	reading := source.DeviceReading{SourceID: "Kraken", Kind: source.KindCooling}
	record := sensor.Record{Category: sensor.CategoryPump, Name: "pump_speed"}

	first := BuildTopic(record, reading, testNamespaces)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, BuildTopic(record, reading, testNamespaces))
	}
}

func TestBuildTopicDeviceIDFallbacks(t *testing.T) {
	record := sensor.Record{Category: sensor.CategorySensor, Name: "x"}

	withDisplay := source.DeviceReading{DisplayName: "Spare Device", Kind: source.KindCooling}
	assert.Equal(t, "home/liquidctl/spare_device/sensor/x",
		BuildTopic(record, withDisplay, testNamespaces))

	anonymous := source.DeviceReading{Kind: source.KindCooling}
	assert.Equal(t, "home/liquidctl/cooling/sensor/x",
		BuildTopic(record, anonymous, testNamespaces))
}

func TestBuildTopicHasNoUppercaseOrSpaces(t *testing.T) {
	reading := source.DeviceReading{SourceID: "Corsair  Commander PRO", Kind: source.KindCooling}
	record := sensor.Record{Category: sensor.CategoryFanSpeed, Name: "fan_1_speed"}

	topic := BuildTopic(record, reading, testNamespaces)
	assert.NotContains(t, topic, " ")
	assert.Equal(t, "home/liquidctl/corsair_commander_pro/fan_speed/fan_1_speed", topic)
}

func TestBuildPayloadWireFormat(t *testing.T) {
	record := sensor.Record{
		Category:    sensor.CategoryTemperature,
		Name:        "liquid_temperature",
		Value:       33.1,
		Unit:        "°C",
		OriginalKey: "Liquid temperature",
	}

	data, err := json.Marshal(BuildPayload(record, "2026-08-24T10:00:00Z"))
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &got))

	assert.Equal(t, map[string]interface{}{
		"timestamp":    "2026-08-24T10:00:00Z",
		"category":     "temperature",
		"name":         "liquid_temperature",
		"value":        33.1,
		"unit":         "°C",
		"original_key": "Liquid temperature",
	}, got)
}

func TestBuildPayloadOmitsEmptyOptionalFields(t *testing.T) {
	record := sensor.Record{
		Category: sensor.CategoryPump,
		Name:     "pump_speed",
		Value:    2400.0,
	}

	data, err := json.Marshal(BuildPayload(record, "2026-08-24T10:00:00Z"))
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.NotContains(t, got, "unit")
	assert.NotContains(t, got, "original_key")
}
