package source

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/eddielth/sensor2mqtt/logger"
)

// DefaultLiquidctlTimeout bounds one status query.
const DefaultLiquidctlTimeout = 30 * time.Second

// LiquidctlSource polls a liquid-cooling controller through the liquidctl
// status command.
type LiquidctlSource struct {
	// DeviceName is the fallback display name when the status output has
	// no device or description field.
	DeviceName string
	Timeout    time.Duration

	run runner
}

// NewLiquidctlSource creates the cooling-controller adapter.
func NewLiquidctlSource(deviceName string) *LiquidctlSource {
	return &LiquidctlSource{
		DeviceName: deviceName,
		Timeout:    DefaultLiquidctlTimeout,
		run:        runCommand,
	}
}

// Name identifies the source in logs.
func (s *LiquidctlSource) Name() string { return "liquidctl" }

// Poll runs `liquidctl status --json` and converts its output, which may be
// a single object or an array of objects, into readings. Every failure mode
// is returned as an error for the caller to log and degrade on.
func (s *LiquidctlSource) Poll(ctx context.Context) ([]DeviceReading, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultLiquidctlTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := s.run(ctx, "liquidctl", "status", "--json")
	if err != nil {
		return nil, err
	}

	readings, err := s.parseStatus(out)
	if err != nil {
		return nil, err
	}

	logger.Info("liquidctl reported %d device(s)", len(readings))
	return readings, nil
}

// parseStatus accepts either one JSON object or an array of objects.
func (s *LiquidctlSource) parseStatus(out []byte) ([]DeviceReading, error) {
	var raw interface{}
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON from liquidctl: %v", ErrProtocol, err)
	}

	var devices []interface{}
	switch v := raw.(type) {
	case []interface{}:
		devices = v
	case map[string]interface{}:
		devices = []interface{}{v}
	default:
		return nil, fmt.Errorf("%w: expected object or array from liquidctl, got %T", ErrProtocol, raw)
	}

	readings := make([]DeviceReading, 0, len(devices))
	for i, dev := range devices {
		m, ok := dev.(map[string]interface{})
		if !ok {
			logger.Warn("skipping liquidctl device entry %d: not an object", i)
			continue
		}
		readings = append(readings, s.buildReading(m))
	}

	return readings, nil
}

// buildReading resolves the reading's identity and its shape tag. The shape
// is decided here, once: a status array of key/value entries makes a
// status-list reading, anything else stays an ad-hoc field mapping.
func (s *LiquidctlSource) buildReading(m map[string]interface{}) DeviceReading {
	identity := s.DeviceName
	if v, ok := m["device"].(string); ok && v != "" {
		identity = v
	} else if v, ok := m["description"].(string); ok && v != "" {
		identity = v
	}

	reading := DeviceReading{
		SourceID:    identity,
		DisplayName: identity,
		Kind:        KindCooling,
	}

	if rawStatus, ok := m["status"].([]interface{}); ok {
		reading.Shape = ShapeStatusList
		reading.Status = parseStatusList(rawStatus)
		return reading
	}

	reading.Shape = ShapeAdHoc
	reading.Fields = m
	return reading
}

// parseStatusList keeps malformed entries as zero-valued StatusEntry so the
// normalizer can count them instead of this adapter silently dropping them.
func parseStatusList(raw []interface{}) []StatusEntry {
	entries := make([]StatusEntry, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			entries = append(entries, StatusEntry{})
			continue
		}

		var entry StatusEntry
		if key, ok := m["key"].(string); ok {
			entry.Key = key
		}
		entry.Value = m["value"]
		if unit, ok := m["unit"].(string); ok {
			entry.Unit = unit
		}
		entries = append(entries, entry)
	}
	return entries
}
