package source

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/eddielth/sensor2mqtt/logger"
)

// DefaultNvidiaTimeout bounds one nvidia-smi query.
const DefaultNvidiaTimeout = 15 * time.Second

// NvidiaSource polls NVIDIA GPUs through nvidia-smi. Each GPU becomes one
// status-shaped reading with a temperature and a power entry.
type NvidiaSource struct {
	Timeout time.Duration

	run runner
}

// NewNvidiaSource creates the GPU adapter.
func NewNvidiaSource() *NvidiaSource {
	return &NvidiaSource{
		Timeout: DefaultNvidiaTimeout,
		run:     runCommand,
	}
}

// Name identifies the source in logs.
func (s *NvidiaSource) Name() string { return "nvidia-smi" }

// Poll queries one CSV line per GPU with no header. A missing nvidia-smi
// binary means no NVIDIA GPUs are present and yields an empty result, not
// an error. A failing or hanging nvidia-smi is a real error the caller may
// still treat as non-fatal.
func (s *NvidiaSource) Poll(ctx context.Context) ([]DeviceReading, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultNvidiaTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := s.run(ctx, "nvidia-smi",
		"--query-gpu=name,temperature.gpu,power.draw",
		"--format=csv,noheader,nounits")
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			logger.Info("nvidia-smi not found, assuming no NVIDIA GPUs")
			return nil, nil
		}
		return nil, fmt.Errorf("gpu query failed: %w", err)
	}

	readings := parseGPUCSV(string(out))
	logger.Info("nvidia-smi reported %d GPU(s)", len(readings))
	return readings, nil
}

// parseGPUCSV parses `name,temperature,power` lines, accepting the legacy
// two-column `temperature,power` form. Malformed lines are logged and
// skipped; they never abort the remaining lines.
func parseGPUCSV(out string) []DeviceReading {
	var readings []DeviceReading

	for i, line := range strings.Split(strings.TrimSpace(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		reading, err := parseGPULine(line, i)
		if err != nil {
			logger.Warn("could not parse GPU metrics from line %q: %v", line, err)
			continue
		}
		readings = append(readings, reading)
	}

	return readings
}

func parseGPULine(line string, index int) (DeviceReading, error) {
	parts := strings.Split(line, ",")

	name := "gpu"
	var tempField, powerField string
	switch len(parts) {
	case 3:
		name = strings.TrimSpace(parts[0])
		tempField = strings.TrimSpace(parts[1])
		powerField = strings.TrimSpace(parts[2])
	case 2:
		tempField = strings.TrimSpace(parts[0])
		powerField = strings.TrimSpace(parts[1])
	default:
		return DeviceReading{}, fmt.Errorf("expected 2 or 3 fields, got %d", len(parts))
	}

	temperature, err := strconv.Atoi(tempField)
	if err != nil {
		return DeviceReading{}, fmt.Errorf("bad temperature %q", tempField)
	}
	power, err := strconv.ParseFloat(powerField, 64)
	if err != nil {
		return DeviceReading{}, fmt.Errorf("bad power %q", powerField)
	}

	// Source IDs combine the GPU name slug with the line index so two
	// identical cards stay distinct.
	return DeviceReading{
		SourceID:    fmt.Sprintf("%s_%d", Slug(name), index),
		DisplayName: name,
		Kind:        KindGPU,
		Shape:       ShapeStatusList,
		Status: []StatusEntry{
			{Key: "temperature", Value: temperature, Unit: "°C"},
			{Key: "power", Value: power, Unit: "W"},
		},
	}, nil
}
