package transform

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/dop251/goja"

	"github.com/eddielth/sensor2mqtt/config"
	"github.com/eddielth/sensor2mqtt/logger"
	"github.com/eddielth/sensor2mqtt/sensor"
)

// Manager holds the optional per-source-kind record transforms. A source
// kind without a configured script passes records through untouched.
type Manager struct {
	transformers map[string]*Transformer
	mutex        sync.RWMutex
}

// Transformer wraps one JavaScript runtime with a loaded transform script.
type Transformer struct {
	vm         *goja.Runtime
	transform  goja.Callable
	scriptPath string
}

// NewManager compiles the configured scripts, keyed by source kind
// ("cooling", "gpu").
func NewManager(configs config.TransformsConfig) (*Manager, error) {
	manager := &Manager{
		transformers: make(map[string]*Transformer),
	}

	for kind, cfg := range configs {
		scriptCode, err := loadScript(cfg)
		if err != nil {
			return nil, fmt.Errorf("transform for %s: %v", kind, err)
		}

		t, err := newTransformer(scriptCode, cfg.ScriptPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create transform for %s: %v", kind, err)
		}

		manager.transformers[kind] = t
		logger.Info("loaded record transform for source kind %s", kind)
	}

	return manager, nil
}

func loadScript(cfg config.TransformConfig) (string, error) {
	if cfg.ScriptCode != "" {
		return cfg.ScriptCode, nil
	}
	if cfg.ScriptPath != "" {
		scriptBytes, err := os.ReadFile(cfg.ScriptPath)
		if err != nil {
			return "", fmt.Errorf("cannot load script file %s: %v", cfg.ScriptPath, err)
		}
		return string(scriptBytes), nil
	}
	return "", fmt.Errorf("neither script_code nor script_path provided")
}

// newTransformer builds a JavaScript runtime, injects the helper functions
// and loads the script, which must define transform(record).
func newTransformer(scriptCode, scriptPath string) (*Transformer, error) {
	vm := goja.New()

	_ = vm.Set("log", func(msg string) {
		logger.Info("[JS] %s", msg)
	})

	_ = vm.Set("validateRange", func(value float64, min float64, max float64) bool {
		return value >= min && value <= max
	})

	_ = vm.Set("convertTemperature", func(value float64, fromUnit string, toUnit string) float64 {
		fromUnit = strings.ToUpper(fromUnit)
		toUnit = strings.ToUpper(toUnit)

		var celsius float64
		switch fromUnit {
		case "C":
			celsius = value
		case "F":
			celsius = (value - 32) * 5 / 9
		case "K":
			celsius = value - 273.15
		default:
			return value
		}

		switch toUnit {
		case "C":
			return celsius
		case "F":
			return celsius*9/5 + 32
		case "K":
			return celsius + 273.15
		default:
			return celsius
		}
	})

	if _, err := vm.RunString(scriptCode); err != nil {
		return nil, fmt.Errorf("failed to run script: %v", err)
	}

	transformValue := vm.Get("transform")
	if transformValue == nil {
		return nil, fmt.Errorf("script does not define a 'transform' function")
	}

	transform, ok := goja.AssertFunction(transformValue)
	if !ok {
		return nil, fmt.Errorf("'transform' is not a function")
	}

	return &Transformer{
		vm:         vm,
		transform:  transform,
		scriptPath: scriptPath,
	}, nil
}

// Apply runs the transform configured for kind over one record. The second
// return is false when the script dropped the record by returning null or
// undefined. Without a configured transform the record passes through.
func (m *Manager) Apply(kind string, record sensor.Record) (sensor.Record, bool, error) {
	m.mutex.RLock()
	t, exists := m.transformers[kind]
	m.mutex.RUnlock()

	if !exists {
		return record, true, nil
	}

	input := map[string]interface{}{
		"category":     string(record.Category),
		"name":         record.Name,
		"value":        record.Value,
		"unit":         record.Unit,
		"source_id":    record.SourceID,
		"original_key": record.OriginalKey,
	}

	result, err := t.transform(goja.Undefined(), t.vm.ToValue(input))
	if err != nil {
		return record, false, fmt.Errorf("transform failed: %v", err)
	}

	if goja.IsNull(result) || goja.IsUndefined(result) {
		return record, false, nil
	}

	out, ok := result.Export().(map[string]interface{})
	if !ok {
		return record, false, fmt.Errorf("transform returned %T, want an object or null", result.Export())
	}

	updated := record
	if v, ok := out["category"].(string); ok && v != "" {
		updated.Category = sensor.Category(v)
	}
	if v, ok := out["name"].(string); ok && v != "" {
		updated.Name = v
	}
	if v, hasValue := out["value"]; hasValue {
		updated.Value = v
	}
	if v, ok := out["unit"].(string); ok {
		updated.Unit = v
	}
	return updated, true, nil
}

// Reload replaces the transform for one source kind, used on config change.
func (m *Manager) Reload(kind string, cfg config.TransformConfig) error {
	scriptCode, err := loadScript(cfg)
	if err != nil {
		return err
	}

	t, err := newTransformer(scriptCode, cfg.ScriptPath)
	if err != nil {
		return fmt.Errorf("failed to create transform: %v", err)
	}

	m.mutex.Lock()
	m.transformers[kind] = t
	m.mutex.Unlock()

	logger.Info("reloaded record transform for source kind %s", kind)
	return nil
}
