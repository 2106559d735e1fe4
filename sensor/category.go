package sensor

import "strings"

// Category is the closed set of semantic sensor tags.
type Category string

const (
	CategoryTemperature Category = "temperature"
	CategoryFanSpeed    Category = "fan_speed"
	CategoryFanPower    Category = "fan_power"
	CategoryFanVoltage  Category = "fan_voltage"
	CategoryFanCurrent  Category = "fan_current"
	CategoryFlow        Category = "flow"
	CategoryPump        Category = "pump"
	CategoryVoltage     Category = "voltage"
	CategoryCurrent     Category = "current"
	CategoryPower       Category = "power"
	// CategorySensor is the general fallback.
	CategorySensor Category = "sensor"
)

// classifyRule matches when the key contains every substring in all and,
// when any is non-empty, at least one substring in any.
type classifyRule struct {
	all      []string
	any      []string
	category Category
}

// classifyRules is evaluated in order and the first match wins. The order
// is load-bearing: "fan power" must hit fan_power before the bare power
// rule, and pump before any later fallbacks.
var classifyRules = []classifyRule{
	{any: []string{"temp", "°c"}, category: CategoryTemperature},
	{all: []string{"fan"}, any: []string{"speed", "rpm"}, category: CategoryFanSpeed},
	{all: []string{"fan", "power"}, category: CategoryFanPower},
	{all: []string{"fan", "voltage"}, category: CategoryFanVoltage},
	{all: []string{"fan", "current"}, category: CategoryFanCurrent},
	{all: []string{"flow"}, category: CategoryFlow},
	{all: []string{"pump"}, category: CategoryPump},
	{all: []string{"voltage"}, category: CategoryVoltage},
	{all: []string{"current"}, category: CategoryCurrent},
	{all: []string{"power"}, category: CategoryPower},
}

// Classify maps a raw sensor key to its category using the ordered lexical
// rules, defaulting to CategorySensor.
func Classify(rawKey string) Category {
	key := strings.ToLower(rawKey)

	for _, rule := range classifyRules {
		if rule.matches(key) {
			return rule.category
		}
	}
	return CategorySensor
}

func (r classifyRule) matches(key string) bool {
	for _, sub := range r.all {
		if !strings.Contains(key, sub) {
			return false
		}
	}
	if len(r.any) == 0 {
		return true
	}
	for _, sub := range r.any {
		if strings.Contains(key, sub) {
			return true
		}
	}
	return false
}
