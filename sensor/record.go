package sensor

// Record is one flattened, classified sensor observation. Value is always
// a scalar; containers are fully expanded before a record exists.
type Record struct {
	Category Category
	// Name is the normalized identifier: lowercase, spaces replaced by
	// underscores.
	Name  string
	Value interface{}
	// Unit is empty when the source supplied none or unit reporting is
	// disabled.
	Unit     string
	SourceID string
	// OriginalKey preserves the pre-classification raw key for
	// traceability; empty when the name was not derived from a raw key.
	OriginalKey string
}
