package devicecloud

// Device is one physical device registered to the account, as listed by the
// cloud. Immutable for the life of a session.
type Device struct {
	DSN         string `json:"dsn"`
	OEMModel    string `json:"oem_model"`
	ProductName string `json:"product_name"`
	Model       string `json:"model"`
	SWVersion   string `json:"sw_version"`
}

// Property is one named device property with its current value. Values are
// integers, floats or strings depending on the property's base type.
type Property struct {
	Name     string `json:"name"`
	BaseType string `json:"base_type"`
	Value    any    `json:"value"`
}

// The cloud wraps each list element in a single-key envelope.
type deviceEnvelope struct {
	Device Device `json:"device"`
}

type propertyEnvelope struct {
	Property Property `json:"property"`
}

// datapointRequest is the body of a property write: a single datapoint, the
// cloud's unit of state mutation.
type datapointRequest struct {
	Datapoint datapointValue `json:"datapoint"`
}

type datapointValue struct {
	Value any `json:"value"`
}

// Snapshot folds a property listing into a name-to-value map, the shape a
// polling consumer diffs against. Produced fresh per poll; no history kept.
func Snapshot(props []Property) map[string]any {
	snap := make(map[string]any, len(props))
	for _, p := range props {
		snap[p.Name] = p.Value
	}
	return snap
}

// PropertyValue looks up one property's value by name.
func PropertyValue(props []Property, name string) (any, bool) {
	for _, p := range props {
		if p.Name == name {
			return p.Value, true
		}
	}
	return nil, false
}
