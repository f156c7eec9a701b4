package llm

// Schema is the JSON-schema subset used for tool parameters.
type Schema struct {
	Type                 string             `json:"type"`
	Description          string             `json:"description,omitempty"`
	Enum                 []string           `json:"enum,omitempty"`
	Minimum              *float64           `json:"minimum,omitempty"`
	Maximum              *float64           `json:"maximum,omitempty"`
	Items                *Schema            `json:"items,omitempty"`
	Properties           map[string]*Schema `json:"properties,omitempty"`
	Required             []string           `json:"required,omitempty"`
	AdditionalProperties *bool              `json:"additionalProperties,omitempty"`
}

// Tool is a single function the model is forced to call.
type Tool struct {
	Name        string
	Description string
	Parameters  *Schema
}

func String(desc string) *Schema  { return &Schema{Type: "string", Description: desc} }
func Boolean(desc string) *Schema { return &Schema{Type: "boolean", Description: desc} }
func Integer(desc string) *Schema { return &Schema{Type: "integer", Description: desc} }

func Number(desc string, min, max float64) *Schema {
	return &Schema{Type: "number", Description: desc, Minimum: &min, Maximum: &max}
}

func Enum(desc string, values ...string) *Schema {
	return &Schema{Type: "string", Description: desc, Enum: values}
}

func Array(desc string, items *Schema) *Schema {
	return &Schema{Type: "array", Description: desc, Items: items}
}

// Object builds an object schema; every property listed in required must exist.
func Object(props map[string]*Schema, required ...string) *Schema {
	return &Schema{Type: "object", Properties: props, Required: required}
}
