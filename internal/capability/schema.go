package capability

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/invopop/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

var reflector = jsonschema.Reflector{
	AllowAdditionalProperties: true,
	DoNotReference:            true,
}

// SchemaFor reflects the parameter schema of an argument struct.
// Fields without omitempty are required.
func SchemaFor[T any]() *jsonschema.Schema {
	var v T
	s := reflector.Reflect(v)
	s.Version = ""
	s.ID = ""
	return s
}

// Property describes one field of a hand-built object schema.
type Property struct {
	Name        string
	Type        string
	Description string
	Required    bool
}

// ObjectSchema builds an object schema with properties in the given order.
func ObjectSchema(props ...Property) *jsonschema.Schema {
	s := &jsonschema.Schema{
		Type:       "object",
		Properties: orderedmap.New[string, *jsonschema.Schema](),
	}
	for _, p := range props {
		s.Properties.Set(p.Name, &jsonschema.Schema{Type: p.Type, Description: p.Description})
		if p.Required {
			s.Required = append(s.Required, p.Name)
		}
	}
	return s
}

// EmptySchema is the schema of a capability that takes no arguments.
func EmptySchema() *jsonschema.Schema {
	return ObjectSchema()
}

// SchemaMap converts a schema into a plain map, the shape most provider SDKs expect.
func SchemaMap(s *jsonschema.Schema) (map[string]any, error) {
	if s == nil {
		s = EmptySchema()
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encoding schema: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decoding schema: %w", err)
	}
	return m, nil
}
