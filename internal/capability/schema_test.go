package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaFor(t *testing.T) {
	s := SchemaFor[echoArgs]()
	require.NotNil(t, s)
	assert.Equal(t, "object", s.Type)
	assert.Empty(t, s.Version)
	assert.Equal(t, []string{"text"}, s.Required)

	text, ok := s.Properties.Get("text")
	require.True(t, ok)
	assert.Equal(t, "string", text.Type)
	assert.Equal(t, "Text to echo back", text.Description)
}

func TestObjectSchema_Order(t *testing.T) {
	s := ObjectSchema(
		Property{Name: "path", Type: "string", Required: true},
		Property{Name: "content", Type: "string"},
	)

	var keys []string
	for p := s.Properties.Oldest(); p != nil; p = p.Next() {
		keys = append(keys, p.Key)
	}
	assert.Equal(t, []string{"path", "content"}, keys)
	assert.Equal(t, []string{"path"}, s.Required)
}

func TestSchemaMap(t *testing.T) {
	m, err := SchemaMap(SchemaFor[echoArgs]())
	require.NoError(t, err)
	assert.Equal(t, "object", m["type"])
	props, ok := m["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "text")
	assert.Contains(t, props, "times")

	empty, err := SchemaMap(nil)
	require.NoError(t, err)
	assert.Equal(t, "object", empty["type"])
}
