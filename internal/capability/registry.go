package capability

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/invopop/jsonschema"
	sjsonschema "github.com/santhosh-tekuri/jsonschema/v5"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/volumeee/zenclaw-sub000/internal/domain"
	"github.com/volumeee/zenclaw-sub000/internal/logging"
)

// Registry holds named capabilities and dispatches executions to them.
// Registration order is preserved so Descriptors is deterministic.
type Registry struct {
	mu       sync.RWMutex
	entries  *orderedmap.OrderedMap[string, *entry]
	validate bool
	log      *logging.Logger
}

type entry struct {
	capability Capability
	schema     *sjsonschema.Schema
}

// Option configures a Registry.
type Option func(*Registry)

// WithArgumentValidation checks arguments against each capability's parameter
// schema before Execute is called.
func WithArgumentValidation() Option {
	return func(r *Registry) { r.validate = true }
}

// NewRegistry creates an empty registry.
func NewRegistry(log *logging.Logger, opts ...Option) *Registry {
	r := &Registry{
		entries: orderedmap.New[string, *entry](),
		log:     log.Sub("capability"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register stores a capability by name. A later registration with the same
// name replaces the earlier one and keeps its position.
func (r *Registry) Register(c Capability) {
	e := &entry{capability: c}
	if r.validate {
		compiled, err := compileSchema(c.Name(), c.ParameterSchema())
		if err != nil {
			r.log.Warn().Err(err).Str("capability", c.Name()).Msg("schema compile failed, arguments will not be validated")
		}
		e.schema = compiled
	}

	r.mu.Lock()
	_, replaced := r.entries.Set(c.Name(), e)
	r.mu.Unlock()

	r.log.Debug().Str("capability", c.Name()).Bool("replaced", replaced).Msg("capability registered")
}

// Get returns a capability by name.
func (r *Registry) Get(name string) (Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries.Get(name)
	if !ok {
		return nil, false
	}
	return e.capability, true
}

// Names returns registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, r.entries.Len())
	for pair := r.entries.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// Len returns the number of registered capabilities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries.Len()
}

// Descriptors returns the model-facing description of every capability in registration order.
func (r *Registry) Descriptors() []domain.CapabilityDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	descs := make([]domain.CapabilityDescriptor, 0, r.entries.Len())
	for pair := r.entries.Oldest(); pair != nil; pair = pair.Next() {
		c := pair.Value.capability
		descs = append(descs, domain.CapabilityDescriptor{
			Name:            c.Name(),
			Description:     c.Description(),
			ParameterSchema: c.ParameterSchema(),
		})
	}
	return descs
}

// Execute runs the named capability. Unknown names yield *NotFoundError; any
// failure from the capability itself is wrapped in *ExecutionError.
func (r *Registry) Execute(ctx context.Context, name, arguments string) (out string, err error) {
	r.mu.RLock()
	e, ok := r.entries.Get(name)
	r.mu.RUnlock()
	if !ok {
		return "", &NotFoundError{Name: name}
	}

	if strings.TrimSpace(arguments) == "" {
		arguments = "{}"
	}

	if e.schema != nil {
		if verr := validateArguments(e.schema, arguments); verr != nil {
			return "", &ExecutionError{Name: name, Message: "invalid arguments: " + verr.Error()}
		}
	}

	defer func() {
		if p := recover(); p != nil {
			r.log.Error().Str("capability", name).Interface("panic", p).Msg("capability panicked")
			out, err = "", &ExecutionError{Name: name, Message: fmt.Sprintf("panic: %v", p)}
		}
	}()

	out, err = e.capability.Execute(ctx, arguments)
	if err != nil {
		return "", &ExecutionError{Name: name, Message: err.Error()}
	}
	return out, nil
}

func compileSchema(name string, schema *jsonschema.Schema) (*sjsonschema.Schema, error) {
	if schema == nil {
		return nil, nil
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("encoding schema: %w", err)
	}

	c := sjsonschema.NewCompiler()
	c.Draft = sjsonschema.Draft2020
	url := fmt.Sprintf("https://zenclaw.local/capabilities/%s.schema.json", name)
	if err := c.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("loading schema: %w", err)
	}
	return c.Compile(url)
}

func validateArguments(schema *sjsonschema.Schema, arguments string) error {
	var v any
	if err := json.Unmarshal([]byte(arguments), &v); err != nil {
		return fmt.Errorf("arguments are not valid JSON: %w", err)
	}
	return schema.Validate(v)
}
