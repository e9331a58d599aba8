// Package capability defines the contract for tools the model may invoke and
// the registry that describes and dispatches them.
package capability

import (
	"context"

	"github.com/invopop/jsonschema"
)

// Capability is a named, describable unit of work the model can request.
type Capability interface {
	// Name is the unique registry key shown to the model.
	Name() string

	// Description tells the model what the capability does.
	Description() string

	// ParameterSchema describes the JSON object Execute expects.
	ParameterSchema() *jsonschema.Schema

	// Execute runs the capability with the raw JSON arguments produced by the model.
	Execute(ctx context.Context, arguments string) (string, error)
}

// Func adapts plain functions to the Capability interface.
type Func struct {
	FuncName        string
	FuncDescription string
	Schema          *jsonschema.Schema
	Fn              func(ctx context.Context, arguments string) (string, error)
}

func (f Func) Name() string        { return f.FuncName }
func (f Func) Description() string { return f.FuncDescription }

func (f Func) ParameterSchema() *jsonschema.Schema {
	if f.Schema == nil {
		return EmptySchema()
	}
	return f.Schema
}

func (f Func) Execute(ctx context.Context, arguments string) (string, error) {
	return f.Fn(ctx, arguments)
}
