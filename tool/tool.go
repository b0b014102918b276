package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/datalyst/datalyst/dataset"
	"github.com/datalyst/datalyst/sandbox"
)

// RunFunc executes one tool invocation against the turn's dataset.
type RunFunc func(ctx context.Context, inv Invocation, ds *dataset.Dataset) (*sandbox.Execution, error)

type Tool struct {
	name        string
	description string
	schema      map[string]any
	run         RunFunc
}

// NewTool builds a tool whose parameter schema is reflected from T.
func NewTool[T any](name, description string, run RunFunc) (*Tool, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	var args T
	reflected := reflector.Reflect(args)

	// Round-trip through JSON so providers get a plain schema object
	// instead of the reflector's internal types.
	data, err := json.Marshal(reflected)
	if err != nil {
		return nil, fmt.Errorf("failed to encode schema for tool %s: %w", name, err)
	}
	var schema map[string]any
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("failed to decode schema for tool %s: %w", name, err)
	}

	paramSchema := map[string]any{
		"type":       "object",
		"properties": schema["properties"],
	}
	if required, ok := schema["required"]; ok {
		paramSchema["required"] = required
	}

	return &Tool{
		name:        name,
		description: description,
		schema:      paramSchema,
		run:         run,
	}, nil
}

func (t *Tool) Name() string {
	return t.name
}

func (t *Tool) Description() string {
	return t.description
}

func (t *Tool) Schema() map[string]any {
	return t.schema
}

func (t *Tool) Run(ctx context.Context, inv Invocation, ds *dataset.Dataset) (*sandbox.Execution, error) {
	return t.run(ctx, inv, ds)
}

type Toolbox struct {
	tools map[string]*Tool
	order []string
}

func NewToolbox(tools ...*Tool) *Toolbox {
	toolbox := &Toolbox{tools: map[string]*Tool{}}
	for _, t := range tools {
		toolbox.Register(t)
	}
	return toolbox
}

func (t *Toolbox) Register(tool *Tool) {
	if _, exists := t.tools[tool.Name()]; !exists {
		t.order = append(t.order, tool.Name())
	}
	t.tools[tool.Name()] = tool
}

func (t *Toolbox) Lookup(name string) (*Tool, bool) {
	tool, ok := t.tools[name]
	return tool, ok
}

func (t *Toolbox) List() []*Tool {
	tools := make([]*Tool, 0, len(t.order))
	for _, name := range t.order {
		tools = append(tools, t.tools[name])
	}
	return tools
}
