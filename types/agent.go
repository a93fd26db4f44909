package types

import "sort"

// Agent is the external agent record a node refers to by id.
type Agent struct {
	ID        string        `json:"id" bson:"id"`
	Name      string        `json:"name" bson:"name"`
	Type      string        `json:"type" bson:"type"`
	Prompt    string        `json:"prompt,omitempty" bson:"prompt,omitempty"`
	Tools     []ToolRef     `json:"tools,omitempty" bson:"tools,omitempty"`
	SubAgents []string      `json:"sub_agents,omitempty" bson:"sub_agents,omitempty"`
	Outputs   *OutputSchema `json:"outputs,omitempty" bson:"outputs,omitempty"`
}

// OutputSchema wraps the structured output format of an agent.
type OutputSchema struct {
	Format OutputFormat `json:"format" bson:"format"`
}

// OutputFormat is a JSON-schema style object description.
type OutputFormat struct {
	Type       string                    `json:"type" bson:"type"`
	Properties map[string]OutputProperty `json:"properties,omitempty" bson:"properties,omitempty"`
	Required   []string                  `json:"required,omitempty" bson:"required,omitempty"`
}

// OutputProperty describes a single output field.
type OutputProperty struct {
	Type        string `json:"type" bson:"type"`
	Description string `json:"description,omitempty" bson:"description,omitempty"`
}

// ToolRef names a tool selected for an agent.
type ToolRef struct {
	Name string `json:"name" bson:"name"`
}

// ToolInfo describes a tool the backend can provide.
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// OutputNames returns the declared output property names in a stable order.
func (a *Agent) OutputNames() []string {
	if a == nil || a.Outputs == nil || len(a.Outputs.Format.Properties) == 0 {
		return nil
	}
	names := make([]string, 0, len(a.Outputs.Format.Properties))
	for name := range a.Outputs.Format.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OutputType returns the declared type of an output, or "any".
func (a *Agent) OutputType(name string) string {
	if a == nil || a.Outputs == nil {
		return "any"
	}
	if p, ok := a.Outputs.Format.Properties[name]; ok && p.Type != "" {
		return p.Type
	}
	return "any"
}

// NewAgent returns an agent with an empty object output schema.
func NewAgent(id, name string) *Agent {
	return &Agent{
		ID:   id,
		Name: name,
		Type: "generic",
		Outputs: &OutputSchema{Format: OutputFormat{
			Type:       "object",
			Properties: map[string]OutputProperty{},
			Required:   []string{},
		}},
	}
}
