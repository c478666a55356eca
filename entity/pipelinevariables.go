package entity

import (
	"encoding/json"
	"sort"
)

// PipelineVariableType describes how a pipeline variable is exposed to jobs.
type PipelineVariableType uint8

const (
	PipelineVariableTypeFile PipelineVariableType = iota
	PipelineVariableTypeString
)

func (t PipelineVariableType) String() string {
	switch t {
	case PipelineVariableTypeFile:
		return "file"
	case PipelineVariableTypeString:
		return "string"
	default:
		return "unknown"
	}
}

// ParsePipelineVariableType parses the canonical name back into a
// PipelineVariableType.
func ParsePipelineVariableType(s string) (PipelineVariableType, bool) {
	switch s {
	case "file":
		return PipelineVariableTypeFile, true
	case "string":
		return PipelineVariableTypeString, true
	default:
		return 0, false
	}
}

func (t PipelineVariableType) MarshalJSON() ([]byte, error) {
	return marshalEnumJSON(t.String())
}

func (t *PipelineVariableType) UnmarshalJSON(data []byte) error {
	v, err := unmarshalEnumJSON(data, "PipelineVariableType", func(s string) (int, bool) {
		pt, ok := ParsePipelineVariableType(s)
		return int(pt), ok
	})
	if err != nil {
		return err
	}
	*t = PipelineVariableType(v)
	return nil
}

// PipelineVariable is a single variable value made available to a pipeline
// or job.
type PipelineVariable struct {
	Value       string
	Type        PipelineVariableType
	Protected   bool
	Environment *string
}

type PipelineVariableBuilder struct {
	v        PipelineVariable
	hasValue bool
	hasType  bool
}

func NewPipelineVariableBuilder() *PipelineVariableBuilder {
	return &PipelineVariableBuilder{}
}

func (b *PipelineVariableBuilder) Value(value string) *PipelineVariableBuilder {
	b.v.Value = value
	b.hasValue = true
	return b
}

func (b *PipelineVariableBuilder) Type(t PipelineVariableType) *PipelineVariableBuilder {
	b.v.Type = t
	b.hasType = true
	return b
}

func (b *PipelineVariableBuilder) Protected(protected bool) *PipelineVariableBuilder {
	b.v.Protected = protected
	return b
}

func (b *PipelineVariableBuilder) Environment(env *string) *PipelineVariableBuilder {
	b.v.Environment = env
	return b
}

func (b *PipelineVariableBuilder) Build() (PipelineVariable, error) {
	if !b.hasValue {
		return PipelineVariable{}, uninitialized("PipelineVariable", "value")
	}
	if !b.hasType {
		return PipelineVariable{}, uninitialized("PipelineVariable", "type_")
	}
	return b.v, nil
}

// PipelineVariables is an ordered mapping of variable name to value,
// iterated in key order to match deterministic persistence output.
type PipelineVariables struct {
	entries map[string]PipelineVariable
}

// NewPipelineVariables returns an empty variable set.
func NewPipelineVariables() PipelineVariables {
	return PipelineVariables{entries: make(map[string]PipelineVariable)}
}

// Set inserts or replaces the variable named key.
func (p *PipelineVariables) Set(key string, v PipelineVariable) {
	if p.entries == nil {
		p.entries = make(map[string]PipelineVariable)
	}
	p.entries[key] = v
}

// Get returns the variable named key, if present.
func (p PipelineVariables) Get(key string) (PipelineVariable, bool) {
	v, ok := p.entries[key]
	return v, ok
}

// Keys returns the variable names in sorted order.
func (p PipelineVariables) Keys() []string {
	keys := make([]string, 0, len(p.entries))
	for k := range p.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len reports the number of variables.
func (p PipelineVariables) Len() int {
	return len(p.entries)
}

// MarshalJSON encodes the set as a plain object keyed by variable name.
func (p PipelineVariables) MarshalJSON() ([]byte, error) {
	if p.entries == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p.entries)
}

// UnmarshalJSON decodes the set from a plain object keyed by variable
// name.
func (p *PipelineVariables) UnmarshalJSON(data []byte) error {
	entries := make(map[string]PipelineVariable)
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	p.entries = entries
	return nil
}
