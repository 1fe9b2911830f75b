package pathstore

import (
	"fmt"

	"github.com/wbrown/janus-pathstore/pathstore/codec"
)

// PropertySpec declares one property of a model: its key, a display
// name, an optional default written when an instance is initialized,
// and an optional decoder used to check and render encoded values. A
// nil Decode leaves the property opaque bytes.
type PropertySpec struct {
	ID      PropertyKey
	Name    string
	Default interface{}
	Decode  func(c codec.Codec, data []byte) (interface{}, error)
}

// CommandFunc executes a model command against one instance. Arguments
// arrive as encoded bytes keyed by property; the handler decodes what
// it needs and writes its effects through the store.
type CommandFunc func(s Store, instance InstanceKey, args map[PropertyKey][]byte) error

// ModelDef declares a model: its key, name, properties and commands.
// Commands are keyed by property key, which is how a remote command
// envelope addresses them.
type ModelDef struct {
	ID         ModelKey
	Name       string
	Properties []PropertySpec
	Commands   map[PropertyKey]CommandFunc
}

// Registry resolves model keys to their definitions. It is built once
// and read-only afterwards; no reflection, no runtime registration.
type Registry struct {
	models map[ModelKey]*ModelDef
}

// NewRegistry builds a registry from model definitions. Duplicate
// model keys, duplicate property keys within a model and use of the
// reserved status property are rejected.
func NewRegistry(defs ...ModelDef) (*Registry, error) {
	r := &Registry{models: make(map[ModelKey]*ModelDef, len(defs))}
	for i := range defs {
		def := defs[i]
		if _, ok := r.models[def.ID]; ok {
			return nil, fmt.Errorf("duplicate model %d (%s)", def.ID, def.Name)
		}
		seen := make(map[PropertyKey]bool, len(def.Properties))
		for _, p := range def.Properties {
			if p.ID == InstanceIDProperty {
				return nil, fmt.Errorf("model %s: property %q uses the reserved status key", def.Name, p.Name)
			}
			if seen[p.ID] {
				return nil, fmt.Errorf("model %s: duplicate property %d", def.Name, p.ID)
			}
			seen[p.ID] = true
		}
		r.models[def.ID] = &def
	}
	return r, nil
}

// Model returns a model definition by key
func (r *Registry) Model(id ModelKey) (*ModelDef, bool) {
	def, ok := r.models[id]
	return def, ok
}

// Property returns one property spec of a model
func (r *Registry) Property(model ModelKey, id PropertyKey) (*PropertySpec, bool) {
	def, ok := r.models[model]
	if !ok {
		return nil, false
	}
	for i := range def.Properties {
		if def.Properties[i].ID == id {
			return &def.Properties[i], true
		}
	}
	return nil, false
}

// Command returns one command handler of a model
func (r *Registry) Command(model ModelKey, id PropertyKey) (CommandFunc, bool) {
	def, ok := r.models[model]
	if !ok {
		return nil, false
	}
	fn, ok := def.Commands[id]
	return fn, ok
}

// Models returns every registered model key in arbitrary order
func (r *Registry) Models() []*ModelDef {
	out := make([]*ModelDef, 0, len(r.models))
	for _, def := range r.models {
		out = append(out, def)
	}
	return out
}

// Initialize creates an instance and writes each property default the
// model declares
func (r *Registry) Initialize(s Store, model ModelKey, instance InstanceKey) error {
	def, ok := r.models[model]
	if !ok {
		return fmt.Errorf("unknown model %d", model)
	}
	if err := CreateInstance(s, model, instance); err != nil {
		return err
	}
	for _, p := range def.Properties {
		if p.Default == nil {
			continue
		}
		data, err := encodeValue(s.Codec(), p.Default)
		if err != nil {
			return fmt.Errorf("model %s property %s default: %w", def.Name, p.Name, err)
		}
		if err := s.SetSample(NewPath(model, instance, p.ID), Sample{Data: data}); err != nil {
			return err
		}
	}
	return nil
}
