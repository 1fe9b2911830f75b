package pathstore

import (
	"fmt"
)

// ModelKey identifies a model type
type ModelKey int64

// InstanceKey identifies one instance of a model
type InstanceKey int64

// PropertyKey identifies one property of an instance
type PropertyKey int64

// InstanceIDProperty is reserved for the instance's own status sample.
// Ordinary properties must use nonzero keys.
const InstanceIDProperty PropertyKey = 0

// Path is the universal store address: one value lives at one
// (model, instance, property) triple
type Path struct {
	Model    ModelKey    `json:"model"`
	Instance InstanceKey `json:"instance"`
	Property PropertyKey `json:"property"`
}

// NewPath builds a path from its three components
func NewPath(model ModelKey, instance InstanceKey, property PropertyKey) Path {
	return Path{Model: model, Instance: instance, Property: property}
}

// StatusPath returns the reserved path holding the instance's status
func StatusPath(model ModelKey, instance InstanceKey) Path {
	return Path{Model: model, Instance: instance, Property: InstanceIDProperty}
}

// IsStatus reports whether the path addresses an instance status
func (p Path) IsStatus() bool {
	return p.Property == InstanceIDProperty
}

// Compare orders paths lexicographically: model, then instance, then
// property
func (p Path) Compare(other Path) int {
	if p.Model != other.Model {
		if p.Model < other.Model {
			return -1
		}
		return 1
	}
	if p.Instance != other.Instance {
		if p.Instance < other.Instance {
			return -1
		}
		return 1
	}
	if p.Property != other.Property {
		if p.Property < other.Property {
			return -1
		}
		return 1
	}
	return 0
}

// Less reports whether p orders before other
func (p Path) Less(other Path) bool {
	return p.Compare(other) < 0
}

// String returns a compact representation of the path
func (p Path) String() string {
	return fmt.Sprintf("(%d %d %d)", p.Model, p.Instance, p.Property)
}
