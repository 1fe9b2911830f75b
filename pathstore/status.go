package pathstore

import (
	"fmt"
)

// InstanceStatus is the value stored at an instance's status path. An
// instance exists exactly when a decodable StatusCreated sample sits at
// (model, instance, InstanceIDProperty). StatusDeleted keeps every
// property value in place but excludes the instance from logical
// enumeration.
type InstanceStatus uint8

const (
	StatusCreated InstanceStatus = 1
	StatusDeleted InstanceStatus = 2
)

// Valid reports whether s is a known status
func (s InstanceStatus) Valid() bool {
	return s == StatusCreated || s == StatusDeleted
}

// String returns the status name
func (s InstanceStatus) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusDeleted:
		return "deleted"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}
