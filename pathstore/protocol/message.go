// Package protocol implements the synchronization protocol: typed
// request/response messages in a one-byte-discriminated envelope, a
// diff producer (server role) and a diff consumer (client role)
// merging by last-writer-wins over any path store.
package protocol

import (
	"fmt"

	"github.com/wbrown/janus-pathstore/pathstore"
)

// MessageKind is the envelope discriminator. Zero is reserved invalid.
type MessageKind byte

const (
	KindInvalid MessageKind = iota
	KindInstanceStatusRequest
	KindModelUpdateRequest
	KindInstanceUpdateRequest
	KindInstances
	KindInstance
	KindModelUpdates
	KindCommand
	KindError
)

// String returns the wire name of the kind
func (k MessageKind) String() string {
	switch k {
	case KindInstanceStatusRequest:
		return "instanceStatusRequest"
	case KindModelUpdateRequest:
		return "modelUpdateRequest"
	case KindInstanceUpdateRequest:
		return "instanceUpdateRequest"
	case KindInstances:
		return "instances"
	case KindInstance:
		return "instance"
	case KindModelUpdates:
		return "modelUpdates"
	case KindCommand:
		return "command"
	case KindError:
		return "error"
	default:
		return fmt.Sprintf("invalid(%d)", byte(k))
	}
}

// Message is any payload that can travel in an envelope
type Message interface {
	kind() MessageKind
}

// InstanceStatusRequest asks for a model's instance-status changes
// strictly after the cursor. A zero cursor asks from the beginning.
type InstanceStatusRequest struct {
	Model pathstore.ModelKey  `json:"model"`
	After pathstore.Timestamp `json:"after,omitempty"`
}

// ModelUpdateRequest asks for one page of changed properties across a
// model's instances, in ascending instance order. Limit bounds the
// running property count of the page; zero means unbounded. StartingAt
// resumes from a previous page's continuation marker.
type ModelUpdateRequest struct {
	Model      pathstore.ModelKey     `json:"model"`
	After      pathstore.Timestamp    `json:"after,omitempty"`
	Limit      int                    `json:"limit"`
	StartingAt *pathstore.InstanceKey `json:"startingAt,omitempty"`
}

// InstanceUpdateRequest asks for one instance's properties changed
// strictly after the cursor; a zero cursor transfers the full state
type InstanceUpdateRequest struct {
	Model    pathstore.ModelKey    `json:"model"`
	Instance pathstore.InstanceKey `json:"instance"`
	After    pathstore.Timestamp   `json:"after,omitempty"`
}

// StatusUpdate is one instance-status change
type StatusUpdate struct {
	Instance pathstore.InstanceKey    `json:"instance"`
	Status   pathstore.InstanceStatus `json:"status"`
	Date     pathstore.Timestamp      `json:"date"`
}

// InstancesResponse answers an InstanceStatusRequest
type InstancesResponse struct {
	Model   pathstore.ModelKey `json:"model"`
	Updates []StatusUpdate     `json:"updates"`
}

// PropertyUpdate is one property change: the encoded value bytes at
// their write date
type PropertyUpdate struct {
	ID   pathstore.PropertyKey `json:"id"`
	Date pathstore.Timestamp   `json:"date"`
	Data []byte                `json:"data"`
}

// InstanceResponse answers an InstanceUpdateRequest or a successful
// CommandRequest. FailedProperties lists properties the producer could
// not ship.
type InstanceResponse struct {
	Model            pathstore.ModelKey      `json:"model"`
	Instance         pathstore.InstanceKey   `json:"instance"`
	Properties       []PropertyUpdate        `json:"properties"`
	FailedProperties []pathstore.PropertyKey `json:"failedProperties,omitempty"`
}

// InstanceUpdates groups one instance's property changes within a
// model-updates page
type InstanceUpdates struct {
	Instance   pathstore.InstanceKey `json:"instance"`
	Properties []PropertyUpdate      `json:"properties"`
}

// ModelUpdatesResponse answers a ModelUpdateRequest. A non-nil
// HasMoreUpdatesAtInstance means the page was cut there; pass it as
// the next request's StartingAt.
type ModelUpdatesResponse struct {
	Model                    pathstore.ModelKey     `json:"model"`
	Updates                  []InstanceUpdates      `json:"updates"`
	HasMoreUpdatesAtInstance *pathstore.InstanceKey `json:"hasMoreUpdatesAtInstance,omitempty"`
}

// CommandRequest invokes a command on a remote instance. The path's
// property component addresses the command; arguments are encoded
// bytes keyed by property.
type CommandRequest struct {
	Path      pathstore.Path                   `json:"path"`
	Arguments map[pathstore.PropertyKey][]byte `json:"arguments,omitempty"`
}

func (InstanceStatusRequest) kind() MessageKind { return KindInstanceStatusRequest }
func (ModelUpdateRequest) kind() MessageKind    { return KindModelUpdateRequest }
func (InstanceUpdateRequest) kind() MessageKind { return KindInstanceUpdateRequest }
func (InstancesResponse) kind() MessageKind     { return KindInstances }
func (InstanceResponse) kind() MessageKind      { return KindInstance }
func (ModelUpdatesResponse) kind() MessageKind  { return KindModelUpdates }
func (CommandRequest) kind() MessageKind        { return KindCommand }
func (Error) kind() MessageKind                 { return KindError }
