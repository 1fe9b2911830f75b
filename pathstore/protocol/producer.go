package protocol

import (
	"github.com/wbrown/janus-pathstore/pathstore"
	"github.com/wbrown/janus-pathstore/pathstore/codec"
)

// ProducerStore is what the producer needs from its store: status
// enumeration plus per-instance property enumeration. A store that
// also implements pathstore.TimestampedStore gets real change cursors;
// anything else answers status requests with its full current set.
type ProducerStore interface {
	pathstore.Store
	pathstore.PropertySource
}

// Producer is the server role: it answers diff requests against a
// local store and dispatches remote commands through a registry. All
// failures leave as well-formed Error envelopes, never as broken
// exchanges.
type Producer struct {
	store    ProducerStore
	registry *pathstore.Registry
	codec    codec.Codec
}

// NewProducer creates a producer over a store. The registry may be nil
// for a producer that only serves diffs; command execution and
// property checking then stay disabled.
func NewProducer(store ProducerStore, registry *pathstore.Registry, c codec.Codec) *Producer {
	return &Producer{store: store, registry: registry, codec: c}
}

// InstanceStatuses answers with the model's status changes strictly
// after the request cursor. A store without history instead reports
// its full current status set dated now.
func (p *Producer) InstanceStatuses(req InstanceStatusRequest) (*InstancesResponse, error) {
	resp := &InstancesResponse{Model: req.Model, Updates: []StatusUpdate{}}

	ts, hasHistory := p.store.(pathstore.TimestampedStore)
	if !hasHistory {
		now := pathstore.Now()
		err := p.store.EnumerateStatus(req.Model, func(instance pathstore.InstanceKey, s pathstore.Sample) bool {
			if status, ok := pathstore.DecodeStatus(p.store.Codec(), s.Data); ok {
				resp.Updates = append(resp.Updates, StatusUpdate{Instance: instance, Status: status, Date: now})
			}
			return true
		})
		if err != nil {
			return nil, Errorf(ErrStoreFailed, "enumerate model %d: %v", req.Model, err)
		}
		return resp, nil
	}

	err := ts.EnumerateStatusAt(req.Model, 0, func(instance pathstore.InstanceKey, s pathstore.Sample) bool {
		if !req.After.IsZero() && s.Date <= req.After {
			return true
		}
		if status, ok := pathstore.DecodeStatus(p.store.Codec(), s.Data); ok {
			resp.Updates = append(resp.Updates, StatusUpdate{Instance: instance, Status: status, Date: s.Date})
		}
		return true
	})
	if err != nil {
		return nil, Errorf(ErrStoreFailed, "enumerate model %d: %v", req.Model, err)
	}
	return resp, nil
}

// InstanceUpdate answers with one instance's properties changed
// strictly after the cursor, every property when the cursor is zero.
// Asking about an instance the store has no status for is a
// missingInstance error.
func (p *Producer) InstanceUpdate(req InstanceUpdateRequest) (*InstanceResponse, error) {
	if _, ok := pathstore.Status(p.store, req.Model, req.Instance); !ok {
		return nil, Errorf(ErrMissingInstance, "model %d instance %d", req.Model, req.Instance)
	}
	properties, failed, err := p.instanceProperties(req.Model, req.Instance, req.After)
	if err != nil {
		return nil, err
	}
	return &InstanceResponse{
		Model:            req.Model,
		Instance:         req.Instance,
		Properties:       properties,
		FailedProperties: failed,
	}, nil
}

// ModelUpdates answers one page of per-instance property diffs in
// ascending instance order. The page closes when admitting the next
// instance would push the running property count past the limit; that
// instance comes back as the continuation marker. The first instance
// of a page is always admitted so pagination makes progress.
func (p *Producer) ModelUpdates(req ModelUpdateRequest) (*ModelUpdatesResponse, error) {
	resp := &ModelUpdatesResponse{Model: req.Model, Updates: []InstanceUpdates{}}

	var instances []pathstore.InstanceKey
	err := p.store.EnumerateStatus(req.Model, func(instance pathstore.InstanceKey, _ pathstore.Sample) bool {
		if req.StartingAt != nil && instance < *req.StartingAt {
			return true
		}
		instances = append(instances, instance)
		return true
	})
	if err != nil {
		return nil, Errorf(ErrStoreFailed, "enumerate model %d: %v", req.Model, err)
	}

	total := 0
	for _, instance := range instances {
		properties, _, err := p.instanceProperties(req.Model, instance, req.After)
		if err != nil {
			return nil, err
		}
		if len(properties) == 0 {
			continue
		}
		if len(resp.Updates) > 0 && req.Limit > 0 && total+len(properties) > req.Limit {
			marker := instance
			resp.HasMoreUpdatesAtInstance = &marker
			break
		}
		resp.Updates = append(resp.Updates, InstanceUpdates{Instance: instance, Properties: properties})
		total += len(properties)
	}
	return resp, nil
}

// ExecuteCommand resolves and runs a command against a local instance,
// answering with the properties the command changed so the caller can
// merge its effects
func (p *Producer) ExecuteCommand(req CommandRequest) (*InstanceResponse, error) {
	if p.registry == nil {
		return nil, Errorf(ErrUnknownModel, "no models registered")
	}
	if _, ok := p.registry.Model(req.Path.Model); !ok {
		return nil, Errorf(ErrUnknownModel, "model %d", req.Path.Model)
	}
	command, ok := p.registry.Command(req.Path.Model, req.Path.Property)
	if !ok {
		return nil, Errorf(ErrUnknownCommand, "model %d command %d", req.Path.Model, req.Path.Property)
	}
	if _, ok := pathstore.Status(p.store, req.Path.Model, req.Path.Instance); !ok {
		return nil, Errorf(ErrMissingInstance, "model %d instance %d", req.Path.Model, req.Path.Instance)
	}

	started := pathstore.Now()
	if err := command(p.store, req.Path.Instance, req.Arguments); err != nil {
		return nil, AsError(err)
	}

	// Report writes stamped in the same clock quantum as the dispatch
	after := started - 1e-6
	properties, failed, err := p.instanceProperties(req.Path.Model, req.Path.Instance, after)
	if err != nil {
		return nil, err
	}
	return &InstanceResponse{
		Model:            req.Path.Model,
		Instance:         req.Path.Instance,
		Properties:       properties,
		FailedProperties: failed,
	}, nil
}

// HandleEnvelope is the transport boundary: it decodes any request
// kind, dispatches it, and always returns a well-formed response
// envelope. Failures are encoded as Error payloads rather than
// propagated, so the remote side can always decode what it gets back.
func (p *Producer) HandleEnvelope(data []byte) []byte {
	var reply Message

	switch PeekKind(data) {
	case KindInstanceStatusRequest:
		reply = dispatch(p.codec, data, p.InstanceStatuses)
	case KindModelUpdateRequest:
		reply = dispatch(p.codec, data, p.ModelUpdates)
	case KindInstanceUpdateRequest:
		reply = dispatch(p.codec, data, p.InstanceUpdate)
	case KindCommand:
		reply = dispatch(p.codec, data, p.ExecuteCommand)
	default:
		reply = Errorf(ErrInvalidEnvelope, "kind %s is not a request", PeekKind(data))
	}

	out, err := Encode(p.codec, reply)
	if err != nil {
		out, err = Encode(p.codec, Errorf(ErrEncodeFailed, "response encoding failed"))
		if err != nil {
			return []byte{byte(KindError)}
		}
	}
	return out
}

// dispatch decodes a request and runs its handler, flattening any
// failure into an Error payload
func dispatch[Req Message, Resp Message](c codec.Codec, data []byte, handle func(Req) (*Resp, error)) Message {
	req, err := Decode[Req](c, data)
	if err != nil {
		return AsError(err)
	}
	resp, err := handle(req)
	if err != nil {
		return AsError(err)
	}
	return *resp
}

// instanceProperties collects one instance's property updates dated
// strictly after the cursor. With a registry, properties carrying a
// decoder are checked first; ones that fail land in the failed list
// instead of the page.
func (p *Producer) instanceProperties(model pathstore.ModelKey, instance pathstore.InstanceKey, after pathstore.Timestamp) ([]PropertyUpdate, []pathstore.PropertyKey, error) {
	var properties []PropertyUpdate
	var failed []pathstore.PropertyKey

	err := p.store.EnumerateProperties(model, instance, func(id pathstore.PropertyKey, s pathstore.Sample) bool {
		if !after.IsZero() && s.Date <= after {
			return true
		}
		if p.registry != nil {
			if spec, ok := p.registry.Property(model, id); ok && spec.Decode != nil {
				if _, err := spec.Decode(p.store.Codec(), s.Data); err != nil {
					failed = append(failed, id)
					return true
				}
			}
		}
		properties = append(properties, PropertyUpdate{ID: id, Date: s.Date, Data: s.Data})
		return true
	})
	if err != nil {
		return nil, nil, Errorf(ErrStoreFailed, "enumerate model %d instance %d: %v", model, instance, err)
	}
	return properties, failed, nil
}
