package protocol

import (
	"context"

	"github.com/wbrown/janus-pathstore/pathstore"
	"github.com/wbrown/janus-pathstore/pathstore/codec"
)

// Transport carries one encoded request envelope to a producer and
// returns its response envelope
type Transport interface {
	RoundTrip(ctx context.Context, envelope []byte) ([]byte, error)
}

// Consumer is the client role: it requests diffs from a remote
// producer and applies them to a local store at their reported dates,
// leaving conflict resolution to the stores' last-writer-wins
// guarantee. The registry is optional; with one, incoming properties
// that carry a decoder are checked before they are written.
type Consumer struct {
	store     pathstore.Store
	registry  *pathstore.Registry
	codec     codec.Codec
	transport Transport
}

// NewConsumer creates a consumer applying to the given store
func NewConsumer(store pathstore.Store, registry *pathstore.Registry, c codec.Codec, t Transport) *Consumer {
	return &Consumer{store: store, registry: registry, codec: c, transport: t}
}

// PullInstanceStatuses fetches and applies a model's status changes
// after the cursor, returning what was applied
func (c *Consumer) PullInstanceStatuses(ctx context.Context, model pathstore.ModelKey, after pathstore.Timestamp) ([]StatusUpdate, error) {
	reply, err := c.roundTrip(ctx, InstanceStatusRequest{Model: model, After: after})
	if err != nil {
		return nil, err
	}
	resp, err := decodeReply[InstancesResponse](c.codec, reply)
	if err != nil {
		return nil, err
	}
	if err := c.ApplyInstanceStatuses(model, resp.Updates); err != nil {
		return nil, err
	}
	return resp.Updates, nil
}

// PullInstanceUpdate fetches and applies one instance's property
// changes after the cursor; a zero cursor transfers its full state
func (c *Consumer) PullInstanceUpdate(ctx context.Context, model pathstore.ModelKey, instance pathstore.InstanceKey, after pathstore.Timestamp) (*InstanceResponse, error) {
	reply, err := c.roundTrip(ctx, InstanceUpdateRequest{Model: model, Instance: instance, After: after})
	if err != nil {
		return nil, err
	}
	resp, err := decodeReply[InstanceResponse](c.codec, reply)
	if err != nil {
		return nil, err
	}
	if err := c.ApplyInstanceUpdate(model, instance, resp.Properties); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PullModelUpdates walks the paginated bulk diff to completion,
// requesting a page, applying it, and resuming from the continuation
// marker until none comes back. Returns the number of instances
// applied.
func (c *Consumer) PullModelUpdates(ctx context.Context, model pathstore.ModelKey, after pathstore.Timestamp, limit int) (int, error) {
	applied := 0
	var startingAt *pathstore.InstanceKey

	for {
		if err := ctx.Err(); err != nil {
			return applied, err
		}
		reply, err := c.roundTrip(ctx, ModelUpdateRequest{
			Model:      model,
			After:      after,
			Limit:      limit,
			StartingAt: startingAt,
		})
		if err != nil {
			return applied, err
		}
		resp, err := decodeReply[ModelUpdatesResponse](c.codec, reply)
		if err != nil {
			return applied, err
		}
		for _, u := range resp.Updates {
			if err := c.ApplyInstanceUpdate(model, u.Instance, u.Properties); err != nil {
				return applied, err
			}
			applied++
		}
		if resp.HasMoreUpdatesAtInstance == nil {
			return applied, nil
		}
		startingAt = resp.HasMoreUpdatesAtInstance
	}
}

// Call invokes a command on the remote instance the path addresses and
// merges the command's reported effects into the local store. A remote
// Error envelope comes back as the returned error.
func (c *Consumer) Call(ctx context.Context, path pathstore.Path, args map[pathstore.PropertyKey][]byte) error {
	reply, err := c.roundTrip(ctx, CommandRequest{Path: path, Arguments: args})
	if err != nil {
		return err
	}
	resp, err := decodeReply[InstanceResponse](c.codec, reply)
	if err != nil {
		return err
	}
	return c.ApplyInstanceUpdate(path.Model, path.Instance, resp.Properties)
}

// ApplyInstanceStatuses writes each status at its reported date. The
// stores' ordering guarantee makes re-applying old news harmless.
func (c *Consumer) ApplyInstanceStatuses(model pathstore.ModelKey, updates []StatusUpdate) error {
	for _, u := range updates {
		data, err := pathstore.EncodeStatus(c.store.Codec(), u.Status)
		if err != nil {
			return Errorf(ErrEncodeFailed, "status for instance %d: %v", u.Instance, err)
		}
		sample := pathstore.Sample{Data: data, Date: u.Date}
		if err := c.store.SetSample(pathstore.StatusPath(model, u.Instance), sample); err != nil {
			return Errorf(ErrStoreFailed, "instance %d status: %v", u.Instance, err)
		}
	}
	return nil
}

// ApplyInstanceUpdate writes each property at its reported date,
// creating the instance first if the store does not know it, dated
// with the diff's earliest property date. A property failing its
// registry decode check interrupts the apply; properties already
// written stand, and callers retry the whole page.
func (c *Consumer) ApplyInstanceUpdate(model pathstore.ModelKey, instance pathstore.InstanceKey, properties []PropertyUpdate) error {
	if len(properties) == 0 {
		return nil
	}

	if _, ok := pathstore.Status(c.store, model, instance); !ok {
		earliest := properties[0].Date
		for _, u := range properties[1:] {
			if u.Date < earliest {
				earliest = u.Date
			}
		}
		if err := pathstore.CreateInstanceAt(c.store, model, instance, earliest); err != nil {
			return Errorf(ErrStoreFailed, "create instance %d: %v", instance, err)
		}
	}

	for _, u := range properties {
		if c.registry != nil {
			if spec, ok := c.registry.Property(model, u.ID); ok && spec.Decode != nil {
				if _, err := spec.Decode(c.store.Codec(), u.Data); err != nil {
					return Errorf(ErrPropertyDecodeFailed, "model %d instance %d property %d: %v", model, instance, u.ID, err)
				}
			}
		}
		sample := pathstore.Sample{Data: u.Data, Date: u.Date}
		if err := c.store.SetSample(pathstore.NewPath(model, instance, u.ID), sample); err != nil {
			return Errorf(ErrStoreFailed, "instance %d property %d: %v", instance, u.ID, err)
		}
	}
	return nil
}

func (c *Consumer) roundTrip(ctx context.Context, req Message) ([]byte, error) {
	envelope, err := Encode(c.codec, req)
	if err != nil {
		return nil, err
	}
	return c.transport.RoundTrip(ctx, envelope)
}
