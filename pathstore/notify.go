package pathstore

import (
	"sync"
)

// ChangeFunc receives the path and sample of a committed write
type ChangeFunc func(path Path, s Sample)

// Hub is an explicit publish/subscribe registry for store changes,
// keyed by exact path or by model. Subscriptions live until Cancel is
// called; there is no automatic cleanup. Unlike the stores, a Hub is
// safe for concurrent use.
type Hub struct {
	mu     sync.Mutex
	nextID uint64
	paths  map[Path]map[uint64]ChangeFunc
	models map[ModelKey]map[uint64]ChangeFunc
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		paths:  make(map[Path]map[uint64]ChangeFunc),
		models: make(map[ModelKey]map[uint64]ChangeFunc),
	}
}

// Subscription is a handle for cancelling a subscription
type Subscription struct {
	hub     *Hub
	id      uint64
	path    Path
	model   ModelKey
	byModel bool
}

// Subscribe registers fn for writes to one exact path
func (h *Hub) Subscribe(path Path, fn ChangeFunc) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	if h.paths[path] == nil {
		h.paths[path] = make(map[uint64]ChangeFunc)
	}
	h.paths[path][h.nextID] = fn
	return &Subscription{hub: h, id: h.nextID, path: path}
}

// SubscribeModel registers fn for writes to any path of a model
func (h *Hub) SubscribeModel(model ModelKey, fn ChangeFunc) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	if h.models[model] == nil {
		h.models[model] = make(map[uint64]ChangeFunc)
	}
	h.models[model][h.nextID] = fn
	return &Subscription{hub: h, id: h.nextID, model: model, byModel: true}
}

// Cancel removes the subscription. Cancelling twice is harmless.
func (s *Subscription) Cancel() {
	if s == nil || s.hub == nil {
		return
	}
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	if s.byModel {
		delete(s.hub.models[s.model], s.id)
	} else {
		delete(s.hub.paths[s.path], s.id)
	}
	s.hub = nil
}

// Publish delivers a change to every matching subscriber. Callbacks
// run on the publishing goroutine, outside the hub's lock.
func (h *Hub) Publish(path Path, s Sample) {
	h.mu.Lock()
	fns := make([]ChangeFunc, 0, len(h.paths[path])+len(h.models[path.Model]))
	for _, fn := range h.paths[path] {
		fns = append(fns, fn)
	}
	for _, fn := range h.models[path.Model] {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(path, s)
	}
}

// NotifyingStore publishes to a hub after every successful write. All
// other operations pass through to the wrapped store.
type NotifyingStore struct {
	Store
	hub *Hub
}

// NewNotifyingStore wraps a store with change notification
func NewNotifyingStore(store Store, hub *Hub) *NotifyingStore {
	return &NotifyingStore{Store: store, hub: hub}
}

// SetSample writes through and publishes the stored sample on success
func (n *NotifyingStore) SetSample(path Path, s Sample) error {
	s = stampNow(s)
	if err := n.Store.SetSample(path, s); err != nil {
		return err
	}
	n.hub.Publish(path, s)
	return nil
}

// Hub returns the hub this store publishes to
func (n *NotifyingStore) Hub() *Hub {
	return n.hub
}
