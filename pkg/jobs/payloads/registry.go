package payloads

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/angelmondragon/flightnotify/pkg/enums"
)

type descriptor struct {
	factory func() Payload
	fields  []string
}

// Registry maps notification types to payload decoders.
type Registry struct {
	mtx     sync.RWMutex
	entries map[enums.NotificationType]descriptor
}

// NewRegistry builds a registry holding every typed payload.
func NewRegistry() *Registry {
	r := &Registry{entries: make(map[enums.NotificationType]descriptor)}
	r.Register(func() Payload { return &BookingSuccess{} })
	r.Register(func() Payload { return &BookingFailure{} })
	r.Register(func() Payload { return &BookingCanceled{} })
	r.Register(func() Payload { return &PriceAlert{} })
	r.Register(func() Payload { return &Reminder{} })
	return r
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry.
func Default() *Registry {
	return defaultRegistry
}

// Register stores a factory keyed by the type its payload reports. The field
// list is captured from a zero value so templates can be checked up front.
func (r *Registry) Register(factory func() Payload) {
	sample := factory()
	fields := make([]string, 0)
	for k := range sample.Fields() {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.entries[sample.Type()] = descriptor{factory: factory, fields: fields}
}

// Decode parses data into the payload registered for t, falling back to Generic.
func (r *Registry) Decode(t enums.NotificationType, data json.RawMessage) (Payload, error) {
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		data = json.RawMessage(`{}`)
	}

	r.mtx.RLock()
	desc, ok := r.entries[t]
	r.mtx.RUnlock()

	if !ok {
		values := map[string]any{}
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&values); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", t, err)
		}
		return Generic{NotificationType: t, Values: values}, nil
	}

	payload := desc.factory()
	if err := json.Unmarshal(data, payload); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", t, err)
	}
	return deref(payload), nil
}

// FieldNames returns the template tokens a type provides. The bool is false
// for untyped notifications, whose tokens cannot be known ahead of time.
func (r *Registry) FieldNames(t enums.NotificationType) ([]string, bool) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	desc, ok := r.entries[t]
	if !ok {
		return nil, false
	}
	out := make([]string, len(desc.fields))
	copy(out, desc.fields)
	return out, true
}

func deref(p Payload) Payload {
	switch v := p.(type) {
	case *BookingSuccess:
		return *v
	case *BookingFailure:
		return *v
	case *BookingCanceled:
		return *v
	case *PriceAlert:
		return *v
	case *Reminder:
		return *v
	default:
		return p
	}
}
