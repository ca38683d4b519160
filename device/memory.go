package device

import (
	"context"
	"sort"
	"sync"

	"github.com/tailored-agentic-units/shellpilot/remote"
)

// MemoryRegistry is an in-process catalog.
type MemoryRegistry struct {
	mu      sync.RWMutex
	devices map[string]Device
}

// NewMemoryRegistry creates a catalog seeded with devices.
func NewMemoryRegistry(devices ...Device) *MemoryRegistry {
	r := &MemoryRegistry{devices: make(map[string]Device, len(devices))}
	for _, d := range devices {
		r.devices[d.ID] = d
	}
	return r
}

func (r *MemoryRegistry) Lookup(_ context.Context, id string) (remote.Target, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[id]
	if !ok {
		return remote.Target{}, notFound(id)
	}
	return d.Target, nil
}

func (r *MemoryRegistry) Put(_ context.Context, d Device) error {
	if err := d.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices[d.ID] = d
	return nil
}

func (r *MemoryRegistry) Remove(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.devices[id]; !ok {
		return notFound(id)
	}
	delete(r.devices, id)
	return nil
}

func (r *MemoryRegistry) List(_ context.Context) ([]Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedDevices(r.devices), nil
}

func (r *MemoryRegistry) Close() error { return nil }

func sortedDevices(m map[string]Device) []Device {
	out := make([]Device, 0, len(m))
	for _, d := range m {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
