package agent

import (
	"fmt"
	"sort"
	"sync"
)

// Info describes a registered producer.
type Info struct {
	Name     string
	Provider string
	Model    string
}

// Registry manages named producer configurations with lazy instantiation.
// Configs are stored at registration time; producers are created on first
// Get call. Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	configs   map[string]Config
	producers map[string]Producer
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		configs:   make(map[string]Config),
		producers: make(map[string]Producer),
	}
}

// Get retrieves a named producer, instantiating it on first access.
func (r *Registry) Get(name string) (Producer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg, registered := r.configs[name]
	if !registered {
		return nil, fmt.Errorf("%w: %s", ErrProducerNotFound, name)
	}

	if p, exists := r.producers[name]; exists {
		return p, nil
	}

	p, err := New(&cfg)
	if err != nil {
		return nil, fmt.Errorf("create producer %q: %w", name, err)
	}

	r.producers[name] = p
	return p, nil
}

// List returns all registered producers sorted by name.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.configs))
	for name, cfg := range r.configs {
		merged := DefaultConfig()
		merged.Merge(&cfg)
		infos = append(infos, Info{Name: name, Provider: merged.Provider, Model: merged.Model})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})
	return infos
}

// Register adds a named configuration. The producer is not created until
// Get is called.
func (r *Registry) Register(name string, cfg Config) error {
	if name == "" {
		return ErrEmptyProducerName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.configs[name]; exists {
		return fmt.Errorf("%w: %s", ErrProducerExists, name)
	}

	r.configs[name] = cfg
	return nil
}

// Replace updates an existing configuration and drops any cached producer.
func (r *Registry) Replace(name string, cfg Config) error {
	if name == "" {
		return ErrEmptyProducerName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.configs[name]; !exists {
		return fmt.Errorf("%w: %s", ErrProducerNotFound, name)
	}

	r.configs[name] = cfg
	delete(r.producers, name)
	return nil
}

// Unregister removes a named producer.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.configs[name]; !exists {
		return fmt.Errorf("%w: %s", ErrProducerNotFound, name)
	}

	delete(r.configs, name)
	delete(r.producers, name)
	return nil
}
