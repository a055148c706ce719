package model

import (
	"errors"
	"fmt"
	"sync"
)

// Loader builds a model for a name and device.
type Loader func(name string, device Device) (Separator, error)

// Cache keeps loaded models keyed by name and device so repeated separations
// reuse the same weights. A Cache is owned by whoever constructs it; there is
// no package-level instance.
type Cache struct {
	mu     sync.Mutex
	loader Loader
	models map[string]Separator
}

func NewCache(loader Loader) *Cache {
	if loader == nil {
		loader = DefaultLoader("")
	}
	return &Cache{loader: loader, models: make(map[string]Separator)}
}

func cacheKey(name string, device Device) string {
	return name + "@" + string(device)
}

// Get returns the cached model or loads it.
func (c *Cache) Get(name string, device Device) (Separator, error) {
	device = device.Resolve()
	key := cacheKey(name, device)

	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok := c.models[key]; ok {
		return m, nil
	}
	m, err := c.loader(name, device)
	if err != nil {
		return nil, fmt.Errorf("load model %s on %s: %w", name, device, err)
	}
	c.models[key] = m
	return m, nil
}

// Evict closes and forgets one model.
func (c *Cache) Evict(name string, device Device) error {
	key := cacheKey(name, device.Resolve())
	c.mu.Lock()
	m, ok := c.models[key]
	delete(c.models, key)
	c.mu.Unlock()
	if !ok {
		return nil
	}
	return m.Close()
}

// Len returns the number of loaded models.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.models)
}

// Close closes every cached model.
func (c *Cache) Close() error {
	c.mu.Lock()
	models := c.models
	c.models = make(map[string]Separator)
	c.mu.Unlock()

	var errs []error
	for _, m := range models {
		if err := m.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DefaultLoader loads an ONNX export from modelsDir when a native backend is
// compiled in, and falls back to SimulatedModel otherwise.
func DefaultLoader(modelsDir string) Loader {
	return func(name string, device Device) (Separator, error) {
		if NativeAvailable() {
			return NewNative(modelsDir, name, device)
		}
		return NewSimulated(name)
	}
}

// SimulatedLoader always returns SimulatedModel.
func SimulatedLoader() Loader {
	return func(name string, _ Device) (Separator, error) {
		return NewSimulated(name)
	}
}
