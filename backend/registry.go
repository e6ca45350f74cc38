package backend

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/gogpu/gpufilter"
	"github.com/gogpu/gpufilter/gpucore"
)

// registry holds registered backends.
var (
	registryMu sync.RWMutex
	backends   = make(map[string]Factory)
	// Priority order for backend selection (first available wins).
	// Native > Soft (Soft is the fallback).
	backendPriority = []string{BackendNative, BackendSoft}
)

// Register registers a backend factory with the given name.
// This is typically called from init() functions in backend packages.
// If a backend with the same name is already registered, it will be replaced.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	backends[name] = factory
}

// Unregister removes a backend from the registry.
// This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(backends, name)
}

// Available returns the registered backend names, sorted.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if a backend with the given name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := backends[name]
	return ok
}

// Default returns the name of the highest-priority registered backend,
// or "" if none is registered. Unknown names sort after the built-in ones.
func Default() string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	for _, name := range backendPriority {
		if _, ok := backends[name]; ok {
			return name
		}
	}
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)
	return names[0]
}

// Open opens a device from the named backend.
func Open(name string) (gpucore.GPUAdapter, error) {
	registryMu.RLock()
	factory, ok := backends[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q is not registered", ErrBackendNotAvailable, name)
	}
	dev, err := factory()
	if err != nil {
		return nil, fmt.Errorf("backend %s: %w", name, err)
	}
	gpufilter.Logger().Info("backend: device opened", "backend", name, "adapter", dev.Capabilities().Name)
	return dev, nil
}

// OpenDefault opens the first backend in priority order that succeeds.
// A backend that reports ErrBackendNotAvailable is skipped; any other
// error is returned.
func OpenDefault() (gpucore.GPUAdapter, error) {
	names := Available()
	if len(names) == 0 {
		return nil, ErrNoBackends
	}
	sort.SliceStable(names, func(i, j int) bool { return priority(names[i]) < priority(names[j]) })

	var lastErr error
	for _, name := range names {
		dev, err := Open(name)
		if err == nil {
			return dev, nil
		}
		if !errors.Is(err, ErrBackendNotAvailable) {
			return nil, err
		}
		gpufilter.Logger().Warn("backend: falling back", "backend", name, "error", err)
		lastErr = err
	}
	return nil, lastErr
}

func priority(name string) int {
	for i, n := range backendPriority {
		if n == name {
			return i
		}
	}
	return len(backendPriority)
}
