package backend_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/gogpu/gpufilter/backend"
	"github.com/gogpu/gpufilter/backend/soft"
	"github.com/gogpu/gpufilter/gpucore"
)

func TestSoftRegistered(t *testing.T) {
	if !backend.IsRegistered(backend.BackendSoft) {
		t.Fatal("soft backend is not registered on import")
	}
	if !slices.Contains(backend.Available(), backend.BackendSoft) {
		t.Errorf("Available() = %v, missing soft", backend.Available())
	}

	dev, err := backend.Open(backend.BackendSoft)
	if err != nil {
		t.Fatalf("Open(soft) error = %v", err)
	}
	defer dev.Close()
	if _, ok := dev.(*soft.Device); !ok {
		t.Errorf("Open(soft) = %T, want *soft.Device", dev)
	}
}

func TestOpenUnknown(t *testing.T) {
	if _, err := backend.Open("metal"); !errors.Is(err, backend.ErrBackendNotAvailable) {
		t.Errorf("Open(metal) error = %v, want ErrBackendNotAvailable", err)
	}
}

func TestRegisterUnregister(t *testing.T) {
	const name = "test-backend"
	backend.Register(name, func() (gpucore.GPUAdapter, error) { return soft.New(), nil })
	if !backend.IsRegistered(name) {
		t.Fatal("IsRegistered after Register = false")
	}
	backend.Unregister(name)
	if backend.IsRegistered(name) {
		t.Error("IsRegistered after Unregister = true")
	}
}

func TestDefaultPriority(t *testing.T) {
	if got := backend.Default(); got != backend.BackendSoft {
		t.Errorf("Default() = %q, want soft", got)
	}
	backend.Register(backend.BackendNative, func() (gpucore.GPUAdapter, error) { return soft.New(), nil })
	defer backend.Unregister(backend.BackendNative)
	if got := backend.Default(); got != backend.BackendNative {
		t.Errorf("Default() with native registered = %q, want native", got)
	}
}

func TestOpenDefaultFallsBack(t *testing.T) {
	// The native backend is not linked into this test binary.
	backend.Register(backend.BackendNative, func() (gpucore.GPUAdapter, error) {
		return nil, backend.ErrBackendNotAvailable
	})
	defer backend.Unregister(backend.BackendNative)

	dev, err := backend.OpenDefault()
	if err != nil {
		t.Fatalf("OpenDefault() error = %v", err)
	}
	defer dev.Close()
	if _, ok := dev.(*soft.Device); !ok {
		t.Errorf("OpenDefault() = %T, want the soft fallback", dev)
	}
}

func TestOpenDefaultStopsOnHardError(t *testing.T) {
	boom := errors.New("driver crashed")
	backend.Register(backend.BackendNative, func() (gpucore.GPUAdapter, error) { return nil, boom })
	defer backend.Unregister(backend.BackendNative)

	if _, err := backend.OpenDefault(); !errors.Is(err, boom) {
		t.Errorf("OpenDefault() error = %v, want %v", err, boom)
	}
}
