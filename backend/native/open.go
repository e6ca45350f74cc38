//go:build !nogpu

package native

import (
	"fmt"
	"strings"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gpufilter/backend"
	"github.com/gogpu/gpufilter/gpucore"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	_ "github.com/gogpu/wgpu/hal/vulkan"
)

func init() {
	backend.Register(backend.BackendNative, func() (gpucore.GPUAdapter, error) {
		return Open()
	})
}

type config struct {
	backend gputypes.Backend
	limits  gputypes.Limits
	name    string
}

// Option configures Open.
type Option func(*config)

// WithBackend selects the HAL backend. Default: Vulkan.
func WithBackend(b gputypes.Backend) Option {
	return func(c *config) { c.backend = b }
}

// WithLimits sets the limits requested when opening the device.
// Default: gputypes.DefaultLimits().
func WithLimits(l gputypes.Limits) Option {
	return func(c *config) { c.limits = l }
}

// WithAdapterName picks the first adapter whose name contains s
// (case-insensitive) instead of the first discrete or integrated GPU.
func WithAdapterName(s string) Option {
	return func(c *config) { c.name = strings.ToLower(s) }
}

// Open creates an instance, selects an adapter and opens a device the
// returned adapter owns. It returns an error wrapping
// backend.ErrBackendNotAvailable when the host has no usable GPU.
func Open(opts ...Option) (*HALAdapter, error) {
	cfg := config{backend: gputypes.BackendVulkan, limits: gputypes.DefaultLimits()}
	for _, opt := range opts {
		opt(&cfg)
	}

	hb, ok := hal.GetBackend(cfg.backend)
	if !ok {
		return nil, fmt.Errorf("%w: HAL backend %v not compiled in", backend.ErrBackendNotAvailable, cfg.backend)
	}
	instance, err := hb.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("%w: create instance: %w", backend.ErrBackendNotAvailable, err)
	}
	adapters := instance.EnumerateAdapters(nil)
	selected := selectAdapter(adapters, cfg.name)
	if selected == nil {
		instance.Destroy()
		return nil, fmt.Errorf("%w: no GPU adapters found", backend.ErrBackendNotAvailable)
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), cfg.limits)
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("native: open device %q: %w", selected.Info.Name, err)
	}

	a := NewHALAdapter(openDev.Device, openDev.Queue, &cfg.limits, selected.Info.Name)
	a.release = func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	logger().Info("native: device opened", "adapter", selected.Info.Name, "type", selected.Info.DeviceType)
	return a, nil
}

// selectAdapter prefers a name match, then a discrete or integrated GPU,
// then the first adapter.
func selectAdapter(adapters []hal.ExposedAdapter, name string) *hal.ExposedAdapter {
	if len(adapters) == 0 {
		return nil
	}
	if name != "" {
		for i := range adapters {
			if strings.Contains(strings.ToLower(adapters[i].Info.Name), name) {
				return &adapters[i]
			}
		}
		return nil
	}
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			return &adapters[i]
		}
	}
	return &adapters[0]
}

// FromProvider wraps a device shared by the host application. The
// provider must implement HalDevice() any and HalQueue() any returning
// hal.Device and hal.Queue. The adapter never destroys the shared device.
func FromProvider(provider gpucontext.DeviceProvider) (*HALAdapter, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	if provider == nil {
		return nil, fmt.Errorf("native: nil device provider")
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("native: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("native: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("native: provider HalQueue is not hal.Queue")
	}
	return NewHALAdapter(device, queue, nil, "shared"), nil
}
