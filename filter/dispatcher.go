package filter

import (
	"fmt"
	"runtime"
	"slices"
	"sync"

	"github.com/gogpu/gpufilter"
	"github.com/gogpu/gpufilter/gpucore"
	"github.com/gogpu/gpufilter/kernels"
)

// maxCachedGroups is the number of bind groups a filter keeps. Two cover
// a ping-ponged image.
const maxCachedGroups = 2

// Dispatcher is a filter bound to one compiled kernel. Its Capabilities
// decide the argument layout; all concrete filters are Dispatchers built
// by the New* constructors.
type Dispatcher struct {
	caps   Capabilities
	target Target
	layout Layout
	radius uint32
	taps   uint32
	extra  [kernels.ExtraFloats]float32

	res     *resources
	once    sync.Once
	cleanup runtime.Cleanup
}

// resources is everything a Dispatcher owns on the device. It is kept
// apart from the Dispatcher so a leaked filter can still be released.
type resources struct {
	mu       sync.Mutex
	released bool

	dev     gpucore.GPUAdapter
	label   string
	kernel  *Kernel
	masks   []*MaskBuffer
	offsets gpucore.BufferID
	params  gpucore.BufferID

	scratch     gpucore.BufferID
	scratchSize uint64

	groups []cachedGroup
	geom   Geometry
}

type cachedGroup struct {
	id      gpucore.BindGroupID
	entries []gpucore.BindGroupEntry
}

// family is what a constructor contributes to a Dispatcher.
type family struct {
	caps  Capabilities
	masks MaskSet

	// window is the side of the offsets window when the filter owns no
	// mask. Masked filters use the mask size.
	window int

	extra [kernels.ExtraFloats]float32
}

func build(dev gpucore.GPUAdapter, t Target, prog Program, entryPoint string, f family, cfg config) (*Dispatcher, error) {
	if err := f.caps.Validate(); err != nil {
		return nil, err
	}
	if f.masks.Kind() != f.caps.Masks {
		return nil, fmt.Errorf("%w: %s given %s", ErrInvalidConfig, f.caps, f.masks.Kind())
	}
	if err := f.masks.validate(); err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("%w: nil target", ErrInvalidConfig)
	}
	switch {
	case dev == nil:
		dev = t.Device()
		if dev == nil {
			return nil, fmt.Errorf("%w: target has no device", ErrInvalidConfig)
		}
	case dev != t.Device():
		return nil, fmt.Errorf("%w: target belongs to another device", ErrInvalidConfig)
	}

	layout := LayoutFor(f.caps)
	k, err := CompileKernel(dev, prog, entryPoint, layout, cfg.tile, cfg.label)
	if err != nil {
		return nil, err
	}
	res := &resources{dev: dev, label: cfg.label, kernel: k}
	d := &Dispatcher{caps: f.caps, target: t, layout: layout, extra: f.extra, res: res}

	if f.caps.Context == ContextBound {
		window := f.window
		for _, m := range f.masks.Masks() {
			mb, err := LoadMask(dev, m)
			if err != nil {
				res.release()
				return nil, err
			}
			res.masks = append(res.masks, mb)
			window = m.Size
		}
		if window < 1 || window%2 == 0 {
			res.release()
			return nil, fmt.Errorf("%w: window %d", ErrInvalidConfig, window)
		}
		d.radius = uint32(window / 2)
		d.taps = uint32(window * window)
		if res.offsets, err = uploadBlocking(dev, int32Bytes(windowOffsets(window)), cfg.label+" offsets"); err != nil {
			res.release()
			return nil, err
		}
	}

	res.params, err = dev.CreateBuffer(kernels.ParamsSize, gpucore.BufferUsageUniform|gpucore.BufferUsageCopyDst, cfg.label+" params")
	if err != nil {
		res.release()
		return nil, fmt.Errorf("%w: params: %w", ErrAllocation, err)
	}

	d.cleanup = runtime.AddCleanup(d, func(r *resources) {
		if r.release() {
			gpufilter.Logger().Warn("filter: leaked filter released by garbage collector", "filter", r.label)
		}
	}, res)
	gpufilter.Logger().Info("filter: constructed",
		"filter", f.caps.String(), "entry", entryPoint, "local", k.local, "radius", d.radius)
	return d, nil
}

// Filter binds the current image buffers and parameters and enqueues one
// kernel execution. On success the target's destination becomes its
// current image. Filter does not wait for the kernel to finish.
func (d *Dispatcher) Filter(q gpucore.Queue) error {
	if d == nil || d.res == nil || d.res.kernel == nil {
		return ErrNotCompiled
	}
	r := d.res
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.released {
		return fmt.Errorf("%w: %s", ErrReleased, r.label)
	}
	if q == nil || q.Adapter() != r.dev {
		return fmt.Errorf("%w: %s: queue belongs to another device", ErrEnqueue, r.label)
	}

	geom, err := ComputeGeometry(d.target.Width(), d.target.Height(), d.target.Channels(), r.kernel.local, d.radius)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrEnqueue, r.label, err)
	}
	if limit := r.dev.Capabilities().MaxComputeWorkgroupsPerDimension; limit > 0 &&
		(geom.Groups[0] > limit || geom.Groups[1] > limit) {
		return fmt.Errorf("%w: %s: %dx%d work-groups exceed the device limit %d",
			ErrEnqueue, r.label, geom.Groups[0], geom.Groups[1], limit)
	}
	r.geom = geom

	results := d.bind(geom)
	if err := errBindResults(results); err != nil {
		gpufilter.Logger().Debug("filter: bind failed", "filter", r.label, "err", err)
		return err
	}
	group, err := r.bindGroup(results)
	if err != nil {
		return &BindError{Results: results, Group: err}
	}

	pass := q.BeginComputePass(r.label)
	pass.SetPipeline(r.kernel.pipeline)
	pass.SetBindGroup(0, group)
	pass.Dispatch(geom.Groups[0], geom.Groups[1], 1)
	pass.End()
	if err := q.Submit(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrEnqueue, r.label, err)
	}
	d.target.Commit()

	gpufilter.Logger().Debug("filter: dispatched", "filter", r.label, "geometry", geom.String())
	return nil
}

// bind resolves every argument of the layout. All arguments are tried so
// the caller sees every failure at once.
func (d *Dispatcher) bind(g Geometry) []BindResult {
	r := d.res
	src, dst := d.target.ImageBuffers()
	image := uint64(d.target.Width()) * uint64(d.target.Height()) * 4

	results := make([]BindResult, len(d.layout))
	nextMask := 0
	for i, a := range d.layout {
		res := BindResult{Arg: a}
		var need uint64
		switch a.Kind {
		case ArgSource:
			res.Buffer, need = src, image
		case ArgDestination:
			res.Buffer, need = dst, image
			if dst == src {
				res.Err = fmt.Errorf("destination aliases the source buffer %d", src)
			}
		case ArgMask:
			mb := r.masks[nextMask]
			nextMask++
			res.Buffer, need = mb.Buffer, uint64(4*mb.Count)
		case ArgScratch:
			need = g.ScratchSize()
			res.Buffer, res.Err = r.ensureScratch(need)
		case ArgOffsets:
			res.Buffer, need = r.offsets, uint64(8*d.taps)
		case ArgParams:
			res.Buffer, need = r.params, kernels.ParamsSize
			res.Err = r.dev.WriteBuffer(r.params, 0, d.params(g).Bytes())
		}
		if res.Err == nil {
			res.Size, res.Err = checkBuffer(r.dev, res.Buffer, a, need)
		}
		results[i] = res
	}
	return results
}

func checkBuffer(dev gpucore.GPUAdapter, id gpucore.BufferID, a Arg, need uint64) (uint64, error) {
	if id == gpucore.InvalidID {
		return 0, errArgMissing
	}
	info, ok := dev.BufferInfo(id)
	if !ok {
		return 0, fmt.Errorf("buffer %d: %w", id, gpucore.ErrResourceNotFound)
	}
	if want := a.Type.RequiredUsage(); !info.Usage.Has(want) {
		return 0, fmt.Errorf("buffer %d usage %#x lacks %#x", id, uint32(info.Usage), uint32(want))
	}
	if info.Size < need {
		return 0, fmt.Errorf("buffer %d is %d bytes, need %d", id, info.Size, need)
	}
	return need, nil
}

func (d *Dispatcher) params(g Geometry) kernels.Params {
	return kernels.Params{
		Pitch:      g.Pitch,
		Width:      uint32(d.target.Width()),
		Height:     uint32(d.target.Height()),
		Channels:   uint32(d.target.Channels()),
		TileWidth:  g.Local[0],
		TileHeight: g.Local[1],
		Radius:     g.Radius,
		Taps:       d.taps,
		Extra:      d.extra,
	}
}

func (r *resources) ensureScratch(size uint64) (gpucore.BufferID, error) {
	if r.scratch != gpucore.InvalidID && r.scratchSize >= size {
		return r.scratch, nil
	}
	if r.scratch != gpucore.InvalidID {
		// Cached groups reference the old buffer.
		r.dropGroups()
		r.dev.DestroyBuffer(r.scratch)
		r.scratch, r.scratchSize = gpucore.InvalidID, 0
	}
	id, err := r.dev.CreateBuffer(int(size), gpucore.BufferUsageStorage, r.label+" scratch")
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("%w: scratch %d bytes: %w", ErrAllocation, size, err)
	}
	r.scratch, r.scratchSize = id, size
	return id, nil
}

// bindGroup returns a bind group for results, reusing a cached one when
// the entries are unchanged.
func (r *resources) bindGroup(results []BindResult) (gpucore.BindGroupID, error) {
	entries := make([]gpucore.BindGroupEntry, len(results))
	for i, res := range results {
		entries[i] = gpucore.BindGroupEntry{Binding: res.Arg.Binding, Buffer: res.Buffer, Size: res.Size}
	}
	for _, g := range r.groups {
		if slices.Equal(g.entries, entries) {
			return g.id, nil
		}
	}

	id, err := r.dev.CreateBindGroup(&gpucore.BindGroupDesc{
		Label:   r.label,
		Layout:  r.kernel.group,
		Entries: entries,
	})
	if err != nil {
		return gpucore.InvalidID, err
	}
	if len(r.groups) == maxCachedGroups {
		r.dev.DestroyBindGroup(r.groups[0].id)
		r.groups = r.groups[1:]
	}
	r.groups = append(r.groups, cachedGroup{id: id, entries: entries})
	return id, nil
}

func (r *resources) dropGroups() {
	for _, g := range r.groups {
		r.dev.DestroyBindGroup(g.id)
	}
	r.groups = nil
}

// release frees everything and reports whether this call did the work.
func (r *resources) release() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return false
	}
	r.released = true

	r.dropGroups()
	for _, id := range []gpucore.BufferID{r.scratch, r.offsets, r.params} {
		if id != gpucore.InvalidID {
			r.dev.DestroyBuffer(id)
		}
	}
	r.scratch, r.offsets, r.params = gpucore.InvalidID, gpucore.InvalidID, gpucore.InvalidID
	for _, mb := range r.masks {
		mb.Release()
	}
	if r.kernel != nil {
		r.kernel.Release()
	}
	return true
}

// Release frees the kernel, masks and every auxiliary buffer. Safe to
// call more than once; Filter returns ErrReleased afterwards.
func (d *Dispatcher) Release() {
	if d == nil || d.res == nil {
		return
	}
	d.once.Do(func() {
		d.cleanup.Stop()
		d.res.release()
	})
}

// Capabilities returns the capability set the filter was built with.
func (d *Dispatcher) Capabilities() Capabilities {
	if d == nil {
		return Capabilities{}
	}
	return d.caps
}

// Layout returns the positional argument order of the kernel.
func (d *Dispatcher) Layout() Layout {
	if d == nil {
		return nil
	}
	return slices.Clone(d.layout)
}

// EntryPoint returns the kernel entry point name, or "" for a filter that
// was never built.
func (d *Dispatcher) EntryPoint() string {
	if d == nil || d.res == nil {
		return ""
	}
	return d.res.kernel.EntryPoint()
}

// LocalSize returns the work-group size.
func (d *Dispatcher) LocalSize() [2]uint32 {
	if d == nil || d.res == nil {
		return [2]uint32{}
	}
	return d.res.kernel.LocalSize()
}

// Radius returns the halo width.
func (d *Dispatcher) Radius() uint32 {
	if d == nil {
		return 0
	}
	return d.radius
}

// MaskBuffers returns the filter's masks in binding order. The buffers are
// owned by the filter.
func (d *Dispatcher) MaskBuffers() []*MaskBuffer {
	if d == nil || d.res == nil {
		return nil
	}
	d.res.mu.Lock()
	defer d.res.mu.Unlock()
	return slices.Clone(d.res.masks)
}

// Geometry returns the geometry of the last Filter call, and false if the
// filter has not been dispatched yet.
func (d *Dispatcher) Geometry() (Geometry, bool) {
	if d == nil || d.res == nil {
		return Geometry{}, false
	}
	d.res.mu.Lock()
	defer d.res.mu.Unlock()
	return d.res.geom, d.res.geom.Groups != [2]uint32{}
}

var _ Filter = (*Dispatcher)(nil)
