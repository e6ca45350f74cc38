package soft

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gpufilter/backend"
	"github.com/gogpu/gpufilter/gpucore"
	"github.com/gogpu/gpufilter/internal/shader"
)

// Device errors.
var (
	// ErrInjected is returned by operations failed through FailNext.
	ErrInjected = errors.New("soft: injected failure")

	// ErrValidation is returned when a descriptor or dispatch breaks the
	// device's validation rules.
	ErrValidation = errors.New("soft: validation failed")

	// ErrNoKernel is returned by Submit when a dispatched pipeline's entry
	// point has no host kernel registered.
	ErrNoKernel = errors.New("soft: no kernel registered for entry point")
)

func init() {
	backend.Register(backend.BackendSoft, func() (gpucore.GPUAdapter, error) {
		return New(), nil
	})
}

type buffer struct {
	data  []byte
	usage gpucore.BufferUsage
	label string
}

type pipeline struct {
	layout gpucore.PipelineLayoutID
	module gpucore.ShaderModuleID
	entry  shader.EntryPoint
}

type bindGroup struct {
	layout  gpucore.BindGroupLayoutID
	entries []gpucore.BindGroupEntry
}

// Device is a CPU implementation of gpucore.GPUAdapter.
//
// Device is safe for concurrent use. Submitted passes execute
// synchronously inside Submit, one at a time.
type Device struct {
	mu     sync.Mutex
	caps   gpucore.AdapterCapabilities
	nextID uint64
	closed bool

	buffers          map[gpucore.BufferID]*buffer
	shaderModules    map[gpucore.ShaderModuleID]*shader.Module
	bindGroupLayouts map[gpucore.BindGroupLayoutID]*gpucore.BindGroupLayoutDesc
	pipelineLayouts  map[gpucore.PipelineLayoutID][]gpucore.BindGroupLayoutID
	computePipelines map[gpucore.ComputePipelineID]*pipeline
	bindGroups       map[gpucore.BindGroupID]*bindGroup

	kernels    map[string]Kernel
	failures   map[Op]int
	dispatches []DispatchRecord

	queue *queue
}

// Option configures a Device.
type Option func(*Device)

// WithCapabilities overrides the reported adapter limits.
func WithCapabilities(caps gpucore.AdapterCapabilities) Option {
	return func(d *Device) {
		d.caps = caps
	}
}

// WithKernel registers a host kernel for an entry point, replacing any
// reference kernel of the same name.
func WithKernel(entryPoint string, k Kernel) Option {
	return func(d *Device) {
		d.kernels[entryPoint] = k
	}
}

// New creates a reference device. Reference kernels for the shipped
// entry points are registered before options are applied.
func New(opts ...Option) *Device {
	caps := gpucore.DefaultCapabilities()
	caps.Name = "soft reference device"
	d := &Device{
		caps:             caps,
		buffers:          make(map[gpucore.BufferID]*buffer),
		shaderModules:    make(map[gpucore.ShaderModuleID]*shader.Module),
		bindGroupLayouts: make(map[gpucore.BindGroupLayoutID]*gpucore.BindGroupLayoutDesc),
		pipelineLayouts:  make(map[gpucore.PipelineLayoutID][]gpucore.BindGroupLayoutID),
		computePipelines: make(map[gpucore.ComputePipelineID]*pipeline),
		bindGroups:       make(map[gpucore.BindGroupID]*bindGroup),
		kernels:          referenceKernels(),
		failures:         make(map[Op]int),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.queue = &queue{dev: d}
	return d
}

// RegisterKernel registers a host kernel for an entry point after
// construction.
func (d *Device) RegisterKernel(entryPoint string, k Kernel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.kernels[entryPoint] = k
}

// newID returns the next resource ID. Callers hold d.mu.
func (d *Device) newID() uint64 {
	d.nextID++
	return d.nextID
}

// begin checks the closed flag and any injected failure for op.
// Callers hold d.mu.
func (d *Device) begin(op Op) error {
	if d.closed {
		return gpucore.ErrAdapterClosed
	}
	if n := d.failures[op]; n > 0 {
		d.failures[op] = n - 1
		return fmt.Errorf("%w: %s", ErrInjected, op)
	}
	return nil
}

// Capabilities returns the adapter limits.
func (d *Device) Capabilities() gpucore.AdapterCapabilities {
	return d.caps
}

// CreateShaderModule reflects the SPIR-V words and keeps the result.
// Modules that fail reflection are rejected.
func (d *Device) CreateShaderModule(spirv []uint32, label string) (gpucore.ShaderModuleID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin(OpCreateShaderModule); err != nil {
		return gpucore.InvalidID, err
	}
	m, err := shader.Reflect(spirv)
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("soft: shader module %q: %w", label, err)
	}
	id := gpucore.ShaderModuleID(d.newID())
	d.shaderModules[id] = m
	return id, nil
}

// DestroyShaderModule releases a shader module.
func (d *Device) DestroyShaderModule(id gpucore.ShaderModuleID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.shaderModules, id)
}

// CreateBuffer allocates a zeroed buffer.
func (d *Device) CreateBuffer(size int, usage gpucore.BufferUsage, label string) (gpucore.BufferID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin(OpCreateBuffer); err != nil {
		return gpucore.InvalidID, err
	}
	if size <= 0 || uint64(size) > d.caps.MaxBufferSize {
		return gpucore.InvalidID, fmt.Errorf("%w: buffer %q size %d outside (0, %d]", ErrValidation, label, size, d.caps.MaxBufferSize)
	}
	if usage == 0 {
		return gpucore.InvalidID, fmt.Errorf("%w: buffer %q has no usage", ErrValidation, label)
	}
	id := gpucore.BufferID(d.newID())
	d.buffers[id] = &buffer{data: make([]byte, size), usage: usage, label: label}
	return id, nil
}

// DestroyBuffer releases a buffer.
func (d *Device) DestroyBuffer(id gpucore.BufferID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.buffers, id)
}

// BufferInfo returns the size and usage of a live buffer.
func (d *Device) BufferInfo(id gpucore.BufferID) (gpucore.BufferInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[id]
	if !ok {
		return gpucore.BufferInfo{}, false
	}
	return gpucore.BufferInfo{Size: uint64(len(b.data)), Usage: b.usage, Label: b.label}, true
}

// WriteBuffer copies data into the buffer. The buffer needs CopyDst usage.
func (d *Device) WriteBuffer(id gpucore.BufferID, offset uint64, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin(OpWriteBuffer); err != nil {
		return err
	}
	b, err := d.bufferRange(id, offset, uint64(len(data)), gpucore.BufferUsageCopyDst)
	if err != nil {
		return err
	}
	copy(b.data[offset:], data)
	return nil
}

// ReadBuffer returns a copy of a buffer range. The buffer needs CopySrc
// usage. Work runs inside Submit, so there is nothing left to wait for.
func (d *Device) ReadBuffer(id gpucore.BufferID, offset, size uint64) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, gpucore.ErrAdapterClosed
	}
	b, err := d.bufferRange(id, offset, size, gpucore.BufferUsageCopySrc)
	if err != nil {
		return nil, err
	}
	out := make([]byte, size)
	copy(out, b.data[offset:offset+size])
	return out, nil
}

func (d *Device) bufferRange(id gpucore.BufferID, offset, size uint64, usage gpucore.BufferUsage) (*buffer, error) {
	b, ok := d.buffers[id]
	if !ok {
		return nil, fmt.Errorf("%w: buffer %d", gpucore.ErrResourceNotFound, id)
	}
	if !b.usage.Has(usage) {
		return nil, fmt.Errorf("%w: buffer %q lacks usage %#x", ErrValidation, b.label, usage)
	}
	if offset+size > uint64(len(b.data)) {
		return nil, fmt.Errorf("%w: [%d, %d) in buffer %q of %d bytes", gpucore.ErrOutOfRange, offset, offset+size, b.label, len(b.data))
	}
	return b, nil
}

// CreateBindGroupLayout records a layout. Binding indices must be unique.
func (d *Device) CreateBindGroupLayout(desc *gpucore.BindGroupLayoutDesc) (gpucore.BindGroupLayoutID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin(OpCreateBindGroupLayout); err != nil {
		return gpucore.InvalidID, err
	}
	seen := make(map[uint32]bool, len(desc.Entries))
	for _, e := range desc.Entries {
		if seen[e.Binding] {
			return gpucore.InvalidID, fmt.Errorf("%w: layout %q binds %d twice", ErrValidation, desc.Label, e.Binding)
		}
		seen[e.Binding] = true
	}
	cp := *desc
	cp.Entries = append([]gpucore.BindGroupLayoutEntry(nil), desc.Entries...)
	id := gpucore.BindGroupLayoutID(d.newID())
	d.bindGroupLayouts[id] = &cp
	return id, nil
}

// DestroyBindGroupLayout releases a bind group layout.
func (d *Device) DestroyBindGroupLayout(id gpucore.BindGroupLayoutID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.bindGroupLayouts, id)
}

// CreatePipelineLayout records the bind group layouts of a pipeline.
func (d *Device) CreatePipelineLayout(layouts []gpucore.BindGroupLayoutID) (gpucore.PipelineLayoutID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin(OpCreatePipelineLayout); err != nil {
		return gpucore.InvalidID, err
	}
	for _, l := range layouts {
		if _, ok := d.bindGroupLayouts[l]; !ok {
			return gpucore.InvalidID, fmt.Errorf("%w: bind group layout %d", gpucore.ErrResourceNotFound, l)
		}
	}
	id := gpucore.PipelineLayoutID(d.newID())
	d.pipelineLayouts[id] = append([]gpucore.BindGroupLayoutID(nil), layouts...)
	return id, nil
}

// DestroyPipelineLayout releases a pipeline layout.
func (d *Device) DestroyPipelineLayout(id gpucore.PipelineLayoutID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.pipelineLayouts, id)
}

// CreateComputePipeline validates the entry point against the module and
// checks that group 0 of the layout supplies every binding the module
// declares, with the reflected binding type when there is one.
func (d *Device) CreateComputePipeline(desc *gpucore.ComputePipelineDesc) (gpucore.ComputePipelineID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin(OpCreateComputePipeline); err != nil {
		return gpucore.InvalidID, err
	}
	m, ok := d.shaderModules[desc.ShaderModule]
	if !ok {
		return gpucore.InvalidID, fmt.Errorf("%w: shader module %d", gpucore.ErrResourceNotFound, desc.ShaderModule)
	}
	groups, ok := d.pipelineLayouts[desc.Layout]
	if !ok {
		return gpucore.InvalidID, fmt.Errorf("%w: pipeline layout %d", gpucore.ErrResourceNotFound, desc.Layout)
	}
	ep, err := m.ComputeEntryPoint(desc.EntryPoint)
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if len(groups) > 0 {
		layout := d.bindGroupLayouts[groups[0]]
		for _, b := range m.BindingsInGroup(0) {
			le, ok := layoutEntry(layout, b.Binding)
			if !ok {
				return gpucore.InvalidID, fmt.Errorf("%w: pipeline %q: binding %d (%s) missing from layout", ErrValidation, desc.Label, b.Binding, b.Name)
			}
			if b.Type != 0 && b.Type != le.Type {
				return gpucore.InvalidID, fmt.Errorf("%w: pipeline %q: binding %d (%s) is %s, layout has %s",
					ErrValidation, desc.Label, b.Binding, b.Name, b.Type, le.Type)
			}
		}
	}
	id := gpucore.ComputePipelineID(d.newID())
	d.computePipelines[id] = &pipeline{layout: desc.Layout, module: desc.ShaderModule, entry: ep}
	return id, nil
}

func layoutEntry(layout *gpucore.BindGroupLayoutDesc, binding uint32) (gpucore.BindGroupLayoutEntry, bool) {
	if layout == nil {
		return gpucore.BindGroupLayoutEntry{}, false
	}
	for _, e := range layout.Entries {
		if e.Binding == binding {
			return e, true
		}
	}
	return gpucore.BindGroupLayoutEntry{}, false
}

// DestroyComputePipeline releases a compute pipeline.
func (d *Device) DestroyComputePipeline(id gpucore.ComputePipelineID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.computePipelines, id)
}

// CreateBindGroup validates every entry against its layout entry: the
// buffer must be live, carry the usage the binding type requires, and the
// bound range must fit the buffer and the layout's minimum size.
func (d *Device) CreateBindGroup(desc *gpucore.BindGroupDesc) (gpucore.BindGroupID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin(OpCreateBindGroup); err != nil {
		return gpucore.InvalidID, err
	}
	layout, ok := d.bindGroupLayouts[desc.Layout]
	if !ok {
		return gpucore.InvalidID, fmt.Errorf("%w: bind group layout %d", gpucore.ErrResourceNotFound, desc.Layout)
	}
	if len(desc.Entries) != len(layout.Entries) {
		return gpucore.InvalidID, fmt.Errorf("%w: bind group %q has %d entries, layout has %d", ErrValidation, desc.Label, len(desc.Entries), len(layout.Entries))
	}
	for _, le := range layout.Entries {
		e, ok := findEntry(desc.Entries, le.Binding)
		if !ok {
			return gpucore.InvalidID, fmt.Errorf("%w: bind group %q: binding %d missing", ErrValidation, desc.Label, le.Binding)
		}
		if err := d.validateEntry(le, e); err != nil {
			return gpucore.InvalidID, fmt.Errorf("bind group %q: %w", desc.Label, err)
		}
	}
	id := gpucore.BindGroupID(d.newID())
	d.bindGroups[id] = &bindGroup{layout: desc.Layout, entries: append([]gpucore.BindGroupEntry(nil), desc.Entries...)}
	return id, nil
}

func findEntry(entries []gpucore.BindGroupEntry, binding uint32) (gpucore.BindGroupEntry, bool) {
	for _, e := range entries {
		if e.Binding == binding {
			return e, true
		}
	}
	return gpucore.BindGroupEntry{}, false
}

func (d *Device) validateEntry(le gpucore.BindGroupLayoutEntry, e gpucore.BindGroupEntry) error {
	b, ok := d.buffers[e.Buffer]
	if !ok {
		return fmt.Errorf("%w: binding %d: buffer %d", gpucore.ErrResourceNotFound, e.Binding, e.Buffer)
	}
	if !b.usage.Has(le.Type.RequiredUsage()) {
		return fmt.Errorf("%w: binding %d (%s): buffer %q lacks usage %#x", ErrValidation, e.Binding, le.Type, b.label, le.Type.RequiredUsage())
	}
	size := boundSize(e, uint64(len(b.data)))
	if e.Offset+size > uint64(len(b.data)) {
		return fmt.Errorf("%w: binding %d: range [%d, %d) exceeds buffer %q", gpucore.ErrOutOfRange, e.Binding, e.Offset, e.Offset+size, b.label)
	}
	if size < le.MinBindingSize {
		return fmt.Errorf("%w: binding %d: %d bytes bound, layout needs %d", ErrValidation, e.Binding, size, le.MinBindingSize)
	}
	if le.Type != gpucore.BindingTypeUniformBuffer && size > d.caps.MaxStorageBufferBindingSize {
		return fmt.Errorf("%w: binding %d: %d bytes exceed the storage binding limit %d", ErrValidation, e.Binding, size, d.caps.MaxStorageBufferBindingSize)
	}
	return nil
}

func boundSize(e gpucore.BindGroupEntry, bufSize uint64) uint64 {
	if e.Size != 0 {
		return e.Size
	}
	if e.Offset > bufSize {
		return 0
	}
	return bufSize - e.Offset
}

// DestroyBindGroup releases a bind group.
func (d *Device) DestroyBindGroup(id gpucore.BindGroupID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.bindGroups, id)
}

// Queue returns the device's queue.
func (d *Device) Queue() gpucore.Queue {
	return d.queue
}

// Close releases every resource. Later create calls fail with
// gpucore.ErrAdapterClosed.
func (d *Device) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	clear(d.buffers)
	clear(d.shaderModules)
	clear(d.bindGroupLayouts)
	clear(d.pipelineLayouts)
	clear(d.computePipelines)
	clear(d.bindGroups)
}

// Counts is a snapshot of live resources per kind.
type Counts struct {
	Buffers          int
	ShaderModules    int
	BindGroupLayouts int
	PipelineLayouts  int
	ComputePipelines int
	BindGroups       int
}

// Total returns the number of live resources of all kinds.
func (c Counts) Total() int {
	return c.Buffers + c.ShaderModules + c.BindGroupLayouts + c.PipelineLayouts + c.ComputePipelines + c.BindGroups
}

// Live returns the current live resource counts.
func (d *Device) Live() Counts {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Counts{
		Buffers:          len(d.buffers),
		ShaderModules:    len(d.shaderModules),
		BindGroupLayouts: len(d.bindGroupLayouts),
		PipelineLayouts:  len(d.pipelineLayouts),
		ComputePipelines: len(d.computePipelines),
		BindGroups:       len(d.bindGroups),
	}
}

// Dispatches returns every dispatch executed so far, oldest first.
func (d *Device) Dispatches() []DispatchRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]DispatchRecord(nil), d.dispatches...)
}
