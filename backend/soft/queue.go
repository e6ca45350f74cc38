package soft

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpufilter/gpucore"
)

type command struct {
	pipeline gpucore.ComputePipelineID
	group    gpucore.BindGroupID
	hasGroup bool
	groups   [3]uint32
}

// queue executes passes synchronously on Submit.
type queue struct {
	dev     *Device
	pending []*pass
}

func (q *queue) Adapter() gpucore.GPUAdapter { return q.dev }

func (q *queue) BeginComputePass(label string) gpucore.ComputePassEncoder {
	return &pass{q: q, label: label}
}

// Submit runs every ended pass in order. Passes are consumed even when
// Submit fails.
func (q *queue) Submit() error {
	d := q.dev
	d.mu.Lock()
	defer d.mu.Unlock()

	passes := q.pending
	q.pending = nil
	if err := d.begin(OpSubmit); err != nil {
		return err
	}
	var errs []error
	for _, p := range passes {
		if p.err != nil {
			errs = append(errs, fmt.Errorf("pass %q: %w", p.label, p.err))
			continue
		}
		for _, c := range p.commands {
			if err := d.execute(p.label, c); err != nil {
				errs = append(errs, fmt.Errorf("pass %q: %w", p.label, err))
				break
			}
		}
	}
	return errors.Join(errs...)
}

// WaitIdle returns immediately: Submit has already run the work.
func (q *queue) WaitIdle() error {
	q.dev.mu.Lock()
	defer q.dev.mu.Unlock()
	if q.dev.closed {
		return gpucore.ErrAdapterClosed
	}
	return nil
}

// pass records commands until End hands it to the queue.
type pass struct {
	q        *queue
	label    string
	pipeline gpucore.ComputePipelineID
	group    gpucore.BindGroupID
	hasGroup bool
	commands []command
	ended    bool
	err      error
}

func (p *pass) fail(format string, args ...any) {
	if p.err == nil {
		p.err = fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
	}
}

func (p *pass) SetPipeline(pipeline gpucore.ComputePipelineID) {
	if p.ended {
		p.fail("SetPipeline after End")
		return
	}
	p.pipeline = pipeline
}

func (p *pass) SetBindGroup(index uint32, group gpucore.BindGroupID) {
	if p.ended {
		p.fail("SetBindGroup after End")
		return
	}
	if index != 0 {
		p.fail("bind group index %d, only group 0 is supported", index)
		return
	}
	p.group, p.hasGroup = group, true
}

func (p *pass) Dispatch(x, y, z uint32) {
	if p.ended {
		p.fail("Dispatch after End")
		return
	}
	if p.pipeline == gpucore.InvalidID {
		p.fail("Dispatch without a pipeline")
		return
	}
	p.commands = append(p.commands, command{
		pipeline: p.pipeline,
		group:    p.group,
		hasGroup: p.hasGroup,
		groups:   [3]uint32{x, y, z},
	})
}

func (p *pass) End() {
	if p.ended {
		return
	}
	p.ended = true
	p.q.dev.mu.Lock()
	p.q.pending = append(p.q.pending, p)
	p.q.dev.mu.Unlock()
}

// execute validates one dispatch and runs its kernel. Callers hold d.mu.
func (d *Device) execute(label string, c command) error {
	p, ok := d.computePipelines[c.pipeline]
	if !ok {
		return fmt.Errorf("%w: compute pipeline %d", gpucore.ErrResourceNotFound, c.pipeline)
	}
	if !c.hasGroup {
		return fmt.Errorf("%w: dispatch of %q without bind group 0", ErrValidation, p.entry.Name)
	}
	bg, ok := d.bindGroups[c.group]
	if !ok {
		return fmt.Errorf("%w: bind group %d", gpucore.ErrResourceNotFound, c.group)
	}
	groups := d.pipelineLayouts[p.layout]
	if len(groups) == 0 || groups[0] != bg.layout {
		return fmt.Errorf("%w: bind group layout does not match pipeline %q", ErrValidation, p.entry.Name)
	}
	limit := d.caps.MaxComputeWorkgroupsPerDimension
	if c.groups[0] > limit || c.groups[1] > limit || c.groups[2] > limit {
		return fmt.Errorf("%w: dispatch %v exceeds %d workgroups per dimension", ErrValidation, c.groups, limit)
	}

	dispatch := &Dispatch{
		EntryPoint: p.entry.Name,
		Groups:     c.groups,
		LocalSize:  p.entry.LocalSize,
		bindings:   make(map[uint32][]byte, len(bg.entries)),
	}
	for i := range dispatch.LocalSize {
		if dispatch.LocalSize[i] == 0 {
			dispatch.LocalSize[i] = 1
		}
	}
	for _, e := range bg.entries {
		b, ok := d.buffers[e.Buffer]
		if !ok {
			return fmt.Errorf("%w: binding %d: buffer %d was destroyed", gpucore.ErrResourceNotFound, e.Binding, e.Buffer)
		}
		size := boundSize(e, uint64(len(b.data)))
		dispatch.bindings[e.Binding] = b.data[e.Offset : e.Offset+size]
	}

	d.dispatches = append(d.dispatches, DispatchRecord{
		Label:      label,
		EntryPoint: dispatch.EntryPoint,
		Groups:     dispatch.Groups,
		LocalSize:  dispatch.LocalSize,
		Bindings:   append([]gpucore.BindGroupEntry(nil), bg.entries...),
	})

	k, ok := d.kernels[p.entry.Name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoKernel, p.entry.Name)
	}
	return k(dispatch)
}
