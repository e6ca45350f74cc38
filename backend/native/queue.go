//go:build !nogpu

package native

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/gpufilter"
	"github.com/gogpu/gpufilter/gpucore"
	"github.com/gogpu/wgpu/hal"
)

func logger() *slog.Logger { return gpufilter.Logger() }

// halQueue records compute passes into one command encoder and tracks the
// submission index of every command buffer it hands to the HAL queue.
type halQueue struct {
	adapter *HALAdapter

	mu      sync.Mutex
	encoder hal.CommandEncoder
	encErr  error

	submitted uint64
	inflight  []inflight
}

type inflight struct {
	index uint64
	buf   hal.CommandBuffer
}

func (q *halQueue) Adapter() gpucore.GPUAdapter { return q.adapter }

// BeginComputePass begins a compute pass, creating the frame encoder on
// first use.
func (q *halQueue) BeginComputePass(label string) gpucore.ComputePassEncoder {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.encoder == nil && q.encErr == nil {
		encoder, err := q.adapter.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "filter-encoder"})
		if err != nil {
			q.encErr = fmt.Errorf("native: create command encoder: %w", err)
		} else if err := encoder.BeginEncoding("filter"); err != nil {
			q.encErr = fmt.Errorf("native: begin encoding: %w", err)
		} else {
			q.encoder = encoder
		}
	}
	if q.encoder == nil {
		// Submit reports encErr.
		return &computePass{adapter: q.adapter}
	}

	return &computePass{
		adapter: q.adapter,
		pass:    q.encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: label}),
	}
}

// Submit ends the frame encoder and submits it without waiting.
func (q *halQueue) Submit() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.encErr; err != nil {
		q.encErr = nil
		return err
	}
	if q.encoder == nil {
		return nil
	}
	encoder := q.encoder
	q.encoder = nil

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("native: end encoding: %w", err)
	}
	return q.submitLocked(cmdBuf)
}

func (q *halQueue) submitLocked(cmdBuf hal.CommandBuffer) error {
	index, err := q.adapter.queue.Submit([]hal.CommandBuffer{cmdBuf})
	if err != nil {
		q.adapter.device.FreeCommandBuffer(cmdBuf)
		return fmt.Errorf("native: submit: %w", err)
	}
	q.submitted = index
	q.inflight = append(q.inflight, inflight{index: index, buf: cmdBuf})
	q.reclaimLocked(q.adapter.queue.PollCompleted())
	return nil
}

// reclaimLocked frees command buffers whose submission index has completed.
func (q *halQueue) reclaimLocked(completed uint64) {
	n := 0
	for _, f := range q.inflight {
		if f.index <= completed {
			q.adapter.device.FreeCommandBuffer(f.buf)
			continue
		}
		q.inflight[n] = f
		n++
	}
	clear(q.inflight[n:])
	q.inflight = q.inflight[:n]
}

// submitAndWait submits one command buffer after any recorded passes and
// waits for it.
func (q *halQueue) submitAndWait(cmdBuf hal.CommandBuffer) error {
	if err := q.Submit(); err != nil {
		q.adapter.device.FreeCommandBuffer(cmdBuf)
		return err
	}
	q.mu.Lock()
	err := q.submitLocked(cmdBuf)
	q.mu.Unlock()
	if err != nil {
		return err
	}
	return q.WaitIdle()
}

// WaitIdle submits recorded passes and blocks until the device drains.
// There is no timeout.
func (q *halQueue) WaitIdle() error {
	if err := q.Submit(); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.inflight) == 0 {
		return nil
	}
	if err := q.adapter.device.WaitIdle(); err != nil {
		return fmt.Errorf("native: wait for submission %d: %w", q.submitted, err)
	}
	if done := q.adapter.queue.PollCompleted(); done < q.submitted {
		logger().Debug("native: device idle before queue caught up", "completed", done, "submitted", q.submitted)
	}
	q.reclaimLocked(q.submitted)
	return nil
}

func (q *halQueue) destroy() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.reclaimLocked(q.submitted)
	q.inflight = nil
}

// computePass implements gpucore.ComputePassEncoder.
type computePass struct {
	adapter *HALAdapter
	pass    hal.ComputePassEncoder
}

// SetPipeline sets the active compute pipeline.
func (e *computePass) SetPipeline(pipeline gpucore.ComputePipelineID) {
	if e.pass == nil {
		return
	}

	e.adapter.mu.RLock()
	halPipeline, ok := e.adapter.computePipelines[pipeline]
	e.adapter.mu.RUnlock()

	if ok {
		e.pass.SetPipeline(halPipeline)
	}
}

// SetBindGroup sets a bind group at the specified index.
func (e *computePass) SetBindGroup(index uint32, group gpucore.BindGroupID) {
	if e.pass == nil {
		return
	}

	e.adapter.mu.RLock()
	halGroup, ok := e.adapter.bindGroups[group]
	e.adapter.mu.RUnlock()

	if ok {
		e.pass.SetBindGroup(index, halGroup, nil)
	}
}

// Dispatch dispatches compute workgroups.
func (e *computePass) Dispatch(x, y, z uint32) {
	if e.pass == nil {
		return
	}
	e.pass.Dispatch(x, y, z)
}

// End finishes the compute pass.
func (e *computePass) End() {
	if e.pass == nil {
		return
	}
	e.pass.End()
	e.pass = nil
}
