package filter_test

import (
	"testing"

	"github.com/gogpu/gpufilter/backend/soft"
	"github.com/gogpu/gpufilter/filter"
	"github.com/gogpu/gpufilter/internal/shader"
	"github.com/gogpu/gpufilter/kernels"
	"github.com/gogpu/gpufilter/transfer"
)

// bindingCounts is the number of group-0 bindings of each shipped kernel.
var bindingCounts = map[string]int{
	kernels.Lowpass:     6,
	kernels.Highpass:    7,
	kernels.Median:      5,
	kernels.Minimum:     5,
	kernels.Maximum:     5,
	kernels.Erode:       6,
	kernels.Dilate:      6,
	kernels.ColorMatrix: 3,
}

// program returns the interface of a kernel as SPIR-V: one compute entry
// point with a square work-group and bindings 0..n-1 of group 0.
func program(entry string, tile uint32, bindings int) filter.Program {
	mod := &shader.Module{
		EntryPoints: []shader.EntryPoint{{
			Name:      entry,
			Model:     shader.ExecutionModelGLCompute,
			LocalSize: [3]uint32{tile, tile, 1},
		}},
	}
	for i := 0; i < bindings; i++ {
		mod.Bindings = append(mod.Bindings, shader.Binding{Group: 0, Binding: uint32(i)})
	}
	return filter.SPIRV(shader.Assemble(mod))
}

var (
	lowpassLayout = filter.LayoutFor(filter.Capabilities{Context: filter.ContextBound, Linearity: filter.Linear, Masks: filter.SingleMask})
	rankLayout    = filter.LayoutFor(filter.Capabilities{Context: filter.ContextBound, Linearity: filter.Nonlinear, Masks: filter.NoMask})
)

// shippedLayouts is the typed group-0 interface of each shipped kernel.
var shippedLayouts = map[string]filter.Layout{
	kernels.Lowpass:     lowpassLayout,
	kernels.Highpass:    filter.LayoutFor(filter.Capabilities{Context: filter.ContextBound, Linearity: filter.Linear, Masks: filter.DualMask}),
	kernels.Median:      rankLayout,
	kernels.Minimum:     rankLayout,
	kernels.Maximum:     rankLayout,
	kernels.Erode:       lowpassLayout,
	kernels.Dilate:      lowpassLayout,
	kernels.ColorMatrix: filter.LayoutFor(filter.Capabilities{Context: filter.ContextFree, Linearity: filter.Linear, Masks: filter.NoMask}),
}

// typedProgram is program with one binding per layout argument, each
// declared with the argument's binding type.
func typedProgram(entry string, tile uint32, layout filter.Layout) filter.Program {
	mod := &shader.Module{
		EntryPoints: []shader.EntryPoint{{
			Name:      entry,
			Model:     shader.ExecutionModelGLCompute,
			LocalSize: [3]uint32{tile, tile, 1},
		}},
	}
	for _, a := range layout {
		mod.Bindings = append(mod.Bindings, shader.Binding{Group: 0, Binding: a.Binding, Name: a.Name, Type: a.Type})
	}
	return filter.SPIRV(shader.Assemble(mod))
}

// shipped returns the typed interface of a shipped kernel with a
// tile x tile work-group.
func shipped(entry string, tile uint32) filter.Program {
	return typedProgram(entry, tile, shippedLayouts[entry])
}

type rig struct {
	dev *soft.Device
	tm  *transfer.Manager
}

// newRig uploads a width x height image of packed pixels to a fresh
// reference device.
func newRig(t *testing.T, channels, width, height int, pixels []uint32, opts ...soft.Option) *rig {
	t.Helper()
	dev := soft.New(opts...)
	t.Cleanup(dev.Close)
	tm, err := transfer.New(dev, transfer.WithChannels(channels))
	if err != nil {
		t.Fatalf("transfer.New() error = %v", err)
	}
	t.Cleanup(tm.Close)
	if err := tm.UploadPixels(width, height, pixels); err != nil {
		t.Fatalf("UploadPixels() error = %v", err)
	}
	return &rig{dev: dev, tm: tm}
}

// fill returns n copies of v.
func fill(n int, v uint32) []uint32 {
	out := make([]uint32, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// run enqueues f, waits, and returns the resulting pixels.
func (r *rig) run(t *testing.T, f filter.Filter) []uint32 {
	t.Helper()
	if err := f.Filter(r.dev.Queue()); err != nil {
		t.Fatalf("Filter() error = %v", err)
	}
	if err := r.tm.Sync(); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	px, err := r.tm.Pixels()
	if err != nil {
		t.Fatalf("Pixels() error = %v", err)
	}
	return px
}
