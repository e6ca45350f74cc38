package soft

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/gpufilter/gpucore"
	"github.com/gogpu/gpufilter/kernels"
)

// Kernel is a host implementation of a compute entry point. It runs the
// whole dispatch: every work item of every workgroup.
type Kernel func(d *Dispatch) error

// Dispatch is the state a Kernel runs against: the launch geometry and the
// bound buffer ranges of group 0. Writes to bound ranges land in the
// device buffers.
type Dispatch struct {
	EntryPoint string
	Groups     [3]uint32
	LocalSize  [3]uint32

	bindings map[uint32][]byte
}

// DispatchRecord describes a dispatch the device executed.
type DispatchRecord struct {
	Label      string
	EntryPoint string
	Groups     [3]uint32
	LocalSize  [3]uint32
	Bindings   []gpucore.BindGroupEntry
}

// GlobalSize returns the number of work items per dimension.
func (d *Dispatch) GlobalSize() [3]uint32 {
	return [3]uint32{
		d.Groups[0] * d.LocalSize[0],
		d.Groups[1] * d.LocalSize[1],
		d.Groups[2] * d.LocalSize[2],
	}
}

// Binding returns the bytes bound at index.
func (d *Dispatch) Binding(index uint32) ([]byte, error) {
	b, ok := d.bindings[index]
	if !ok {
		return nil, fmt.Errorf("%w: %s: binding %d not bound", ErrValidation, d.EntryPoint, index)
	}
	return b, nil
}

// Params decodes the uniform parameter block bound at index.
func (d *Dispatch) Params(index uint32) (kernels.Params, error) {
	b, err := d.Binding(index)
	if err != nil {
		return kernels.Params{}, err
	}
	return kernels.DecodeParams(b)
}

// ForEach calls fn for every work item of the first two dimensions, in
// workgroup order, the way a GPU would cover the global range.
func (d *Dispatch) ForEach(fn func(x, y uint32) error) error {
	for gy := uint32(0); gy < d.Groups[1]; gy++ {
		for gx := uint32(0); gx < d.Groups[0]; gx++ {
			for ly := uint32(0); ly < d.LocalSize[1]; ly++ {
				for lx := uint32(0); lx < d.LocalSize[0]; lx++ {
					if err := fn(gx*d.LocalSize[0]+lx, gy*d.LocalSize[1]+ly); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

// words views a binding as little-endian 32-bit values.
type words []byte

func (w words) len() int { return len(w) / 4 }

func (w words) u32(i int) uint32 { return binary.LittleEndian.Uint32(w[i*4:]) }

func (w words) i32(i int) int32 { return int32(w.u32(i)) }

func (w words) put(i int, v uint32) { binary.LittleEndian.PutUint32(w[i*4:], v) }
