package shader

import "github.com/gogpu/gpufilter/gpucore"

// Assemble encodes the interface of m (entry points, local sizes and
// bindings) as a SPIR-V word stream without function bodies. Reflect on
// the result yields the same entry points and bindings. Bindings with a
// Type are declared as variables of the matching storage class.
//
// Devices that execute kernels on the host use it to describe a kernel's
// interface without a WGSL compiler in the loop.
func Assemble(m *Module) []uint32 {
	words := []uint32{spirvMagic, 0x00010300, 0, 0, 0}
	op := func(opcode uint32, operands ...uint32) {
		words = append(words, uint32(len(operands)+1)<<16|opcode)
		words = append(words, operands...)
	}

	id := uint32(1)
	for _, ep := range m.EntryPoints {
		op(opEntryPoint, append([]uint32{uint32(ep.Model), id}, encodeString(ep.Name)...)...)
		if ep.LocalSize != [3]uint32{} {
			op(opExecutionMode, id, executionModeLocalSize, ep.LocalSize[0], ep.LocalSize[1], ep.LocalSize[2])
		}
		id++
	}
	var types []func()
	for _, b := range m.Bindings {
		if b.Name != "" {
			op(opName, append([]uint32{id}, encodeString(b.Name)...)...)
		}
		op(opDecorate, id, decorationDescriptorSet, b.Group)
		op(opDecorate, id, decorationBinding, b.Binding)
		if b.Type == gpucore.BindingTypeReadOnlyStorageBuffer {
			op(opDecorate, id, decorationNonWritable)
		}
		if class, ok := storageClass(b.Type); ok {
			v := id
			types = append(types, func() {
				block, ptr := id, id+1
				id += 2
				op(opTypeStruct, block)
				op(opTypePointer, ptr, class, block)
				op(opVariable, ptr, v, class)
			})
		}
		id++
	}
	for _, emit := range types {
		emit()
	}
	words[3] = id
	return words
}

func storageClass(t gpucore.BindingType) (uint32, bool) {
	switch t {
	case gpucore.BindingTypeUniformBuffer:
		return storageClassUniform, true
	case gpucore.BindingTypeStorageBuffer, gpucore.BindingTypeReadOnlyStorageBuffer:
		return storageClassStorageBuffer, true
	}
	return 0, false
}

// encodeString encodes a nul-terminated SPIR-V literal string.
func encodeString(s string) []uint32 {
	raw := append([]byte(s), 0)
	for len(raw)%4 != 0 {
		raw = append(raw, 0)
	}
	out := make([]uint32, len(raw)/4)
	for i := range out {
		out[i] = uint32(raw[i*4]) | uint32(raw[i*4+1])<<8 | uint32(raw[i*4+2])<<16 | uint32(raw[i*4+3])<<24
	}
	return out
}
