package shader

import (
	"fmt"
	"sort"

	"github.com/gogpu/gpufilter/gpucore"
)

const (
	spirvMagic      = 0x07230203
	spirvHeaderSize = 5

	opName           = 5
	opEntryPoint     = 15
	opExecutionMode  = 16
	opTypeStruct     = 30
	opTypePointer    = 32
	opVariable       = 59
	opDecorate       = 71
	opMemberDecorate = 72

	executionModeLocalSize = 17

	decorationBufferBlock   = 3
	decorationNonWritable   = 24
	decorationBinding       = 33
	decorationDescriptorSet = 34

	storageClassUniform       = 2
	storageClassStorageBuffer = 12
)

// Reflect scans SPIR-V words for entry points, their local sizes and the
// resource variables: group/binding decorations and, when the variable
// is declared, its buffer binding type.
func Reflect(words []uint32) (*Module, error) {
	if len(words) < spirvHeaderSize || words[0] != spirvMagic {
		return nil, fmt.Errorf("%w: bad header", ErrInvalidSPIRV)
	}

	type decoration struct {
		group, binding       uint32
		hasGroup, hasBinding bool
		nonWritable          bool
		bufferBlock          bool
		nonWritableMember    bool
	}
	type pointer struct{ class, pointee uint32 }
	type variable struct{ pointerType, class uint32 }

	var (
		entries    []EntryPoint
		entryIDs   []uint32
		localSizes = make(map[uint32][3]uint32)
		names      = make(map[uint32]string)
		decos      = make(map[uint32]*decoration)
		pointers   = make(map[uint32]pointer)
		variables  = make(map[uint32]variable)
	)
	deco := func(id uint32) *decoration {
		d := decos[id]
		if d == nil {
			d = &decoration{}
			decos[id] = d
		}
		return d
	}

	for i := spirvHeaderSize; i < len(words); {
		wordCount := int(words[i] >> 16)
		opcode := words[i] & 0xFFFF
		if wordCount == 0 || i+wordCount > len(words) {
			return nil, fmt.Errorf("%w: truncated instruction at word %d", ErrInvalidSPIRV, i)
		}
		operands := words[i+1 : i+wordCount]

		switch opcode {
		case opName:
			if len(operands) >= 2 {
				names[operands[0]] = decodeString(operands[1:])
			}
		case opEntryPoint:
			if len(operands) < 3 {
				return nil, fmt.Errorf("%w: short OpEntryPoint", ErrInvalidSPIRV)
			}
			entries = append(entries, EntryPoint{
				Model: ExecutionModel(operands[0]),
				Name:  decodeString(operands[2:]),
			})
			entryIDs = append(entryIDs, operands[1])
		case opExecutionMode:
			if len(operands) >= 5 && operands[1] == executionModeLocalSize {
				localSizes[operands[0]] = [3]uint32{operands[2], operands[3], operands[4]}
			}
		case opDecorate:
			if len(operands) < 2 {
				break
			}
			d := deco(operands[0])
			switch operands[1] {
			case decorationBinding:
				if len(operands) >= 3 {
					d.binding, d.hasBinding = operands[2], true
				}
			case decorationDescriptorSet:
				if len(operands) >= 3 {
					d.group, d.hasGroup = operands[2], true
				}
			case decorationNonWritable:
				d.nonWritable = true
			case decorationBufferBlock:
				d.bufferBlock = true
			}
		case opMemberDecorate:
			if len(operands) >= 3 && operands[2] == decorationNonWritable {
				deco(operands[0]).nonWritableMember = true
			}
		case opTypePointer:
			if len(operands) >= 3 {
				pointers[operands[0]] = pointer{class: operands[1], pointee: operands[2]}
			}
		case opVariable:
			if len(operands) >= 3 {
				variables[operands[1]] = variable{pointerType: operands[0], class: operands[2]}
			}
		}
		i += wordCount
	}

	for i, id := range entryIDs {
		entries[i].LocalSize = localSizes[id]
	}

	var bindings []Binding
	for id, d := range decos {
		if !d.hasBinding {
			continue
		}
		b := Binding{Group: d.group, Binding: d.binding, Name: names[id]}
		if v, ok := variables[id]; ok {
			ptr := pointers[v.pointerType]
			var pointee decoration
			if pd := decos[ptr.pointee]; pd != nil {
				pointee = *pd
			}
			readOnly := d.nonWritable || pointee.nonWritableMember
			switch {
			case v.class == storageClassStorageBuffer,
				v.class == storageClassUniform && pointee.bufferBlock:
				b.Type = gpucore.BindingTypeStorageBuffer
				if readOnly {
					b.Type = gpucore.BindingTypeReadOnlyStorageBuffer
				}
			case v.class == storageClassUniform:
				b.Type = gpucore.BindingTypeUniformBuffer
			}
		}
		bindings = append(bindings, b)
	}
	sort.Slice(bindings, func(i, j int) bool {
		if bindings[i].Group != bindings[j].Group {
			return bindings[i].Group < bindings[j].Group
		}
		return bindings[i].Binding < bindings[j].Binding
	})

	return &Module{Words: words, EntryPoints: entries, Bindings: bindings}, nil
}

// decodeString decodes a nul-terminated SPIR-V literal string.
func decodeString(words []uint32) string {
	buf := make([]byte, 0, len(words)*4)
	for _, w := range words {
		for shift := 0; shift < 32; shift += 8 {
			c := byte(w >> shift)
			if c == 0 {
				return string(buf)
			}
			buf = append(buf, c)
		}
	}
	return string(buf)
}
