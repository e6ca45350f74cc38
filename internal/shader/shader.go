// Package shader compiles WGSL kernel sources to SPIR-V and reflects the
// parts of the result the dispatch core validates against: entry points,
// their work-group sizes and the resource bindings they declare.
package shader

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"sort"

	"github.com/gogpu/gpufilter/gpucore"
	"github.com/gogpu/gpufilter/internal/cache"
	"github.com/gogpu/naga"
)

// Shader errors.
var (
	// ErrCompile is returned when naga rejects the WGSL source.
	ErrCompile = errors.New("shader: compilation failed")

	// ErrEntryPointNotFound is returned when the module has no compute
	// entry point of the requested name.
	ErrEntryPointNotFound = errors.New("shader: entry point not found")

	// ErrInvalidSPIRV is returned when the bytecode cannot be parsed.
	ErrInvalidSPIRV = errors.New("shader: invalid SPIR-V")
)

// ExecutionModel is the SPIR-V execution model of an entry point.
type ExecutionModel uint32

// Execution models reported by naga for WGSL stages.
const (
	ExecutionModelVertex    ExecutionModel = 0
	ExecutionModelFragment  ExecutionModel = 4
	ExecutionModelGLCompute ExecutionModel = 5
)

// String returns the WGSL stage name.
func (m ExecutionModel) String() string {
	switch m {
	case ExecutionModelVertex:
		return "vertex"
	case ExecutionModelFragment:
		return "fragment"
	case ExecutionModelGLCompute:
		return "compute"
	default:
		return fmt.Sprintf("model(%d)", uint32(m))
	}
}

// EntryPoint describes one entry point of a module.
type EntryPoint struct {
	Name  string
	Model ExecutionModel

	// LocalSize is the declared @workgroup_size. Zero when the module
	// declares it through specialization constants.
	LocalSize [3]uint32
}

// Binding is a resource variable decorated with a group and binding index.
type Binding struct {
	Group   uint32
	Binding uint32
	Name    string

	// Type is the buffer binding type derived from the variable's storage
	// class and NonWritable decoration. Zero for non-buffer resources and
	// for modules that do not declare the variable.
	Type gpucore.BindingType
}

// Module is a compiled kernel program together with its reflection data.
type Module struct {
	Words       []uint32
	EntryPoints []EntryPoint
	Bindings    []Binding
}

// Compile compiles WGSL source to SPIR-V and reflects the result.
func Compile(wgslSource string) (*Module, error) {
	spirvBytes, err := naga.Compile(wgslSource)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompile, err)
	}
	words, err := Words(spirvBytes)
	if err != nil {
		return nil, err
	}
	return Reflect(words)
}

// compiled holds modules keyed by the SHA-256 of their WGSL source.
var compiled = cache.New[[sha256.Size]byte, *Module](64)

// CompileCached is Compile with a process-wide cache. The returned module
// is shared and must be treated as read-only.
func CompileCached(wgslSource string) (*Module, error) {
	key := sha256.Sum256([]byte(wgslSource))
	return compiled.GetOrCreate(key, func() (*Module, error) {
		return Compile(wgslSource)
	})
}

// CacheStats reports the compile cache counters.
func CacheStats() cache.Stats {
	return compiled.Stats()
}

// Words converts SPIR-V bytes to uint32 words.
// SPIR-V is little-endian 32-bit words.
func Words(spirvBytes []byte) ([]uint32, error) {
	if len(spirvBytes)%4 != 0 {
		return nil, fmt.Errorf("%w: length %d is not a multiple of 4", ErrInvalidSPIRV, len(spirvBytes))
	}
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return words, nil
}

// EntryPoint returns the entry point with the given name.
func (m *Module) EntryPoint(name string) (EntryPoint, bool) {
	for _, ep := range m.EntryPoints {
		if ep.Name == name {
			return ep, true
		}
	}
	return EntryPoint{}, false
}

// ComputeEntryPoint returns the compute entry point with the given name,
// or an error wrapping ErrEntryPointNotFound.
func (m *Module) ComputeEntryPoint(name string) (EntryPoint, error) {
	ep, ok := m.EntryPoint(name)
	if !ok {
		return EntryPoint{}, fmt.Errorf("%w: %q (module defines %v)", ErrEntryPointNotFound, name, m.entryPointNames())
	}
	if ep.Model != ExecutionModelGLCompute {
		return EntryPoint{}, fmt.Errorf("%w: %q is a %s entry point", ErrEntryPointNotFound, name, ep.Model)
	}
	return ep, nil
}

// BindingsInGroup returns the bindings of one group ordered by index.
func (m *Module) BindingsInGroup(group uint32) []Binding {
	var out []Binding
	for _, b := range m.Bindings {
		if b.Group == group {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Binding < out[j].Binding })
	return out
}

func (m *Module) entryPointNames() []string {
	names := make([]string, len(m.EntryPoints))
	for i, ep := range m.EntryPoints {
		names[i] = ep.Name
	}
	return names
}
