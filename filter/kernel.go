package filter

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpufilter"
	"github.com/gogpu/gpufilter/gpucore"
	"github.com/gogpu/gpufilter/internal/shader"
)

// Program is kernel source: WGSL text, or SPIR-V words when the caller
// compiled ahead of time. SPIRV takes precedence when both are set.
type Program struct {
	WGSL  string
	SPIRV []uint32
}

// WGSL returns a Program compiled from WGSL source at construction.
func WGSL(src string) Program { return Program{WGSL: src} }

// SPIRV returns a Program from precompiled SPIR-V words.
func SPIRV(words []uint32) Program { return Program{SPIRV: words} }

func (p Program) module() (*shader.Module, error) {
	if p.SPIRV != nil {
		return shader.Reflect(p.SPIRV)
	}
	if p.WGSL == "" {
		return nil, errors.New("empty kernel source")
	}
	return shader.CompileCached(p.WGSL)
}

// Kernel is a compiled compute entry point together with the device
// objects needed to launch it.
type Kernel struct {
	dev        gpucore.GPUAdapter
	entryPoint string
	local      [2]uint32

	module   gpucore.ShaderModuleID
	group    gpucore.BindGroupLayoutID
	layout   gpucore.PipelineLayoutID
	pipeline gpucore.ComputePipelineID
}

// CompileKernel compiles prog for dev and checks the entry point against
// the family layout. tile is the required work-group size; zero takes the
// size the kernel declares. Errors wrap ErrCompile.
func CompileKernel(dev gpucore.GPUAdapter, prog Program, entryPoint string, layout Layout, tile [2]uint32, label string) (*Kernel, error) {
	mod, err := prog.module()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompile, err)
	}
	ep, err := mod.ComputeEntryPoint(entryPoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompile, err)
	}
	local, err := localSize(ep, tile, dev.Capabilities())
	if err != nil {
		return nil, err
	}
	if err := checkBindings(mod, layout); err != nil {
		return nil, err
	}

	k := &Kernel{dev: dev, entryPoint: entryPoint, local: local}
	if err := k.create(mod.Words, layout, label); err != nil {
		k.Release()
		return nil, fmt.Errorf("%w: %s: %w", ErrCompile, entryPoint, err)
	}
	gpufilter.Logger().Debug("filter: kernel compiled",
		"entry", entryPoint, "local", local, "bindings", layout.String())
	return k, nil
}

func localSize(ep shader.EntryPoint, tile [2]uint32, caps gpucore.AdapterCapabilities) ([2]uint32, error) {
	declared := [2]uint32{ep.LocalSize[0], ep.LocalSize[1]}
	local := tile
	switch {
	case tile == [2]uint32{} && declared == [2]uint32{}:
		return local, fmt.Errorf("%w: %s declares no @workgroup_size and no tile was configured", ErrCompile, ep.Name)
	case tile == [2]uint32{}:
		local = declared
	case declared != [2]uint32{} && declared != tile:
		return local, fmt.Errorf("%w: %s has @workgroup_size(%d, %d), tile is %dx%d",
			ErrCompile, ep.Name, declared[0], declared[1], tile[0], tile[1])
	}
	if ep.LocalSize[2] > 1 {
		return local, fmt.Errorf("%w: %s has a %d-deep work-group", ErrCompile, ep.Name, ep.LocalSize[2])
	}
	if local[0] > caps.MaxWorkgroupSizeX || local[1] > caps.MaxWorkgroupSizeY ||
		local[0]*local[1] > caps.MaxWorkgroupInvocations {
		return local, fmt.Errorf("%w: work-group %dx%d exceeds device limits", ErrCompile, local[0], local[1])
	}
	return local, nil
}

// checkBindings requires the kernel's group-0 bindings to be exactly the
// family layout. Reflected binding types must match the argument types;
// bindings whose type was not reflected are checked by index only.
func checkBindings(mod *shader.Module, layout Layout) error {
	declared := make(map[uint32]bool, len(mod.Bindings))
	for _, b := range mod.Bindings {
		if b.Group != 0 {
			return fmt.Errorf("%w: binding %s uses group %d, only group 0 is bound", ErrCompile, bindingName(b), b.Group)
		}
		arg, ok := layout.Find(b.Binding)
		if !ok {
			return fmt.Errorf("%w: binding %s is not an argument of %s", ErrCompile, bindingName(b), layout)
		}
		if b.Type != 0 && b.Type != arg.Type {
			return fmt.Errorf("%w: binding %s is %s, argument %s of %s is %s",
				ErrCompile, bindingName(b), b.Type, arg.Name, layout, arg.Type)
		}
		declared[b.Binding] = true
	}
	for _, a := range layout {
		if !declared[a.Binding] {
			return fmt.Errorf("%w: kernel does not declare binding %d (%s) of %s", ErrCompile, a.Binding, a.Name, layout)
		}
	}
	return nil
}

func bindingName(b shader.Binding) string {
	if b.Name == "" {
		return fmt.Sprintf("%d", b.Binding)
	}
	return fmt.Sprintf("%d (%s)", b.Binding, b.Name)
}

func (k *Kernel) create(words []uint32, layout Layout, label string) error {
	var err error
	if k.module, err = k.dev.CreateShaderModule(words, label); err != nil {
		return err
	}
	if k.group, err = k.dev.CreateBindGroupLayout(&gpucore.BindGroupLayoutDesc{
		Label:   label,
		Entries: layout.entries(),
	}); err != nil {
		return err
	}
	if k.layout, err = k.dev.CreatePipelineLayout([]gpucore.BindGroupLayoutID{k.group}); err != nil {
		return err
	}
	k.pipeline, err = k.dev.CreateComputePipeline(&gpucore.ComputePipelineDesc{
		Label:        label,
		Layout:       k.layout,
		ShaderModule: k.module,
		EntryPoint:   k.entryPoint,
	})
	return err
}

// EntryPoint returns the compute entry point name.
func (k *Kernel) EntryPoint() string {
	if k == nil {
		return ""
	}
	return k.entryPoint
}

// LocalSize returns the work-group size.
func (k *Kernel) LocalSize() [2]uint32 {
	if k == nil {
		return [2]uint32{}
	}
	return k.local
}

// Release destroys the kernel's device objects. Safe to call more than once.
func (k *Kernel) Release() {
	if k.pipeline != gpucore.InvalidID {
		k.dev.DestroyComputePipeline(k.pipeline)
		k.pipeline = gpucore.InvalidID
	}
	if k.layout != gpucore.InvalidID {
		k.dev.DestroyPipelineLayout(k.layout)
		k.layout = gpucore.InvalidID
	}
	if k.group != gpucore.InvalidID {
		k.dev.DestroyBindGroupLayout(k.group)
		k.group = gpucore.InvalidID
	}
	if k.module != gpucore.InvalidID {
		k.dev.DestroyShaderModule(k.module)
		k.module = gpucore.InvalidID
	}
}
