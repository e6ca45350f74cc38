package shader

import (
	"errors"
	"strings"
	"testing"
)

const testKernel = `
struct Params {
    width: u32,
    height: u32,
}

@group(0) @binding(0) var<storage, read> src: array<u32>;
@group(0) @binding(1) var<uniform> params: Params;
@group(0) @binding(2) var<storage, read_write> dst: array<u32>;

@compute @workgroup_size(8, 8, 1)
fn copy_kernel(@builtin(global_invocation_id) id: vec3<u32>) {
    if (id.x >= params.width || id.y >= params.height) {
        return;
    }
    let i = id.y * params.width + id.x;
    dst[i] = src[i];
}
`

func TestCompileReflectsKernel(t *testing.T) {
	m, err := Compile(testKernel)
	if err != nil {
		skipNagaLimitation(t, err)
		t.Fatalf("Compile() error = %v", err)
	}

	ep, err := m.ComputeEntryPoint("copy_kernel")
	if err != nil {
		t.Fatalf("ComputeEntryPoint() error = %v", err)
	}
	if ep.LocalSize != [3]uint32{8, 8, 1} {
		t.Errorf("LocalSize = %v, want [8 8 1]", ep.LocalSize)
	}

	bindings := m.BindingsInGroup(0)
	if len(bindings) != 3 {
		t.Fatalf("len(BindingsInGroup(0)) = %d, want 3", len(bindings))
	}
	for i, b := range bindings {
		if b.Binding != uint32(i) {
			t.Errorf("bindings[%d].Binding = %d, want %d", i, b.Binding, i)
		}
	}

	if _, err := m.ComputeEntryPoint("lowpass"); !errors.Is(err, ErrEntryPointNotFound) {
		t.Errorf("ComputeEntryPoint(lowpass) error = %v, want ErrEntryPointNotFound", err)
	}
}

func TestCompileCachedReusesModule(t *testing.T) {
	before := CacheStats()
	a, err := CompileCached(testKernel)
	if err != nil {
		skipNagaLimitation(t, err)
		t.Fatalf("CompileCached() error = %v", err)
	}
	b, err := CompileCached(testKernel)
	if err != nil {
		t.Fatalf("CompileCached() second call error = %v", err)
	}
	if a != b {
		t.Error("CompileCached() returned distinct modules for the same source")
	}
	if after := CacheStats(); after.Hits <= before.Hits {
		t.Errorf("cache hits = %d, want > %d", after.Hits, before.Hits)
	}

	if _, err := CompileCached("fn broken( {"); !errors.Is(err, ErrCompile) {
		t.Errorf("CompileCached(invalid) error = %v, want ErrCompile", err)
	}
}

func TestCompileRejectsInvalidSource(t *testing.T) {
	_, err := Compile("fn broken( {")
	if !errors.Is(err, ErrCompile) {
		t.Errorf("Compile() error = %v, want ErrCompile", err)
	}
}

// skipNagaLimitation skips the test when naga reports a WGSL feature it
// does not lower yet.
func skipNagaLimitation(t *testing.T, err error) {
	t.Helper()
	msg := err.Error()
	if strings.Contains(msg, "not yet implemented") || strings.Contains(msg, "not supported") {
		t.Skipf("Skipping: naga feature not yet implemented: %v", err)
	}
}
