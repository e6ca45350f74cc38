package soft

import (
	"bytes"
	"errors"
	"testing"

	"github.com/gogpu/gpufilter/gpucore"
	"github.com/gogpu/gpufilter/internal/shader"
)

func TestBufferWriteRead(t *testing.T) {
	d := New()
	defer d.Close()

	id, err := d.CreateBuffer(16, gpucore.BufferUsageStorage|gpucore.BufferUsageCopyDst|gpucore.BufferUsageCopySrc, "buf")
	if err != nil {
		t.Fatalf("CreateBuffer() error = %v", err)
	}
	want := []byte{1, 2, 3, 4}
	if err := d.WriteBuffer(id, 4, want); err != nil {
		t.Fatalf("WriteBuffer() error = %v", err)
	}
	got, err := d.ReadBuffer(id, 4, 4)
	if err != nil {
		t.Fatalf("ReadBuffer() error = %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("ReadBuffer() = %v, want %v", got, want)
	}

	info, ok := d.BufferInfo(id)
	if !ok || info.Size != 16 || info.Label != "buf" {
		t.Errorf("BufferInfo() = %+v, %v", info, ok)
	}
}

func TestBufferErrors(t *testing.T) {
	d := New()
	defer d.Close()

	storageOnly, err := d.CreateBuffer(8, gpucore.BufferUsageStorage, "storage")
	if err != nil {
		t.Fatal(err)
	}
	rw, err := d.CreateBuffer(8, gpucore.BufferUsageCopySrc|gpucore.BufferUsageCopyDst, "rw")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"write without CopyDst", d.WriteBuffer(storageOnly, 0, []byte{1}), ErrValidation},
		{"write past end", d.WriteBuffer(rw, 6, []byte{1, 2, 3}), gpucore.ErrOutOfRange},
		{"write unknown", d.WriteBuffer(999, 0, []byte{1}), gpucore.ErrResourceNotFound},
		{"read without CopySrc", func() error { _, err := d.ReadBuffer(storageOnly, 0, 4); return err }(), ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.want) {
				t.Errorf("error = %v, want %v", tt.err, tt.want)
			}
		})
	}

	if _, err := d.CreateBuffer(0, gpucore.BufferUsageStorage, "empty"); !errors.Is(err, ErrValidation) {
		t.Errorf("CreateBuffer(0) error = %v, want ErrValidation", err)
	}
	if _, err := d.CreateBuffer(4, 0, "no usage"); !errors.Is(err, ErrValidation) {
		t.Errorf("CreateBuffer(no usage) error = %v, want ErrValidation", err)
	}
}

func TestFailNext(t *testing.T) {
	d := New()
	defer d.Close()

	d.FailNext(OpCreateBuffer, 2)
	for i := 0; i < 2; i++ {
		if _, err := d.CreateBuffer(4, gpucore.BufferUsageStorage, "x"); !errors.Is(err, ErrInjected) {
			t.Fatalf("call %d: error = %v, want ErrInjected", i, err)
		}
	}
	if _, err := d.CreateBuffer(4, gpucore.BufferUsageStorage, "x"); err != nil {
		t.Fatalf("third call error = %v", err)
	}

	d.FailNext(OpSubmit, 1)
	d.FailNext(OpSubmit, 0)
	if err := d.Queue().Submit(); err != nil {
		t.Errorf("Submit() after clearing failures = %v", err)
	}
	if got := OpCreateBindGroup.String(); got != "CreateBindGroup" {
		t.Errorf("OpCreateBindGroup.String() = %q", got)
	}
}

func TestLiveCountsAndClose(t *testing.T) {
	d := New()

	if got := d.Live().Total(); got != 0 {
		t.Fatalf("new device has %d live resources", got)
	}
	buf, _ := d.CreateBuffer(4, gpucore.BufferUsageStorage, "a")
	mod, err := d.CreateShaderModule(shader.Assemble(&shader.Module{
		EntryPoints: []shader.EntryPoint{{Name: "main", Model: shader.ExecutionModelGLCompute, LocalSize: [3]uint32{1, 1, 1}}},
	}), "m")
	if err != nil {
		t.Fatalf("CreateShaderModule() error = %v", err)
	}
	if got := d.Live(); got.Buffers != 1 || got.ShaderModules != 1 {
		t.Errorf("Live() = %+v, want 1 buffer and 1 module", got)
	}

	d.DestroyBuffer(buf)
	d.DestroyBuffer(buf) // no-op
	d.DestroyShaderModule(mod)
	if got := d.Live().Total(); got != 0 {
		t.Errorf("Live().Total() = %d after destroy, want 0", got)
	}

	d.Close()
	if _, err := d.CreateBuffer(4, gpucore.BufferUsageStorage, "late"); !errors.Is(err, gpucore.ErrAdapterClosed) {
		t.Errorf("CreateBuffer after Close error = %v, want ErrAdapterClosed", err)
	}
	if err := d.Queue().WaitIdle(); !errors.Is(err, gpucore.ErrAdapterClosed) {
		t.Errorf("WaitIdle after Close error = %v, want ErrAdapterClosed", err)
	}
}

func TestCreateShaderModuleRejectsGarbage(t *testing.T) {
	d := New()
	defer d.Close()
	if _, err := d.CreateShaderModule([]uint32{1, 2, 3}, "bad"); !errors.Is(err, shader.ErrInvalidSPIRV) {
		t.Errorf("CreateShaderModule(garbage) error = %v, want ErrInvalidSPIRV", err)
	}
}

func TestCreateBindGroupLayoutDuplicate(t *testing.T) {
	d := New()
	defer d.Close()
	_, err := d.CreateBindGroupLayout(&gpucore.BindGroupLayoutDesc{
		Entries: []gpucore.BindGroupLayoutEntry{
			{Binding: 0, Type: gpucore.BindingTypeStorageBuffer},
			{Binding: 0, Type: gpucore.BindingTypeUniformBuffer},
		},
	})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("duplicate binding error = %v, want ErrValidation", err)
	}
}
