package gpucore

import "testing"

func TestBufferUsageHas(t *testing.T) {
	u := BufferUsageStorage | BufferUsageCopyDst
	tests := []struct {
		flag BufferUsage
		want bool
	}{
		{BufferUsageStorage, true},
		{BufferUsageCopyDst, true},
		{BufferUsageStorage | BufferUsageCopyDst, true},
		{BufferUsageCopySrc, false},
		{BufferUsageStorage | BufferUsageUniform, false},
	}
	for _, tt := range tests {
		if got := u.Has(tt.flag); got != tt.want {
			t.Errorf("Has(%#x) = %v, want %v", tt.flag, got, tt.want)
		}
	}
}

func TestBindingType(t *testing.T) {
	tests := []struct {
		typ   BindingType
		name  string
		usage BufferUsage
	}{
		{BindingTypeUniformBuffer, "uniform", BufferUsageUniform},
		{BindingTypeStorageBuffer, "storage,read_write", BufferUsageStorage},
		{BindingTypeReadOnlyStorageBuffer, "storage,read", BufferUsageStorage},
		{BindingType(0), "unknown", BufferUsageStorage},
	}
	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.name {
			t.Errorf("String() = %q, want %q", got, tt.name)
		}
		if got := tt.typ.RequiredUsage(); got != tt.usage {
			t.Errorf("%s: RequiredUsage() = %#x, want %#x", tt.name, got, tt.usage)
		}
	}
}

func TestDefaultCapabilities(t *testing.T) {
	c := DefaultCapabilities()
	if !c.SupportsCompute {
		t.Error("SupportsCompute = false")
	}
	if c.MaxWorkgroupSizeX*c.MaxWorkgroupSizeY < c.MaxWorkgroupInvocations {
		t.Errorf("invocations %d exceed %dx%d", c.MaxWorkgroupInvocations, c.MaxWorkgroupSizeX, c.MaxWorkgroupSizeY)
	}
	if c.MaxStorageBufferBindingSize > c.MaxBufferSize {
		t.Errorf("binding size %d exceeds buffer size %d", c.MaxStorageBufferBindingSize, c.MaxBufferSize)
	}
	if c.MaxComputeWorkgroupsPerDimension == 0 {
		t.Error("MaxComputeWorkgroupsPerDimension = 0")
	}
}
