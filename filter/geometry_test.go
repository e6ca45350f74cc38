package filter_test

import (
	"errors"
	"testing"

	"github.com/gogpu/gpufilter/filter"
)

func TestRoundUp(t *testing.T) {
	tests := []struct {
		extent, local, want uint32
	}{
		{1000, 16, 1008},
		{1024, 16, 1024},
		{1, 16, 16},
		{17, 16, 32},
		{7, 1, 7},
		{5, 0, 5},
	}
	for _, tt := range tests {
		got := filter.RoundUp(tt.extent, tt.local)
		if got != tt.want {
			t.Errorf("RoundUp(%d, %d) = %d, want %d", tt.extent, tt.local, got, tt.want)
		}
		if tt.local > 0 && (got%tt.local != 0 || got < tt.extent) {
			t.Errorf("RoundUp(%d, %d) = %d is not a covering multiple", tt.extent, tt.local, got)
		}
	}
}

func TestComputeGeometry(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		channels      int
		local         [2]uint32
		radius        uint32
		want          filter.Geometry
		scratch       uint64
	}{
		{
			name: "1000x600 rgba", width: 1000, height: 600, channels: 4,
			local: [2]uint32{16, 16}, radius: 1,
			want: filter.Geometry{
				Local: [2]uint32{16, 16}, Global: [2]uint32{1008, 608}, Groups: [2]uint32{63, 38},
				Radius: 1, Pitch: 18, ScratchPerGroup: 18 * 18 * 4,
			},
			scratch: 18 * 18 * 4 * 63 * 38,
		},
		{
			name: "gray rounds slab up", width: 5, height: 5, channels: 1,
			local: [2]uint32{3, 3}, radius: 0,
			want: filter.Geometry{
				Local: [2]uint32{3, 3}, Global: [2]uint32{6, 6}, Groups: [2]uint32{2, 2},
				Pitch: 3, ScratchPerGroup: 12,
			},
			scratch: 48,
		},
		{
			name: "rectangular tile", width: 33, height: 8, channels: 3,
			local: [2]uint32{32, 4}, radius: 2,
			want: filter.Geometry{
				Local: [2]uint32{32, 4}, Global: [2]uint32{64, 8}, Groups: [2]uint32{2, 2},
				Radius: 2, Pitch: 36, ScratchPerGroup: 36 * 8 * 3,
			},
			scratch: 36 * 8 * 3 * 4,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := filter.ComputeGeometry(tt.width, tt.height, tt.channels, tt.local, tt.radius)
			if err != nil {
				t.Fatal(err)
			}
			if g != tt.want {
				t.Errorf("ComputeGeometry() = %+v, want %+v", g, tt.want)
			}
			if got := g.ScratchSize(); got != tt.scratch {
				t.Errorf("ScratchSize() = %d, want %d", got, tt.scratch)
			}
		})
	}
}

func TestComputeGeometryErrors(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		channels      int
		local         [2]uint32
	}{
		{"empty", 0, 4, 1, [2]uint32{16, 16}},
		{"negative", 4, -1, 1, [2]uint32{16, 16}},
		{"no tile", 4, 4, 1, [2]uint32{0, 16}},
		{"channels", 4, 4, 5, [2]uint32{16, 16}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := filter.ComputeGeometry(tt.width, tt.height, tt.channels, tt.local, 1)
			if !errors.Is(err, filter.ErrInvalidConfig) {
				t.Errorf("error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}
