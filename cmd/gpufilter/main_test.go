package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/gogpu/gpufilter/backend/soft"
	"github.com/gogpu/gpufilter/filter"
	"github.com/gogpu/gpufilter/internal/shader"
	"github.com/gogpu/gpufilter/kernels"
	"github.com/gogpu/gpufilter/transfer"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestParseStep(t *testing.T) {
	tests := []struct {
		in      string
		want    step
		wantErr bool
	}{
		{"sobel", step{name: "sobel"}, false},
		{"Gaussian:1.5", step{name: "gaussian", arg: 1.5, hasArg: true}, false},
		{" median:2 ", step{name: "median", arg: 2, hasArg: true}, false},
		{"blur", step{}, true},
		{"box:wide", step{}, true},
		{"gaussian:nan", step{}, true},
		{"box:inf", step{}, true},
		{"box:8", step{name: "box", arg: 8, hasArg: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseStep(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseStep(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("parseStep(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestRecipeEntryPoints(t *testing.T) {
	known := make(map[string]bool)
	for _, e := range kernels.EntryPoints() {
		known[e] = true
	}
	for _, name := range recipeNames() {
		if r := recipes[name]; r.entry != "" && !known[r.entry] {
			t.Errorf("recipe %s uses unknown entry point %q", name, r.entry)
		}
	}
}

// interfaceSource describes the shipped kernels as bare SPIR-V interfaces
// so chains build without compiling WGSL.
func interfaceSource(entryPoint string) (filter.Program, error) {
	counts := map[string]int{
		kernels.Lowpass: 6, kernels.Highpass: 7,
		kernels.Median: 5, kernels.Minimum: 5, kernels.Maximum: 5,
		kernels.Erode: 6, kernels.Dilate: 6, kernels.ColorMatrix: 3,
	}
	mod := &shader.Module{EntryPoints: []shader.EntryPoint{{
		Name: entryPoint, Model: shader.ExecutionModelGLCompute, LocalSize: [3]uint32{8, 8, 1},
	}}}
	for i := 0; i < counts[entryPoint]; i++ {
		mod.Bindings = append(mod.Bindings, shader.Binding{Binding: uint32(i)})
	}
	return filter.SPIRV(shader.Assemble(mod)), nil
}

func TestBuildChainRunsEveryRecipe(t *testing.T) {
	dev := soft.New()
	defer dev.Close()
	tm, err := transfer.New(dev)
	if err != nil {
		t.Fatal(err)
	}
	defer tm.Close()

	img := image.NewNRGBA(image.Rect(0, 0, 12, 9))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 7)
	}
	if err := tm.Upload(img); err != nil {
		t.Fatal(err)
	}

	e := env{dev: dev, target: tm, source: interfaceSource}
	for _, name := range recipeNames() {
		t.Run(name, func(t *testing.T) {
			chain, err := buildChain(e, []step{{name: name}})
			if err != nil {
				t.Fatal(err)
			}
			defer chain.Release()
			err = chain.Run(dev.Queue())
			if recipes[name].entry == "" {
				if !errors.Is(err, filter.ErrUnimplemented) {
					t.Fatalf("Run() = %v, want ErrUnimplemented", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestBuildChainReleasesOnError(t *testing.T) {
	dev := soft.New()
	defer dev.Close()
	tm, err := transfer.New(dev, transfer.WithSize(4, 4))
	if err != nil {
		t.Fatal(err)
	}
	defer tm.Close()
	base := dev.Live()

	e := env{dev: dev, target: tm, source: interfaceSource}
	_, err = buildChain(e, []step{{name: "box"}, {name: "median", arg: 9, hasArg: true}})
	if !errors.Is(err, filter.ErrInvalidConfig) {
		t.Fatalf("buildChain() = %v, want ErrInvalidConfig", err)
	}
	if got := dev.Live(); got != base {
		t.Errorf("live resources = %+v, want %+v", got, base)
	}
}

func TestEncode(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 3, 2))
	img.Set(1, 1, color.Gray{Y: 200})
	for _, ext := range []string{".png", ".JPG", ".bmp", ".tiff"} {
		var buf bytes.Buffer
		if err := encode(&buf, ext, img); err != nil {
			t.Fatalf("encode(%s) error = %v", ext, err)
		}
		if _, _, err := image.Decode(&buf); err != nil {
			t.Errorf("decode(%s) error = %v", ext, err)
		}
	}
	if err := encode(&bytes.Buffer{}, ".xyz", img); err == nil {
		t.Error("encode(.xyz) succeeded")
	}
}

func TestGeometryCommand(t *testing.T) {
	out, err := execute(t, "geometry", "--width", "1000", "--height", "600", "--tile", "16", "--radius", "1", "--channels", "4", "--json")
	if err != nil {
		t.Fatal(err)
	}
	var got struct {
		Global      [2]uint32
		Groups      [2]uint32
		ScratchSize uint64
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output %q: %v", out, err)
	}
	if got.Global != [2]uint32{1008, 608} || got.Groups != [2]uint32{63, 38} {
		t.Errorf("geometry = %+v", got)
	}
	if got.ScratchSize != 18*18*4*63*38 {
		t.Errorf("scratch = %d", got.ScratchSize)
	}
}

func TestListCommand(t *testing.T) {
	out, err := execute(t, "list")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"soft", kernels.ColorMatrix, "gaussian", "tophat"} {
		if !strings.Contains(out, want) {
			t.Errorf("list output lacks %q:\n%s", want, out)
		}
	}
}
