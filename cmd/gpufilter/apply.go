package main

import (
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/gogpu/gpufilter/filter"
	"github.com/gogpu/gpufilter/kernels"
	"github.com/gogpu/gpufilter/transfer"
)

var (
	inPath    string
	outPath   string
	steps     []string
	kernelDir string
	channels  int
	tile      uint32
	resizeW   int
	resizeH   int
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Run a chain of filters over an image",
	Long: `Decodes the input image (PNG, JPEG, GIF, BMP, TIFF or WebP), runs every
--filter in order on the device and encodes the result by the output
extension (.png, .jpg, .bmp, .tif).`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringVar(&inPath, "in", "", "Input image path (required)")
	applyCmd.Flags().StringVar(&outPath, "out", "out.png", "Output image path")
	applyCmd.Flags().StringArrayVarP(&steps, "filter", "f", nil, "Filter to apply, name[:arg]; repeatable")
	applyCmd.Flags().StringVar(&kernelDir, "kernels", "", "Directory of .wgsl or .wgsl.zst kernels (default: embedded)")
	applyCmd.Flags().IntVar(&channels, "channels", 4, "Channels kept on the device: 1, 3 or 4")
	applyCmd.Flags().Uint32Var(&tile, "tile", 0, "Work-group size (default: the kernel's)")
	applyCmd.Flags().IntVar(&resizeW, "width", 0, "Resample the input to this width")
	applyCmd.Flags().IntVar(&resizeH, "height", 0, "Resample the input to this height")

	applyCmd.MarkFlagRequired("in")
	applyCmd.MarkFlagRequired("filter")
	rootCmd.AddCommand(applyCmd)
}

func runApply(cmd *cobra.Command, args []string) error {
	parsed := make([]step, 0, len(steps))
	for _, s := range steps {
		st, err := parseStep(s)
		if err != nil {
			return err
		}
		parsed = append(parsed, st)
	}

	img, err := decodeFile(inPath)
	if err != nil {
		return err
	}

	dev, err := openDevice()
	if err != nil {
		return err
	}
	defer dev.Close()
	logger.Info("device opened", "name", dev.Capabilities().Name)

	topts := []transfer.Option{transfer.WithChannels(channels)}
	if resizeW > 0 || resizeH > 0 {
		topts = append(topts, transfer.WithSize(resizeW, resizeH))
	}
	tm, err := transfer.New(dev, topts...)
	if err != nil {
		return err
	}
	defer tm.Close()
	if err := tm.Upload(img); err != nil {
		return err
	}

	var fopts []filter.Option
	if tile > 0 {
		fopts = append(fopts, filter.WithTile(tile, tile))
	}
	chain, err := buildChain(env{dev: dev, target: tm, source: kernelSource, opts: fopts}, parsed)
	if err != nil {
		return err
	}
	defer chain.Release()

	start := time.Now()
	if err := chain.Run(dev.Queue()); err != nil {
		return err
	}
	logger.Info("filters applied", "steps", len(parsed), "elapsed", time.Since(start))

	out, err := tm.Download()
	if err != nil {
		return err
	}
	if err := encodeFile(outPath, out); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%dx%d)\n", outPath, tm.Width(), tm.Height())
	return nil
}

func kernelSource(entryPoint string) (filter.Program, error) {
	src, err := kernels.Resolve(kernelDir, entryPoint)
	if err != nil {
		return filter.Program{}, err
	}
	return filter.WGSL(src), nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()
	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	logger.Debug("input decoded", "format", format, "bounds", img.Bounds().String())
	return img, nil
}

func encodeFile(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	if err := encode(f, filepath.Ext(path), img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func encode(w io.Writer, ext string, img image.Image) error {
	switch strings.ToLower(ext) {
	case ".png":
		return png.Encode(w, img)
	case ".jpg", ".jpeg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 92})
	case ".bmp":
		return bmp.Encode(w, img)
	case ".tif", ".tiff":
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return fmt.Errorf("unsupported output format %q", ext)
	}
}
