package kernels

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// CompressedExt marks kernel source files stored zstd-compressed.
const CompressedExt = ".zst"

var (
	decoderOnce sync.Once
	decoder     *zstd.Decoder
	decoderErr  error
)

func sharedDecoder() (*zstd.Decoder, error) {
	decoderOnce.Do(func() {
		decoder, decoderErr = zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderLowmem(true),
		)
	})
	return decoder, decoderErr
}

// Load reads kernel source text from path. Files ending in ".zst" are
// decompressed with zstd, so "lowpass.wgsl.zst" yields the same text as
// "lowpass.wgsl".
func Load(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("kernels: %w", err)
	}
	if !strings.HasSuffix(path, CompressedExt) {
		return string(data), nil
	}
	text, err := Decompress(data)
	if err != nil {
		return "", fmt.Errorf("kernels: %s: %w", filepath.Base(path), err)
	}
	return text, nil
}

// Decompress decodes a zstd-compressed kernel source.
func Decompress(data []byte) (string, error) {
	dec, err := sharedDecoder()
	if err != nil {
		return "", err
	}
	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Compress encodes kernel source text with zstd, for packaging kernel
// libraries next to an application.
func Compress(source string) ([]byte, error) {
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderConcurrency(1),
		zstd.WithEncoderLevel(zstd.SpeedBetterCompression),
	)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll([]byte(source), nil), nil
}

// Resolve returns the source that defines entryPoint. If dir is empty the
// embedded kernels are used; otherwise dir is searched for
// "<entryPoint>.wgsl" and then "<entryPoint>.wgsl.zst".
func Resolve(dir, entryPoint string) (string, error) {
	if dir == "" {
		return Source(entryPoint)
	}
	base := filepath.Join(dir, entryPoint+".wgsl")
	for _, candidate := range []string{base, base + CompressedExt} {
		if _, err := os.Stat(candidate); err == nil {
			return Load(candidate)
		}
	}
	return "", fmt.Errorf("kernels: no %s.wgsl or %s.wgsl%s in %s", entryPoint, entryPoint, CompressedExt, dir)
}
