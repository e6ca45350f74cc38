// Package transfer owns the device-resident image a filter pipeline works
// on. A Manager uploads an image.Image into a pair of storage buffers,
// hands them to filters as (source, destination) and flips them after
// each successful dispatch, so chained filters read their predecessor's
// output. Download converts the current source buffer back to an image.
//
// Pixels are stored one per u32 word, channel c in bits 8c..8c+7.
package transfer

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"

	"golang.org/x/image/draw"

	"github.com/gogpu/gpufilter"
	"github.com/gogpu/gpufilter/gpucore"
)

// Errors returned by Manager.
var (
	ErrClosed   = errors.New("transfer: manager closed")
	ErrNoImage  = errors.New("transfer: no image uploaded")
	ErrChannels = errors.New("transfer: channel count must be 1, 3 or 4")
	ErrSize     = errors.New("transfer: invalid image size")
)

// bufferUsage lets filters bind the image and the manager copy it in and out.
const bufferUsage = gpucore.BufferUsageStorage | gpucore.BufferUsageCopyDst | gpucore.BufferUsageCopySrc

type config struct {
	channels      int
	width, height int
	interpolator  draw.Interpolator
}

// Option configures a Manager.
type Option func(*config)

// WithChannels sets how many channels each pixel carries. 1 stores
// luminance, 3 RGB, 4 RGBA. Default: 4.
func WithChannels(n int) Option {
	return func(c *config) { c.channels = n }
}

// WithSize fixes the device image size. Uploaded images of another size
// are resampled. Default: the size of each uploaded image.
func WithSize(width, height int) Option {
	return func(c *config) { c.width, c.height = width, height }
}

// WithInterpolator sets the resampler used by WithSize.
// Default: draw.CatmullRom.
func WithInterpolator(i draw.Interpolator) Option {
	return func(c *config) { c.interpolator = i }
}

// Manager holds the device image buffers of one device.
//
// A Manager is safe for concurrent use, but filters dispatched against it
// from different goroutines race on the image contents.
type Manager struct {
	mu  sync.Mutex
	dev gpucore.GPUAdapter
	cfg config

	width, height int
	buffers       [2]gpucore.BufferID
	front         int
	closed        bool
}

// New creates a Manager on dev. With WithSize the image buffers are
// allocated immediately; otherwise on the first upload.
func New(dev gpucore.GPUAdapter, opts ...Option) (*Manager, error) {
	if dev == nil {
		return nil, errors.New("transfer: nil device")
	}
	cfg := config{channels: 4, interpolator: draw.CatmullRom}
	for _, opt := range opts {
		opt(&cfg)
	}
	switch cfg.channels {
	case 1, 3, 4:
	default:
		return nil, fmt.Errorf("%w: %d", ErrChannels, cfg.channels)
	}
	if cfg.width < 0 || cfg.height < 0 || (cfg.width == 0) != (cfg.height == 0) {
		return nil, fmt.Errorf("%w: %dx%d", ErrSize, cfg.width, cfg.height)
	}

	m := &Manager{dev: dev, cfg: cfg}
	if cfg.width > 0 {
		if err := m.allocate(cfg.width, cfg.height); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// allocate (re)creates both image buffers. Callers hold m.mu.
func (m *Manager) allocate(width, height int) error {
	if width == m.width && height == m.height && m.buffers[0] != gpucore.InvalidID {
		return nil
	}
	m.release()

	size := width * height * 4
	for i := range m.buffers {
		id, err := m.dev.CreateBuffer(size, bufferUsage, fmt.Sprintf("transfer-image-%d", i))
		if err != nil {
			m.release()
			return fmt.Errorf("transfer: allocate %dx%d image: %w", width, height, err)
		}
		m.buffers[i] = id
	}
	m.width, m.height, m.front = width, height, 0
	gpufilter.Logger().Debug("transfer: image buffers allocated", "width", width, "height", height, "bytes", size)
	return nil
}

// release destroys the image buffers. Callers hold m.mu.
func (m *Manager) release() {
	for i, id := range m.buffers {
		if id != gpucore.InvalidID {
			m.dev.DestroyBuffer(id)
			m.buffers[i] = gpucore.InvalidID
		}
	}
	m.width, m.height = 0, 0
}

// Upload converts img to the configured channel count, resampling it
// when WithSize fixed a different size, and writes it to the source
// buffer.
func (m *Manager) Upload(img image.Image) error {
	if img == nil {
		return fmt.Errorf("%w: nil image", ErrSize)
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return fmt.Errorf("%w: %dx%d", ErrSize, w, h)
	}
	if m.cfg.width > 0 {
		w, h = m.cfg.width, m.cfg.height
	}

	rgba := image.NewNRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	} else {
		m.cfg.interpolator.Scale(rgba, rgba.Bounds(), img, b, draw.Src, nil)
	}
	return m.UploadPixels(w, h, Pack(rgba, m.cfg.channels))
}

// UploadPixels writes packed pixel words (see Pack) as a width x height
// image.
func (m *Manager) UploadPixels(width, height int, pixels []uint32) error {
	if width <= 0 || height <= 0 || len(pixels) != width*height {
		return fmt.Errorf("%w: %dx%d with %d pixels", ErrSize, width, height, len(pixels))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.cfg.width > 0 && (width != m.cfg.width || height != m.cfg.height) {
		return fmt.Errorf("%w: %dx%d, manager is fixed at %dx%d", ErrSize, width, height, m.cfg.width, m.cfg.height)
	}
	if err := m.allocate(width, height); err != nil {
		return err
	}
	m.front = 0
	if err := m.dev.WriteBuffer(m.buffers[0], 0, wordsToBytes(pixels)); err != nil {
		return fmt.Errorf("transfer: upload: %w", err)
	}
	return nil
}

// Download waits for submitted work and returns the current image: an
// *image.Gray for one channel, otherwise an *image.NRGBA.
func (m *Manager) Download() (image.Image, error) {
	pixels, err := m.Pixels()
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	w, h := m.width, m.height
	m.mu.Unlock()
	return Unpack(pixels, w, h, m.cfg.channels), nil
}

// Pixels waits for submitted work and returns the packed pixel words of
// the current image.
func (m *Manager) Pixels() ([]uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if m.buffers[0] == gpucore.InvalidID {
		return nil, ErrNoImage
	}
	data, err := m.dev.ReadBuffer(m.buffers[m.front], 0, uint64(m.width*m.height*4))
	if err != nil {
		return nil, fmt.Errorf("transfer: download: %w", err)
	}
	return bytesToWords(data), nil
}

// Device returns the device the image lives on.
func (m *Manager) Device() gpucore.GPUAdapter { return m.dev }

// Queue returns the device queue.
func (m *Manager) Queue() gpucore.Queue { return m.dev.Queue() }

// Width returns the image width in pixels, 0 before the first upload.
func (m *Manager) Width() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.width
}

// Height returns the image height in pixels, 0 before the first upload.
func (m *Manager) Height() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.height
}

// Channels returns the configured channel count.
func (m *Manager) Channels() int { return m.cfg.channels }

// ImageBuffers returns the buffer holding the current image and the
// buffer the next filter writes to. Both are gpucore.InvalidID before the
// first upload or after Close.
func (m *Manager) ImageBuffers() (src, dst gpucore.BufferID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buffers[m.front], m.buffers[1-m.front]
}

// Commit makes the destination buffer the current image. Filters call it
// after a successful submit.
func (m *Manager) Commit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.front = 1 - m.front
}

// Sync blocks until all work submitted on the device queue has finished.
func (m *Manager) Sync() error {
	return m.dev.Queue().WaitIdle()
}

// Close releases the image buffers. It is safe to call more than once.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.release()
}

// Pack converts img to pixel words with the given channel count. One
// channel stores luminance; three drop alpha.
func Pack(img image.Image, channels int) []uint32 {
	b := img.Bounds()
	out := make([]uint32, 0, b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.At(x, y)
			if channels == 1 {
				out = append(out, uint32(color.GrayModel.Convert(c).(color.Gray).Y))
				continue
			}
			n := color.NRGBAModel.Convert(c).(color.NRGBA)
			word := uint32(n.R) | uint32(n.G)<<8 | uint32(n.B)<<16
			if channels == 4 {
				word |= uint32(n.A) << 24
			}
			out = append(out, word)
		}
	}
	return out
}

// Unpack is the inverse of Pack.
func Unpack(pixels []uint32, width, height, channels int) image.Image {
	if channels == 1 {
		img := image.NewGray(image.Rect(0, 0, width, height))
		for i, p := range pixels {
			img.Pix[i] = uint8(p)
		}
		return img
	}
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i, p := range pixels {
		a := uint8(p >> 24)
		if channels == 3 {
			a = 0xff
		}
		img.Pix[i*4+0] = uint8(p)
		img.Pix[i*4+1] = uint8(p >> 8)
		img.Pix[i*4+2] = uint8(p >> 16)
		img.Pix[i*4+3] = a
	}
	return img
}

func wordsToBytes(words []uint32) []byte {
	out := make([]byte, len(words)*4)
	for i, w := range words {
		out[i*4] = byte(w)
		out[i*4+1] = byte(w >> 8)
		out[i*4+2] = byte(w >> 16)
		out[i*4+3] = byte(w >> 24)
	}
	return out
}

func bytesToWords(b []byte) []uint32 {
	out := make([]uint32, len(b)/4)
	for i := range out {
		out[i] = uint32(b[i*4]) | uint32(b[i*4+1])<<8 | uint32(b[i*4+2])<<16 | uint32(b[i*4+3])<<24
	}
	return out
}
