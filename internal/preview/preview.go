package preview

import (
	"fmt"
	"image"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"stipple/internal/fitness"
	"stipple/internal/raster"
)

// ZoomStep is the factor applied by one zoom-in or zoom-out request.
const ZoomStep = 1.1

// Zoom holds the preview display width. The UI goroutine changes it while
// the evolution loop reads it, so the value is stored atomically.
type Zoom struct {
	calcWidth float64
	bits      atomic.Uint64
}

func NewZoom(calcWidth, previewWidth int) *Zoom {
	z := &Zoom{calcWidth: float64(calcWidth)}
	z.bits.Store(math.Float64bits(float64(previewWidth)))
	return z
}

func (z *Zoom) Width() float64 {
	return math.Float64frombits(z.bits.Load())
}

// Scale is the factor from calculation pixels to preview pixels.
func (z *Zoom) Scale() float64 {
	if z.calcWidth <= 0 {
		return 1
	}
	return z.Width() / z.calcWidth
}

func (z *Zoom) In() {
	z.multiply(ZoomStep)
}

func (z *Zoom) Out() {
	z.multiply(1 / ZoomStep)
}

func (z *Zoom) multiply(f float64) {
	for {
		old := z.bits.Load()
		next := math.Float64frombits(old) * f
		if next < 1 {
			next = 1
		}
		if z.bits.CompareAndSwap(old, math.Float64bits(next)) {
			return
		}
	}
}

// Update is one best-of-run notification.
type Update struct {
	Image image.Image
	Error float64
}

// Score is the similarity shown to observers.
func (u Update) Score() float64 {
	return fitness.Similarity(u.Error)
}

// Latest keeps the most recent update for a display that polls.
type Latest struct {
	mu      sync.RWMutex
	update  Update
	ok      bool
	version uint64
}

func (l *Latest) Show(img image.Image, errValue float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.update = Update{Image: img, Error: errValue}
	l.ok = true
	l.version++
}

// Get returns the latest update and a counter that changes on every Show.
func (l *Latest) Get() (Update, uint64, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.update, l.version, l.ok
}

// LogSink reports improvements through a structured logger.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Show(img image.Image, errValue float64) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	b := img.Bounds()
	logger.Info("preview updated", "error", errValue, "score", fitness.Similarity(errValue), "width", b.Dx(), "height", b.Dy())
}

// FileSink rewrites a PNG file with every improvement. The file is replaced
// atomically so readers never observe a partial image.
type FileSink struct {
	Path   string
	Logger *slog.Logger

	mu sync.Mutex
}

func (s *FileSink) Show(img image.Image, _ float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := WritePNG(s.Path, img); err != nil && s.Logger != nil {
		s.Logger.Warn("write preview failed", "path", s.Path, "error", err)
	}
}

// WritePNG encodes img to path through a temporary file and rename.
func WritePNG(path string, img image.Image) error {
	if path == "" {
		return fmt.Errorf("preview path is required")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".preview-*.png")
	if err != nil {
		return err
	}
	if err := raster.EncodePNG(tmp, img); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Sink receives best-of-run previews. Show is best-effort and is only
// called when the best-of-run strictly improves. errValue is the raw
// fitness error; displays convert it with fitness.Similarity.
type Sink interface {
	Show(img image.Image, errValue float64)
}

// Multi fans one update out to several sinks in order.
type Multi []Sink

func (m Multi) Show(img image.Image, errValue float64) {
	for _, s := range m {
		if s != nil {
			s.Show(img, errValue)
		}
	}
}
