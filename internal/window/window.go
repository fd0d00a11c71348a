package window

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"sync"
	"sync/atomic"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text"
	"github.com/sqweek/dialog"
	"golang.org/x/image/font/basicfont"

	"stipple/internal/evo"
	"stipple/internal/fitness"
	"stipple/internal/preview"
	"stipple/internal/source"
)

const statusHeight = 40

type Options struct {
	Title string
	Zoom  *preview.Zoom
	// Clock is ticked once per window frame to pace the evolution loop.
	Clock *evo.SignalClock
	// Close is called once when the user closes the window.
	Close func()
}

// Window shows the best-of-run preview and its score. It is the preview
// sink of a run and the source of its frame clock and zoom.
type Window struct {
	opts Options

	latest     preview.Latest
	generation atomic.Int64

	mu     sync.Mutex
	status string

	image     *ebiten.Image
	version   uint64
	sized     bool
	closeOnce sync.Once
}

func New(opts Options) *Window {
	if opts.Title == "" {
		opts.Title = "stipple"
	}
	return &Window{opts: opts}
}

// Show implements the preview sink. It may be called from any goroutine.
func (w *Window) Show(img image.Image, errValue float64) {
	w.latest.Show(img, errValue)
}

// Observe records generation progress for the status line.
func (w *Window) Observe(s evo.GenerationStats) {
	w.generation.Store(int64(s.Generation))
}

// SetStatus replaces the trailing status text, e.g. when the run ends.
func (w *Window) SetStatus(status string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
}

// Run opens the window and blocks until it is closed. It must be called
// from the main goroutine.
func (w *Window) Run() error {
	width := 400
	if w.opts.Zoom != nil {
		width = int(math.Round(w.opts.Zoom.Width()))
	}
	ebiten.SetWindowTitle(w.opts.Title)
	ebiten.SetWindowSize(width, width*3/4+statusHeight)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowClosingHandled(true)
	return ebiten.RunGame(w)
}

func (w *Window) Update() error {
	if ebiten.IsWindowBeingClosed() {
		w.closeOnce.Do(func() {
			if w.opts.Close != nil {
				w.opts.Close()
			}
		})
		return ebiten.Termination
	}
	if w.opts.Clock != nil {
		w.opts.Clock.Tick()
	}
	if w.opts.Zoom != nil {
		if inpututil.IsKeyJustPressed(ebiten.KeyEqual) || inpututil.IsKeyJustPressed(ebiten.KeyNumpadAdd) {
			w.opts.Zoom.In()
		}
		if inpututil.IsKeyJustPressed(ebiten.KeyMinus) || inpututil.IsKeyJustPressed(ebiten.KeyNumpadSubtract) {
			w.opts.Zoom.Out()
		}
	}
	return nil
}

func (w *Window) Draw(screen *ebiten.Image) {
	screen.Fill(color.RGBA{R: 0x20, G: 0x20, B: 0x20, A: 0xff})

	update, version, ok := w.latest.Get()
	if ok && version != w.version {
		if w.image != nil {
			w.image.Deallocate()
		}
		w.image = ebiten.NewImageFromImage(update.Image)
		w.version = version
		if !w.sized {
			b := update.Image.Bounds()
			ebiten.SetWindowSize(b.Dx(), b.Dy()+statusHeight)
			w.sized = true
		}
	}
	if w.image != nil {
		screen.DrawImage(w.image, &ebiten.DrawImageOptions{})
	}

	w.mu.Lock()
	status := w.status
	w.mu.Unlock()

	h := screen.Bounds().Dy()
	line := fmt.Sprintf("gen %d", w.generation.Load())
	if ok {
		line += fmt.Sprintf("  score %.4f", fitness.Similarity(update.Error))
	}
	if status != "" {
		line += "  " + status
	}
	text.Draw(screen, line, basicfont.Face7x13, 6, h-22, color.White)
	text.Draw(screen, "= / - zoom", basicfont.Face7x13, 6, h-6, color.Gray{Y: 0xa0})
}

func (w *Window) Layout(outsideWidth, outsideHeight int) (int, int) {
	return outsideWidth, outsideHeight
}

// PickFile asks the user for a target image. Cancelling returns
// source.ErrNoFile.
func PickFile() (string, error) {
	cwd, _ := os.Getwd()
	path, err := dialog.File().Title("Choose a target image").
		Filter("Images", "png", "jpg", "jpeg", "gif", "bmp", "tif", "tiff", "webp").
		Filter("All Files (*.*)", "*").
		SetStartDir(cwd).
		Load()
	if err != nil {
		if errors.Is(err, dialog.ErrCancelled) {
			return "", source.ErrNoFile
		}
		return "", err
	}
	return path, nil
}
