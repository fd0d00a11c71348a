package raster

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"math"

	"github.com/gogpu/gg"

	"stipple/internal/model"
)

var ErrInvalidCanvas = errors.New("invalid canvas size")

// Rasterizer turns a gene into pixels at a given scale factor.
type Rasterizer interface {
	Render(gene model.Gene, scale float64) (*image.RGBA, error)
}

// CircleRasterizer draws genes on a transparent canvas of Width×Height
// calculation pixels using the gg software renderer. Every call uses its
// own drawing context, so Render may be called from several goroutines.
type CircleRasterizer struct {
	Width  int
	Height int
}

func NewCircleRasterizer(width, height int) (*CircleRasterizer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidCanvas, width, height)
	}
	return &CircleRasterizer{Width: width, Height: height}, nil
}

// CanvasSize returns the pixel dimensions of a render at scale.
func (r *CircleRasterizer) CanvasSize(scale float64) (int, int) {
	return scaled(r.Width, scale), scaled(r.Height, scale)
}

func (r *CircleRasterizer) Render(gene model.Gene, scale float64) (*image.RGBA, error) {
	if scale <= 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return nil, fmt.Errorf("%w: scale=%v", ErrInvalidCanvas, scale)
	}
	w, h := r.CanvasSize(scale)

	dc := gg.NewContext(w, h)
	defer func() {
		_ = dc.Close()
	}()

	for i, s := range gene.Shapes {
		dc.SetRGBA(math.Round(s.R)/255, math.Round(s.G)/255, math.Round(s.B)/255, s.A)
		dc.DrawCircle(s.X*scale, s.Y*scale, s.Size*scale)
		if err := dc.Fill(); err != nil {
			return nil, fmt.Errorf("fill shape %d: %w", i, err)
		}
	}
	return toRGBA(dc.Image()), nil
}

// EncodePNG writes img in the format used for previews and exports.
func EncodePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}

func scaled(n int, scale float64) int {
	v := int(math.Round(float64(n) * scale))
	if v < 1 {
		return 1
	}
	return v
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}
