package source

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"io/fs"
	"math"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// BundledName identifies the embedded sample image in run records.
const BundledName = "bundled:sample.png"

var (
	ErrNoFile      = errors.New("no image file selected")
	ErrEmptyImage  = errors.New("image has zero size")
	ErrInvalidSize = errors.New("invalid calculation width")
)

//go:embed assets/sample.png
var sampleImage []byte

// Target is the read-only pixel buffer every candidate is scored against.
type Target struct {
	Pix    []uint8
	Width  int
	Height int
}

// Load decodes the image at path.
func Load(path string) (image.Image, error) {
	if path == "" {
		return nil, ErrNoFile
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w", ErrNoFile, err)
		}
		return nil, err
	}
	defer f.Close()

	img, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// Decode reads any format registered with the image package: png, jpeg,
// gif, bmp, tiff and webp.
func Decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, ErrEmptyImage
	}
	return img, nil
}

// Bundled decodes the sample image shipped with the binary.
func Bundled() (image.Image, error) {
	img, err := Decode(bytes.NewReader(sampleImage))
	if err != nil {
		return nil, fmt.Errorf("decode bundled image: %w", err)
	}
	return img, nil
}

// WorkingSize returns the calculation resolution for a source of
// srcWidth×srcHeight scaled to calcWidth, preserving aspect ratio.
func WorkingSize(srcWidth, srcHeight, calcWidth int) (int, int, error) {
	if calcWidth <= 0 {
		return 0, 0, fmt.Errorf("%w: %d", ErrInvalidSize, calcWidth)
	}
	if srcWidth <= 0 || srcHeight <= 0 {
		return 0, 0, ErrEmptyImage
	}
	height := int(math.Round(float64(calcWidth) / float64(srcWidth) * float64(srcHeight)))
	if height < 1 {
		height = 1
	}
	return calcWidth, height, nil
}

// Prepare scales img to the calculation width and returns its RGBA samples.
func Prepare(img image.Image, calcWidth int) (Target, error) {
	if img == nil {
		return Target{}, ErrEmptyImage
	}
	b := img.Bounds()
	w, h, err := WorkingSize(b.Dx(), b.Dy(), calcWidth)
	if err != nil {
		return Target{}, err
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	}
	return Target{Pix: dst.Pix, Width: w, Height: h}, nil
}
