package preview

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func testImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.SetRGBA(0, 0, color.RGBA{R: 255, A: 255})
	return img
}

func TestZoomStepsByTenPercent(t *testing.T) {
	z := NewZoom(100, 200)
	if z.Scale() != 2 {
		t.Fatalf("expected initial scale 2, got %f", z.Scale())
	}
	z.In()
	if math.Abs(z.Width()-220) > 1e-9 {
		t.Fatalf("expected width 220 after zoom in, got %f", z.Width())
	}
	z.Out()
	if math.Abs(z.Width()-200) > 1e-9 {
		t.Fatalf("expected width 200 after zoom out, got %f", z.Width())
	}
}

func TestZoomNeverCollapses(t *testing.T) {
	z := NewZoom(100, 2)
	for i := 0; i < 100; i++ {
		z.Out()
	}
	if z.Width() < 1 {
		t.Fatalf("expected width to stay >= 1, got %f", z.Width())
	}
}

func TestZoomConcurrentUse(t *testing.T) {
	z := NewZoom(100, 200)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				z.In()
				z.Out()
				_ = z.Scale()
			}
		}()
	}
	wg.Wait()
	if math.Abs(z.Width()-200) > 1e-6 {
		t.Fatalf("expected balanced zoom to return to 200, got %f", z.Width())
	}
}

var (
	_ Sink = (*Latest)(nil)
	_ Sink = LogSink{}
	_ Sink = (*FileSink)(nil)
	_ Sink = Multi(nil)
)

func TestLatestTracksVersions(t *testing.T) {
	var latest Latest
	if _, _, ok := latest.Get(); ok {
		t.Fatal("expected no update before Show")
	}
	latest.Show(testImage(2, 2), 0.25)
	update, v1, ok := latest.Get()
	if !ok || update.Error != 0.25 || update.Score() != 0.5 {
		t.Fatalf("unexpected update: %+v ok=%t", update, ok)
	}
	latest.Show(testImage(2, 2), 0.16)
	_, v2, _ := latest.Get()
	if v2 == v1 {
		t.Fatal("expected version to change on Show")
	}
}

func TestFileSinkWritesPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "best.png")
	sink := &FileSink{Path: path}
	sink.Show(testImage(3, 2), 0.1)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read preview: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode preview: %v", err)
	}
	if img.Bounds().Dx() != 3 || img.Bounds().Dy() != 2 {
		t.Fatalf("unexpected preview bounds %v", img.Bounds())
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected temporary files to be cleaned up, got %d entries", len(entries))
	}
}

func TestMultiAndLogSink(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	var latest Latest
	Multi{LogSink{Logger: logger}, nil, &latest}.Show(testImage(4, 4), 0.09)

	if !strings.Contains(buf.String(), "preview updated") || !strings.Contains(buf.String(), "error=0.09") {
		t.Fatalf("expected log line with the raw error, got %q", buf.String())
	}
	if _, _, ok := latest.Get(); !ok {
		t.Fatal("expected update to reach every sink")
	}
}
