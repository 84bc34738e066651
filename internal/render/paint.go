package render

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/srwiley/rasterx"
	"golang.org/x/image/math/fixed"
)

type Point struct {
	X, Y float64
}

var (
	colorWhite     = color.RGBA{255, 255, 255, 255}
	colorBlack     = color.RGBA{0, 0, 0, 255}
	colorBlue      = color.RGBA{0, 0, 255, 255}
	colorMarkerRed = color.NRGBA{255, 0, 0, 128}
)

const miterLimit = 10 << 6

func newScanner(img draw.Image) (*rasterx.ScannerGV, int, int) {
	b := img.Bounds()
	return rasterx.NewScannerGV(b.Dx(), b.Dy(), img, b), b.Dx(), b.Dy()
}

// strokePaths strokes each polyline in paths with one pen.
func strokePaths(img draw.Image, width float64, c color.Color, capFn rasterx.CapFunc, paths ...[]Point) {
	scanner, w, h := newScanner(img)
	s := rasterx.NewStroker(w, h, scanner)
	s.SetStroke(fixed.Int26_6(width*64), miterLimit, capFn, capFn, rasterx.FlatGap, rasterx.Miter)
	for _, path := range paths {
		if len(path) < 2 {
			continue
		}
		s.Start(rasterx.ToFixedP(path[0].X, path[0].Y))
		for _, p := range path[1:] {
			s.Line(rasterx.ToFixedP(p.X, p.Y))
		}
		s.Stop(false)
	}
	s.SetColor(c)
	s.Draw()
}

func strokeCircle(img draw.Image, center Point, r, width float64, c color.Color) {
	if r <= 0 {
		return
	}
	scanner, w, h := newScanner(img)
	s := rasterx.NewStroker(w, h, scanner)
	s.SetStroke(fixed.Int26_6(width*64), miterLimit, rasterx.ButtCap, rasterx.ButtCap, rasterx.RoundGap, rasterx.Round)
	rasterx.AddCircle(center.X, center.Y, r, s)
	s.SetColor(c)
	s.Draw()
}

func fillCircle(img draw.Image, center Point, r float64, c color.Color) {
	if r <= 0 {
		return
	}
	scanner, w, h := newScanner(img)
	f := rasterx.NewFiller(w, h, scanner)
	rasterx.AddCircle(center.X, center.Y, r, f)
	f.SetColor(c)
	f.Draw()
}

func fillRect(img draw.Image, r image.Rectangle, c color.Color) {
	draw.Draw(img, r, &image.Uniform{C: c}, image.Point{}, draw.Src)
}

// strokeRect draws a border of the given width inside r.
func strokeRect(img draw.Image, r image.Rectangle, c color.Color, width int) {
	src := &image.Uniform{C: c}
	for i := 0; i < width; i++ {
		x1, y1, x2, y2 := r.Min.X+i, r.Min.Y+i, r.Max.X-i, r.Max.Y-i
		draw.Draw(img, image.Rect(x1, y1, x2, y1+1), src, image.Point{}, draw.Over)
		draw.Draw(img, image.Rect(x1, y2-1, x2, y2), src, image.Point{}, draw.Over)
		draw.Draw(img, image.Rect(x1, y1, x1+1, y2), src, image.Point{}, draw.Over)
		draw.Draw(img, image.Rect(x2-1, y1, x2, y2), src, image.Point{}, draw.Over)
	}
}
