package render

import (
	"image"
	"image/color"
	"image/draw"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

type textAlign int

const (
	alignStart textAlign = iota
	alignCenter
)

type textBaseline int

const (
	baselineAlphabetic textBaseline = iota
	baselineTop
	baselineBottom
)

type textStyle struct {
	size     float64
	align    textAlign
	baseline textBaseline
}

var (
	titleStyle   = textStyle{size: 18, align: alignCenter}
	noticeStyle  = textStyle{size: 28, align: alignCenter}
	labelStyle   = textStyle{size: 12, align: alignCenter, baseline: baselineBottom}
	surveyStyle  = textStyle{size: 12, align: alignStart, baseline: baselineTop}
	captionStyle = textStyle{size: 18, align: alignCenter, baseline: baselineBottom}
)

var (
	// opentype faces keep scratch buffers, so all text drawing is serialised.
	textMu    sync.Mutex
	fontOnce  sync.Once
	fontData  *opentype.Font
	faceCache = make(map[float64]font.Face)
)

func faceFor(size float64) font.Face {
	fontOnce.Do(func() {
		f, err := opentype.Parse(goregular.TTF)
		if err == nil {
			fontData = f
		}
	})
	if fontData == nil {
		return basicfont.Face7x13
	}
	if face, ok := faceCache[size]; ok {
		return face
	}
	face, err := opentype.NewFace(fontData, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return basicfont.Face7x13
	}
	faceCache[size] = face
	return face
}

// textOrigin returns the dot position for drawing s anchored at p.
func textOrigin(face font.Face, s string, p Point, st textStyle) fixed.Point26_6 {
	x := fixed.Int26_6(p.X * 64)
	y := fixed.Int26_6(p.Y * 64)
	if st.align == alignCenter {
		x -= font.MeasureString(face, s) / 2
	}
	m := face.Metrics()
	switch st.baseline {
	case baselineTop:
		y += m.Ascent
	case baselineBottom:
		y -= m.Descent
	}
	return fixed.Point26_6{X: x, Y: y}
}

func drawString(img draw.Image, face font.Face, s string, dot fixed.Point26_6, c color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  dot,
	}
	d.DrawString(s)
}

func fillText(img draw.Image, s string, p Point, st textStyle, c color.Color) {
	if s == "" {
		return
	}
	textMu.Lock()
	defer textMu.Unlock()

	face := faceFor(st.size)
	drawString(img, face, s, textOrigin(face, s, p, st), c)
}

// outlinedText draws s with a one pixel halo, then fills it.
func outlinedText(img draw.Image, s string, p Point, st textStyle, halo, fill color.Color) {
	if s == "" {
		return
	}
	textMu.Lock()
	defer textMu.Unlock()

	face := faceFor(st.size)
	dot := textOrigin(face, s, p, st)
	for _, dx := range []fixed.Int26_6{-64, 0, 64} {
		for _, dy := range []fixed.Int26_6{-64, 0, 64} {
			if dx == 0 && dy == 0 {
				continue
			}
			drawString(img, face, s, fixed.Point26_6{X: dot.X + dx, Y: dot.Y + dy}, halo)
		}
	}
	drawString(img, face, s, dot, fill)
}
