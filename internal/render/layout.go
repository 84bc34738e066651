// Package render draws finding charts: a placeholder frame while the survey
// image loads, then the image with compass, scale bar, position markers and
// optional captions, or an "unavailable" notice when the load fails.
package render

const (
	// FrameSize is the side of the survey image area in pixels.
	FrameSize = 512
	// ThumbSize is the side of the thumbnail shown for a finished chart.
	ThumbSize = 128

	annotatedMarginX = 5
	annotatedMarginY = 20
	annotatedHeight  = 612
)

// Layout fixes the canvas size and where the survey image sits on it.
type Layout struct {
	Width    int
	Height   int
	ImageX   int
	ImageY   int
	Annotate bool
}

func NewLayout(annotate bool) Layout {
	if !annotate {
		return Layout{Width: FrameSize, Height: FrameSize}
	}
	return Layout{
		Width:    FrameSize + 2*annotatedMarginX,
		Height:   annotatedHeight,
		ImageX:   annotatedMarginX,
		ImageY:   annotatedMarginY,
		Annotate: true,
	}
}

// at translates a position inside the image frame to canvas coordinates.
func (l Layout) at(x, y float64) Point {
	return Point{X: float64(l.ImageX) + x, Y: float64(l.ImageY) + y}
}
