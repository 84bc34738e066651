package render

import (
	"image"
	"image/draw"
	"math"
	"strconv"
	"sync"

	"github.com/srwiley/rasterx"

	"findingchart/internal/model"
)

const (
	generatingText  = "Generating..."
	unavailableText = "Source Image Unavailable"
	scaleLabel      = "1'"

	// a proper motion arrow is only drawn when the markers are further
	// apart than this many indicator radii
	arrowMinSeparation = 2.5
)

// Chart is one target's canvas. It starts as a placeholder and is settled
// exactly once by Apply.
type Chart struct {
	mu     sync.Mutex
	target model.TargetSpec
	layout Layout
	icons  Icons
	canvas *image.RGBA
	thumb  image.Image
	status model.ChartStatus
	reason string
	meta   *model.ChartMetadata
}

// Snapshot is a point-in-time copy of a chart, safe to encode concurrently.
type Snapshot struct {
	Canvas   *image.RGBA
	Thumb    image.Image
	Status   model.ChartStatus
	Reason   string
	Metadata *model.ChartMetadata
}

// NewChart allocates the canvas for t and paints the placeholder frame.
func NewChart(t model.TargetSpec, icons Icons) *Chart {
	l := NewLayout(t.Annotate)
	c := &Chart{
		target: t,
		layout: l,
		icons:  icons,
		canvas: image.NewRGBA(image.Rect(0, 0, l.Width, l.Height)),
		thumb:  icons.Loading,
		status: model.StatusGenerating,
	}
	c.drawPlaceholder()
	return c
}

func (c *Chart) Target() model.TargetSpec {
	return c.target
}

func (c *Chart) Layout() Layout {
	return c.layout
}

func (c *Chart) Status() model.ChartStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Apply settles the chart with the outcome of its image load. It returns
// false if the chart had already been settled.
func (c *Chart) Apply(res model.FetchResult) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status.Settled() {
		return false
	}
	if res.OK() {
		c.drawChart(res.Image, res.Metadata)
		c.thumb = thumbnail(res.Image)
		c.meta = res.Metadata
		c.status = model.StatusReady
		return true
	}

	c.drawUnavailable()
	c.thumb = c.icons.Failed
	c.status = model.StatusUnavailable
	if res.Err != nil {
		c.reason = res.Err.Error()
	} else {
		c.reason = "no image returned"
	}
	return true
}

func (c *Chart) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Canvas:   cloneRGBA(c.canvas),
		Thumb:    c.thumb,
		Status:   c.status,
		Reason:   c.reason,
		Metadata: c.meta,
	}
}

func (c *Chart) frame() image.Rectangle {
	l := c.layout
	return image.Rect(l.ImageX, l.ImageY, l.ImageX+FrameSize, l.ImageY+FrameSize)
}

func (c *Chart) drawPlaceholder() {
	l := c.layout
	fillRect(c.canvas, c.canvas.Bounds(), colorWhite)
	strokeRect(c.canvas, c.frame(), colorBlack, 2)

	center := float64(l.Width) / 2
	fillText(c.canvas, generatingText, Point{center, float64(l.ImageY) + 256}, noticeStyle, colorBlack)

	if l.Annotate {
		fillText(c.canvas, c.target.Name, Point{center, 15}, titleStyle, colorBlack)
		fillText(c.canvas, c.target.Comment, Point{center, float64(l.Height) - 5}, titleStyle, colorBlack)
	}
}

func (c *Chart) drawUnavailable() {
	l := c.layout
	inner := image.Rect(l.ImageX+2, l.ImageY+2, l.ImageX+FrameSize-2, l.ImageY+FrameSize-2)
	fillRect(c.canvas, inner, colorWhite)
	fillText(c.canvas, unavailableText, Point{float64(l.Width) / 2, float64(l.ImageY) + 256}, noticeStyle, colorBlack)
}

func (c *Chart) drawChart(img image.Image, meta *model.ChartMetadata) {
	l := c.layout
	b := img.Bounds()
	dst := image.Rect(l.ImageX, l.ImageY, l.ImageX+b.Dx(), l.ImageY+b.Dy())
	draw.Draw(c.canvas, dst, img, b.Min, draw.Over)

	if meta != nil {
		outlinedText(c.canvas, meta.Survey, l.at(10, 10), surveyStyle, colorWhite, colorBlue)
	}
	c.drawCompass()
	c.drawScaleBar()
	if meta != nil {
		c.drawMarkers(meta)
	}
	if l.Annotate {
		c.drawCaption(meta)
	}
}

func (c *Chart) drawCompass() {
	l := c.layout
	strokePaths(c.canvas, 4, colorWhite, rasterx.ButtCap,
		[]Point{l.at(502, 461), l.at(502, 502), l.at(461, 502)})
	strokePaths(c.canvas, 2, colorBlue, rasterx.ButtCap,
		[]Point{l.at(502, 462), l.at(502, 502), l.at(462, 502)})

	outlinedText(c.canvas, "E", l.at(455, 506), labelStyle, colorWhite, colorBlue)
	outlinedText(c.canvas, "N", l.at(502, 457), labelStyle, colorWhite, colorBlue)
}

// ScaleBarLength is the length in pixels of one arcminute on the frame.
func ScaleBarLength(fieldSizeArcmin float64) float64 {
	if fieldSizeArcmin <= 0 {
		return 0
	}
	return FrameSize / fieldSizeArcmin
}

func (c *Chart) drawScaleBar() {
	l := c.layout
	bar := ScaleBarLength(c.target.FieldSizeArcmin)
	strokePaths(c.canvas, 4, colorWhite, rasterx.ButtCap,
		[]Point{l.at(9, 502), l.at(11+bar, 502)})
	strokePaths(c.canvas, 2, colorBlue, rasterx.ButtCap,
		[]Point{l.at(10, 502), l.at(10+bar, 502)})

	outlinedText(c.canvas, scaleLabel, l.at(10+bar/2, 497), labelStyle, colorWhite, colorBlue)
}

func (c *Chart) drawMarkers(meta *model.ChartMetadata) {
	l := c.layout
	r := meta.IndicatorSize
	from := l.at(meta.DataPos[0], meta.DataPos[1])
	to := l.at(meta.ObservingPos[0], meta.ObservingPos[1])

	strokeCircle(c.canvas, from, r, 1, colorBlue)
	fillCircle(c.canvas, to, r, colorMarkerRed)

	if a, ok := ProperMotionArrow(from, to, r); ok {
		strokePaths(c.canvas, 1, colorBlue, rasterx.ButtCap,
			[]Point{a.Start, a.End},
			[]Point{a.HeadA, a.End, a.HeadB})
	}
}

func (c *Chart) drawCaption(meta *model.ChartMetadata) {
	l := c.layout
	w, h := float64(l.Width), float64(l.Height)
	epoch := strconv.FormatFloat(c.target.OutputEpoch, 'f', -1, 64)
	fillText(c.canvas, "J2000 coordinates at J"+epoch, Point{w / 2, h - 60}, captionStyle, colorBlack)
	if meta != nil {
		fillText(c.canvas, "RA: "+meta.RA, Point{w / 4, h - 35}, captionStyle, colorBlack)
		fillText(c.canvas, "Dec: "+meta.Dec, Point{3 * w / 4, h - 35}, captionStyle, colorBlack)
	}
}

// Arrow is the proper motion indicator between two position markers.
type Arrow struct {
	Start, End   Point
	HeadA, HeadB Point
}

// ProperMotionArrow runs from the edge of the circle at from to the edge of
// the circle at to. The head uses fixed offsets of r along the unit vector
// and its perpendicular rather than a rotated pair of strokes. ok is false
// when the markers are too close for an arrow.
func ProperMotionArrow(from, to Point, r float64) (Arrow, bool) {
	dx, dy := to.X-from.X, to.Y-from.Y
	dist := math.Hypot(dx, dy)
	if dist <= arrowMinSeparation*r || dist == 0 {
		return Arrow{}, false
	}
	ux, uy := dx/dist, dy/dist

	end := Point{to.X - r*ux, to.Y - r*uy}
	return Arrow{
		Start: Point{from.X + r*ux, from.Y + r*uy},
		End:   end,
		HeadA: Point{end.X - r*(uy+ux), end.Y + r*(-uy+ux)},
		HeadB: Point{end.X - r*(-uy+ux), end.Y + r*(-uy-ux)},
	}, true
}
