package model

import (
	"image"
	"time"
)

type ChartStatus string

const (
	StatusGenerating  ChartStatus = "generating"
	StatusReady       ChartStatus = "ready"
	StatusUnavailable ChartStatus = "unavailable"
)

// Settled reports whether the chart's image load has finished either way.
func (s ChartStatus) Settled() bool {
	return s == StatusReady || s == StatusUnavailable
}

// ChartMetadata is the JSON body returned by the image-generation endpoint.
type ChartMetadata struct {
	Survey        string     `json:"survey"`
	Data          string     `json:"data"`
	DataPos       [2]float64 `json:"data_pos"`
	ObservingPos  [2]float64 `json:"observing_pos"`
	IndicatorSize float64    `json:"indicator_size"`
	RA            string     `json:"ra"`
	Dec           string     `json:"dec"`
}

// FetchResult is the outcome of one image load. Err set means failure;
// otherwise Image is set and Metadata is present only when the endpoint
// returned a metadata object.
type FetchResult struct {
	Image    image.Image
	Metadata *ChartMetadata
	Err      error
}

// OK reports whether the load succeeded.
func (r FetchResult) OK() bool {
	return r.Err == nil && r.Image != nil
}

// ImageKind selects which bitmap of a chart is wanted.
type ImageKind string

const (
	ImageChart ImageKind = "chart"
	ImageThumb ImageKind = "thumb"
)

// ChartImages holds the PNG encodings of a chart snapshot.
type ChartImages struct {
	Chart []byte
	Thumb []byte
}

type ChartRecord struct {
	Index     int         `json:"index"`
	Target    TargetSpec  `json:"target"`
	Status    ChartStatus `json:"status"`
	Error     string      `json:"error,omitempty"`
	RA        string      `json:"ra,omitempty"`
	Dec       string      `json:"dec,omitempty"`
	UpdatedAt time.Time   `json:"updated_at"`
}

type Session struct {
	ID        string        `json:"id"`
	Options   FormOptions   `json:"options"`
	Charts    []ChartRecord `json:"charts"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// FormOptions are the submission-wide form fields as entered.
type FormOptions struct {
	OutputEpoch  string `json:"outepoch"`
	Size         string `json:"size"`
	Survey       string `json:"survey"`
	Format       string `json:"format"`
	ProperMotion string `json:"propermotion"`
	Type         string `json:"type"`
}

// Annotated reports whether the chart type asks for title and caption text.
func (o FormOptions) Annotated() bool {
	return o.Type == "annotated"
}
