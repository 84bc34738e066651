// Package generator talks to the remote finding-chart image service.
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"findingchart/internal/config"
	"findingchart/internal/model"
	"findingchart/internal/utils"
	"findingchart/pkg/logger"
)

// Mode selects how the endpoint response is interpreted.
type Mode string

const (
	// ModeJSON expects a metadata object whose data field holds the image.
	ModeJSON Mode = "json"
	// ModeImage expects the bitmap itself; no position markers can be drawn.
	ModeImage Mode = "image"
	// ModeAuto decides per response from its Content-Type.
	ModeAuto Mode = "auto"
)

// ParseMode parses a mode string; empty means auto.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case ModeJSON:
		return ModeJSON, nil
	case ModeImage:
		return ModeImage, nil
	case ModeAuto, "":
		return ModeAuto, nil
	}
	return "", fmt.Errorf("unknown generator mode %q", s)
}

const defaultMaxBytes = 16 << 20

type Client struct {
	base      *url.URL
	mode      Mode
	client    *http.Client
	userAgent string
	maxBytes  int64
}

func NewClient(cfg config.GeneratorConfig) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid generator base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid generator base url %q: scheme must be http or https", cfg.BaseURL)
	}
	mode, err := ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	return &Client{
		base:      base,
		mode:      mode,
		client:    utils.NewHTTPClient(cfg.Timeout),
		userAgent: cfg.UserAgent,
		maxBytes:  maxBytes,
	}, nil
}

// BuildURL fills the endpoint query template for one target.
func BuildURL(base string, t model.TargetSpec) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid generator base url: %w", err)
	}
	return buildURL(u, t), nil
}

func buildURL(base *url.URL, t model.TargetSpec) string {
	u := *base
	q := u.Query()
	q.Set("survey", t.Survey)
	q.Set("size", formatFloat(t.FieldSizeArcmin))
	q.Set("outepoch", formatFloat(t.OutputEpoch))
	q.Set("ra", t.RA)
	q.Set("dec", t.Dec)
	if t.Format != "" {
		q.Set("format", string(t.Format))
	}
	q.Set("rapm", formatFloat(t.RAPM))
	q.Set("decpm", formatFloat(t.DecPM))
	q.Set("epoch", formatFloat(t.Epoch))
	u.RawQuery = q.Encode()
	return u.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Fetch performs the image load for one target. It always returns exactly
// one result and never panics on a bad response.
func (c *Client) Fetch(ctx context.Context, t model.TargetSpec) model.FetchResult {
	img, meta, err := c.fetch(ctx, t)
	if err != nil {
		return model.FetchResult{Err: err}
	}
	return model.FetchResult{Image: img, Metadata: meta}
}

func (c *Client) fetch(ctx context.Context, t model.TargetSpec) (image.Image, *model.ChartMetadata, error) {
	target := buildURL(c.base, t)
	logger.Debugf("fetching chart for %s: %s", t.Name, target)

	body, contentType, err := c.get(ctx, target)
	if err != nil {
		return nil, nil, err
	}

	mode := c.mode
	if mode == ModeAuto {
		mode = ModeImage
		if mt, _, err := mime.ParseMediaType(contentType); err == nil && strings.Contains(mt, "json") {
			mode = ModeJSON
		}
	}

	if mode == ModeImage {
		img, err := decodeImage(body)
		if err != nil {
			return nil, nil, err
		}
		return img, nil, nil
	}

	var meta model.ChartMetadata
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, nil, fmt.Errorf("failed to decode response: %w", err)
	}

	data, err := c.imageData(ctx, meta.Data)
	if err != nil {
		return nil, nil, err
	}
	img, err := decodeImage(data)
	if err != nil {
		return nil, nil, err
	}
	return img, &meta, nil
}

// imageData resolves the data field: either a data URI or a URL relative
// to the endpoint.
func (c *Client) imageData(ctx context.Context, ref string) ([]byte, error) {
	if ref == "" {
		return nil, fmt.Errorf("response carried no image data")
	}
	if strings.HasPrefix(ref, "data:") {
		return decodeDataURI(ref)
	}
	u, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("invalid image reference: %w", err)
	}
	data, _, err := c.get(ctx, c.base.ResolveReference(u).String())
	return data, err
}

func (c *Client) get(ctx context.Context, target string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, "", &StatusError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > c.maxBytes {
		return nil, "", fmt.Errorf("response exceeds %d bytes", c.maxBytes)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

func decodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}
