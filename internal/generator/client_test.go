package generator

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"findingchart/internal/config"
	"findingchart/internal/model"
)

func testTarget() model.TargetSpec {
	return model.TargetSpec{
		Name:            "HD1",
		RA:              "+12:30:00",
		Dec:             "-10:00:00.5",
		Format:          model.FormatSexagesimalColon,
		RAPM:            0.5,
		DecPM:           -0.25,
		Epoch:           2000,
		OutputEpoch:     2020.5,
		Survey:          "poss2ukstu_red",
		FieldSizeArcmin: 4,
	}
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	img.Set(1, 1, color.RGBA{10, 20, 30, 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func newClient(t *testing.T, base, mode string) *Client {
	t.Helper()
	c, err := NewClient(config.GeneratorConfig{BaseURL: base, Mode: mode})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c
}

func TestBuildURL(t *testing.T) {
	raw, err := BuildURL("http://charts.example/generate", testTarget())
	if err != nil {
		t.Fatalf("BuildURL failed: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("result is not a url: %v", err)
	}
	q := u.Query()
	want := map[string]string{
		"survey":   "poss2ukstu_red",
		"size":     "4",
		"outepoch": "2020.5",
		"ra":       "+12:30:00",
		"dec":      "-10:00:00.5",
		"format":   "sexagesimal-colon",
		"rapm":     "0.5",
		"decpm":    "-0.25",
		"epoch":    "2000",
	}
	for k, v := range want {
		if got := q.Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
	if u.Path != "/generate" {
		t.Errorf("unexpected path %q", u.Path)
	}
}

func TestFetchJSONWithDataURI(t *testing.T) {
	pngData := testPNG(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("ra") != "+12:30:00" {
			http.Error(w, "bad ra", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"survey":         "POSS2/UKSTU Red",
			"data":           "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngData),
			"data_pos":       []float64{200, 210},
			"observing_pos":  []float64{260, 250},
			"indicator_size": 6.5,
			"ra":             "12:30:01.00",
			"dec":            "-10:00:10.00",
		})
	}))
	defer srv.Close()

	res := newClient(t, srv.URL, "auto").Fetch(context.Background(), testTarget())
	if !res.OK() {
		t.Fatalf("fetch failed: %v", res.Err)
	}
	if res.Metadata == nil {
		t.Fatal("expected metadata")
	}
	if res.Metadata.IndicatorSize != 6.5 || res.Metadata.ObservingPos != [2]float64{260, 250} {
		t.Errorf("unexpected metadata %+v", res.Metadata)
	}
	if res.Image.Bounds().Dx() != 8 {
		t.Errorf("unexpected image bounds %v", res.Image.Bounds())
	}
}

func TestFetchJSONWithRelativeImage(t *testing.T) {
	pngData := testPNG(t)
	mux := http.NewServeMux()
	mux.HandleFunc("/generate", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"survey":"dss","data":"/images/1.png","data_pos":[1,1],"observing_pos":[2,2],"indicator_size":3}`))
	})
	mux.HandleFunc("/images/1.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngData)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	res := newClient(t, srv.URL+"/generate", "json").Fetch(context.Background(), testTarget())
	if !res.OK() || res.Metadata == nil {
		t.Fatalf("fetch failed: %v", res.Err)
	}
}

func TestFetchImageMode(t *testing.T) {
	pngData := testPNG(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngData)
	}))
	defer srv.Close()

	for _, mode := range []string{"image", "auto"} {
		res := newClient(t, srv.URL, mode).Fetch(context.Background(), testTarget())
		if !res.OK() {
			t.Fatalf("%s: fetch failed: %v", mode, res.Err)
		}
		if res.Metadata != nil {
			t.Errorf("%s: image mode must not carry metadata", mode)
		}
	}
}

func TestFetchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	res := newClient(t, srv.URL, "json").Fetch(context.Background(), testTarget())
	if res.OK() {
		t.Fatal("expected failure")
	}
	var se *StatusError
	if !errors.As(res.Err, &se) || se.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected StatusError 500, got %v", res.Err)
	}
}

func TestFetchBadPayloads(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
	}{
		{"invalid json", "application/json", "{"},
		{"missing data", "application/json", `{"survey":"x"}`},
		{"bad data uri", "application/json", `{"data":"data:image/png;base64,@@@"}`},
		{"not an image", "image/png", "hello"},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", tt.contentType)
			w.Write([]byte(tt.body))
		}))
		res := newClient(t, srv.URL, "auto").Fetch(context.Background(), testTarget())
		srv.Close()
		if res.OK() || res.Err == nil {
			t.Errorf("%s: expected failure", tt.name)
		}
	}
}

func TestFetchNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	res := newClient(t, base, "auto").Fetch(context.Background(), testTarget())
	if res.Err == nil {
		t.Fatal("expected transport error")
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(config.GeneratorConfig{BaseURL: "ftp://x/y"}); err == nil {
		t.Error("expected scheme error")
	}
	if _, err := NewClient(config.GeneratorConfig{BaseURL: "http://x/y", Mode: "xml"}); err == nil {
		t.Error("expected mode error")
	}
}

func TestDecodeDataURI(t *testing.T) {
	got, err := decodeDataURI("data:text/plain,hello%20world")
	if err != nil || string(got) != "hello world" {
		t.Errorf("unexpected result %q, %v", got, err)
	}
	if _, err := decodeDataURI("data:image/png;base64"); err == nil {
		t.Error("expected error for missing comma")
	}
}
