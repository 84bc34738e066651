package handler

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"findingchart/internal/config"
	"findingchart/internal/model"
	"findingchart/internal/render"
	"findingchart/internal/service"
	"findingchart/internal/storage"
)

type stubFetcher struct{}

func (stubFetcher) Fetch(ctx context.Context, t model.TargetSpec) model.FetchResult {
	if strings.HasPrefix(t.Name, "Bad") {
		return model.FetchResult{Err: errors.New("HTTP 404")}
	}
	return model.FetchResult{Image: image.NewRGBA(image.Rect(0, 0, render.FrameSize, render.FrameSize))}
}

func setup(t *testing.T) (*gin.Engine, *service.ChartService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Chart: config.ChartConfig{
			Surveys:       config.DefaultSurveys,
			DefaultSurvey: "poss2ukstu_red",
			MinFieldSize:  2,
			MaxFieldSize:  60,
		},
		Archive: config.ArchiveConfig{FileName: "charts.zip", IncludeSurvey: true},
	}
	svc := service.NewChartService(cfg, storage.NewMemoryStorage(), stubFetcher{}, render.DefaultIcons())
	t.Cleanup(func() { svc.Close() })

	router := gin.New()
	NewChartHandler(svc).RegisterRoutes(router.Group("/api"))
	return router, svc
}

func do(router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func generate(t *testing.T, router http.Handler, svc *service.ChartService, coords string) model.SessionResponse {
	t.Helper()
	w := do(router, http.MethodPost, "/api/charts/generate", gin.H{
		"coords":   coords,
		"outepoch": "2024.5",
		"size":     "8",
		"survey":   "poss2ukstu_red",
		"format":   "sexagesimal-colon",
		"type":     "annotated",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("generate status %d: %s", w.Code, w.Body.String())
	}

	var resp model.SessionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := svc.Wait(ctx, resp.SessionID); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	return resp
}

func TestOptions(t *testing.T) {
	router, _ := setup(t)

	w := do(router, http.MethodGet, "/api/charts/options", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var resp model.OptionsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.DefaultSurvey != "poss2ukstu_red" || resp.MaxFieldSize != 60 {
		t.Errorf("Unexpected options %+v", resp)
	}
}

func TestGenerateAndFetch(t *testing.T) {
	router, svc := setup(t)

	resp := generate(t, router, svc, "Alpha 01:00:00 +10:00:00 0 0 2000 note\nBad1 02:00:00 +20:00:00 0 0 2000")
	if len(resp.Charts) != 2 {
		t.Fatalf("Expected 2 charts, got %d", len(resp.Charts))
	}
	if !resp.Options.Annotated() {
		t.Error("Expected annotated options")
	}

	w := do(router, http.MethodGet, "/api/charts/session/"+resp.SessionID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get session status %d", w.Code)
	}
	var session model.SessionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &session); err != nil {
		t.Fatal(err)
	}
	if session.Pending != 0 {
		t.Errorf("Expected no pending charts, got %d", session.Pending)
	}
	if session.Charts[0].Status != model.StatusReady || session.Charts[1].Status != model.StatusUnavailable {
		t.Errorf("Unexpected statuses %s, %s", session.Charts[0].Status, session.Charts[1].Status)
	}

	w = do(router, http.MethodGet, "/api/charts/session/"+resp.SessionID+"/chart/0", nil)
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("chart status %d type %q", w.Code, w.Header().Get("Content-Type"))
	}
	img, err := png.Decode(w.Body)
	if err != nil {
		t.Fatalf("decode chart: %v", err)
	}
	if img.Bounds() != image.Rect(0, 0, 522, 612) {
		t.Errorf("Unexpected annotated bounds %v", img.Bounds())
	}

	w = do(router, http.MethodGet, "/api/charts/session/"+resp.SessionID+"/chart/0?thumb=1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("thumb status %d", w.Code)
	}
	thumb, err := png.Decode(w.Body)
	if err != nil {
		t.Fatalf("decode thumb: %v", err)
	}
	if thumb.Bounds().Dx() != render.ThumbSize {
		t.Errorf("Unexpected thumbnail bounds %v", thumb.Bounds())
	}

	w = do(router, http.MethodGet, "/api/charts/sessions", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), resp.SessionID) {
		t.Errorf("session list status %d: %s", w.Code, w.Body.String())
	}
}

func TestDownload(t *testing.T) {
	router, svc := setup(t)
	resp := generate(t, router, svc, "Alpha 01:00:00 +10:00:00 0 0 2000\nBad1 02:00:00 +20:00:00 0 0 2000")

	w := do(router, http.MethodGet, "/api/charts/session/"+resp.SessionID+"/download", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("download status %d", w.Code)
	}
	if got := w.Header().Get("Content-Disposition"); got != `attachment; filename="charts.zip"` {
		t.Errorf("Unexpected Content-Disposition %q", got)
	}

	zr, err := zip.NewReader(bytes.NewReader(w.Body.Bytes()), int64(w.Body.Len()))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	if len(zr.File) != 2 {
		t.Fatalf("Expected 2 files, got %d", len(zr.File))
	}
	if zr.File[0].Name != "Alpha_poss2ukstu_red.png" || zr.File[1].Name != "Bad1_poss2ukstu_red.png" {
		t.Errorf("Unexpected names %s, %s", zr.File[0].Name, zr.File[1].Name)
	}
}

func TestGenerateErrors(t *testing.T) {
	router, _ := setup(t)

	tests := []struct {
		name    string
		body    gin.H
		wantErr string
	}{
		{
			name:    "missing coords",
			body:    gin.H{"size": "8", "outepoch": "2024"},
			wantErr: "Coords",
		},
		{
			name:    "bad line",
			body:    gin.H{"coords": "Alpha 1h +10:00:00 0 0 2000", "size": "8", "outepoch": "2024"},
			wantErr: `Line 1: Unable to parse "1h" as HH:MM:SS`,
		},
		{
			name:    "bad size",
			body:    gin.H{"coords": "Alpha 01:00:00 +10:00:00 0 0 2000", "size": "1", "outepoch": "2024"},
			wantErr: "Field size",
		},
		{
			name:    "blank input",
			body:    gin.H{"coords": "\n  \n", "size": "8", "outepoch": "2024"},
			wantErr: "no targets",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(router, http.MethodPost, "/api/charts/generate", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status %d, want 400: %s", w.Code, w.Body.String())
			}
			var body map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(body["error"], tt.wantErr) {
				t.Errorf("error %q does not contain %q", body["error"], tt.wantErr)
			}
		})
	}
}

func TestNotFound(t *testing.T) {
	router, svc := setup(t)
	resp := generate(t, router, svc, "Alpha 01:00:00 +10:00:00 0 0 2000")

	tests := []struct {
		path string
		code int
	}{
		{"/api/charts/session/missing", http.StatusNotFound},
		{"/api/charts/session/missing/download", http.StatusNotFound},
		{"/api/charts/session/missing/events", http.StatusNotFound},
		{"/api/charts/session/" + resp.SessionID + "/chart/9", http.StatusNotFound},
		{"/api/charts/session/" + resp.SessionID + "/chart/x", http.StatusBadRequest},
		{"/api/charts/session/del/missing", http.StatusNotFound},
	}
	for _, tt := range tests {
		if w := do(router, http.MethodGet, tt.path, nil); w.Code != tt.code {
			t.Errorf("GET %s = %d, want %d", tt.path, w.Code, tt.code)
		}
	}
}

func TestDeleteSession(t *testing.T) {
	router, svc := setup(t)
	resp := generate(t, router, svc, "Alpha 01:00:00 +10:00:00 0 0 2000")

	w := do(router, http.MethodGet, "/api/charts/session/del/"+resp.SessionID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status %d", w.Code)
	}
	w = do(router, http.MethodGet, "/api/charts/session/"+resp.SessionID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}
}

func TestStreamEventsAfterSettle(t *testing.T) {
	router, svc := setup(t)
	resp := generate(t, router, svc, "Alpha 01:00:00 +10:00:00 0 0 2000")

	w := do(router, http.MethodGet, "/api/charts/session/"+resp.SessionID+"/events", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("events status %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Unexpected Content-Type %q", ct)
	}
	body := w.Body.String()
	if strings.Count(body, "event: session") != 2 {
		t.Errorf("Expected initial and final session events: %s", body)
	}
	if !strings.HasSuffix(body, "data: [DONE]\n\n") {
		t.Errorf("Expected stream to end with [DONE]: %s", body)
	}
}

func TestImport(t *testing.T) {
	router, _ := setup(t)

	f := excelize.NewFile()
	defer f.Close()
	f.SetCellValue("Sheet1", "A1", "Alpha")
	f.SetCellValue("Sheet1", "B1", "01:00:00")
	f.SetCellValue("Sheet1", "C1", "+10:00:00")
	var workbook bytes.Buffer
	if err := f.Write(&workbook); err != nil {
		t.Fatal(err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "targets.xlsx")
	if err != nil {
		t.Fatal(err)
	}
	part.Write(workbook.Bytes())
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/charts/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("import status %d: %s", w.Code, w.Body.String())
	}
	var resp model.ImportResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Coords != "Alpha 01:00:00 +10:00:00" || resp.Lines != 1 {
		t.Errorf("Unexpected import %+v", resp)
	}

	w = do(router, http.MethodPost, "/api/charts/import", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("import without file = %d, want 400", w.Code)
	}
}
