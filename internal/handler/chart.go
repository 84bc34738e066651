package handler

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"findingchart/internal/model"
	"findingchart/internal/parser"
	"findingchart/internal/service"
	"findingchart/internal/storage"
	"findingchart/internal/utils"
	"findingchart/pkg/logger"
)

const heartbeatInterval = 30 * time.Second

type ChartHandler struct {
	chartService *service.ChartService
}

func NewChartHandler(chartService *service.ChartService) *ChartHandler {
	return &ChartHandler{
		chartService: chartService,
	}
}

// RegisterRoutes mounts the chart API on r.
func (h *ChartHandler) RegisterRoutes(r *gin.RouterGroup) {
	charts := r.Group("/charts")
	{
		charts.GET("/options", h.Options)
		charts.POST("/generate", h.Generate)
		charts.POST("/import", h.Import)
		charts.GET("/sessions", h.GetSessionList)
		charts.GET("/session/del/:session_id", h.DeleteSession)
		charts.GET("/session/:session_id", h.GetSession)
		charts.GET("/session/:session_id/events", h.StreamEvents)
		charts.GET("/session/:session_id/chart/:index", h.GetChart)
		charts.GET("/session/:session_id/download", h.Download)
	}
}

// writeError maps service errors to status codes: bad input is 400, unknown
// sessions or charts 404, anything else 500.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case parser.IsInputError(err):
		status = http.StatusBadRequest
	case errors.Is(err, storage.ErrSessionNotFound), errors.Is(err, storage.ErrChartNotFound):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		logger.Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (h *ChartHandler) Options(c *gin.Context) {
	c.JSON(http.StatusOK, h.chartService.Options())
}

func (h *ChartHandler) Generate(c *gin.Context) {
	var req model.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.chartService.Generate(req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.NewSessionResponse(session))
}

// Import converts an uploaded xlsx workbook into target list text.
func (h *ChartHandler) Import(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	resp, err := h.chartService.ImportSpreadsheet(f, c.PostForm("sheet"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *ChartHandler) GetSessionList(c *gin.Context) {
	sessions, err := h.chartService.ListSessions()
	if err != nil {
		writeError(c, err)
		return
	}

	resp := make([]model.SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		resp = append(resp, model.NewSessionResponse(s))
	}

	c.JSON(http.StatusOK, gin.H{
		"sessions": resp,
	})
}

func (h *ChartHandler) GetSession(c *gin.Context) {
	session, err := h.chartService.GetSession(c.Param("session_id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.NewSessionResponse(session))
}

func (h *ChartHandler) DeleteSession(c *gin.Context) {
	if err := h.chartService.DeleteSession(c.Param("session_id")); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Session deleted successfully"})
}

// GetChart serves the current PNG of one chart, or its thumbnail with
// ?thumb=1.
func (h *ChartHandler) GetChart(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid chart index %q", c.Param("index"))})
		return
	}

	kind := model.ImageChart
	if thumb, _ := strconv.ParseBool(c.DefaultQuery("thumb", "false")); thumb {
		kind = model.ImageThumb
	}

	data, err := h.chartService.ChartImage(c.Param("session_id"), index, kind)
	if err != nil {
		writeError(c, err)
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, "image/png", data)
}

func (h *ChartHandler) Download(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.chartService.WriteArchive(c.Param("session_id"), &buf); err != nil {
		writeError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", h.chartService.ArchiveName()))
	c.Data(http.StatusOK, "application/zip", buf.Bytes())
}

// StreamEvents sends the session as it stands, then one "chart" event per
// settled chart, then the final session once every chart has settled.
func (h *ChartHandler) StreamEvents(c *gin.Context) {
	sessionID := c.Param("session_id")

	events, cancel, err := h.chartService.Subscribe(sessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	defer cancel()

	session, err := h.chartService.GetSession(sessionID)
	if err != nil {
		writeError(c, err)
		return
	}

	sseWriter := utils.NewSSEWriter(c.Writer)
	if err := sseWriter.WriteJSON("session", model.NewSessionResponse(session)); err != nil {
		return
	}

	heartbeatTicker := time.NewTicker(heartbeatInterval)
	defer heartbeatTicker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				if session, err := h.chartService.GetSession(sessionID); err == nil {
					sseWriter.WriteJSON("session", model.NewSessionResponse(session))
				}
				sseWriter.Close()
				return
			}
			if err := sseWriter.WriteJSON("chart", ev); err != nil {
				logger.Warnf("Failed to write SSE: %v", err)
				return
			}

		case <-heartbeatTicker.C:
			if err := sseWriter.WriteJSON("heartbeat", gin.H{"timestamp": time.Now().Unix()}); err != nil {
				return
			}

		case <-ctx.Done():
			return
		}
	}
}
