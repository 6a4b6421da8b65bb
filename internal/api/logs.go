package api

import (
	"net/http"
	"os"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/clipforge/clipforge/internal/logger"
)

// LogsProvider provides access to log data.
type LogsProvider interface {
	Filter(level string, limit int) []logger.LogEntry
}

// LogsHandlers handles log-related HTTP endpoints.
type LogsHandlers struct {
	provider LogsProvider
	filePath string
}

// NewLogsHandlers creates a new logs handlers instance. filePath may be
// empty when file logging is off.
func NewLogsHandlers(provider LogsProvider, filePath string) *LogsHandlers {
	return &LogsHandlers{provider: provider, filePath: filePath}
}

// RegisterRoutes registers log routes on the given group.
func (h *LogsHandlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.GetRecentLogs)
	g.GET("/download", h.DownloadLogFile)
}

// GetRecentLogs returns recent log entries.
// Query: level (minimum level), limit (newest N).
func (h *LogsHandlers) GetRecentLogs(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
		}
		limit = n
	}

	logs := []logger.LogEntry{}
	if h.provider != nil {
		if recent := h.provider.Filter(c.QueryParam("level"), limit); recent != nil {
			logs = recent
		}
	}
	return c.JSON(http.StatusOK, logs)
}

// DownloadLogFile serves the current log file for download.
func (h *LogsHandlers) DownloadLogFile(c echo.Context) error {
	if h.filePath == "" {
		return echo.NewHTTPError(http.StatusNotFound, "no log file configured")
	}

	if _, err := os.Stat(h.filePath); os.IsNotExist(err) {
		return echo.NewHTTPError(http.StatusNotFound, "log file not found")
	}

	return c.Attachment(h.filePath, "clipforge.log")
}
