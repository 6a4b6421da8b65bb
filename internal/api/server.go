// Package api serves the live dashboard: the rendered view, its JSON state,
// recent logs and the websocket feed.
package api

import (
	"context"
	"errors"
	"html/template"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	apimw "github.com/clipforge/clipforge/internal/api/middleware"
	"github.com/clipforge/clipforge/internal/view"
	"github.com/clipforge/clipforge/internal/websocket"
)

// ViewSource is the rendered client view.
type ViewSource interface {
	Snapshot() view.Page
	Render() (string, error)
}

// Deps are the collaborators of the dashboard server.
type Deps struct {
	View        ViewSource
	Hub         *websocket.Hub
	Logs        LogsProvider
	LogFilePath string
	// AllowedHosts restricts the Host header; empty allows any.
	AllowedHosts []string
}

// Server is the dashboard HTTP server.
type Server struct {
	echo   *echo.Echo
	deps   Deps
	logger zerolog.Logger
}

// NewServer creates the dashboard server with its middleware and routes.
func NewServer(deps Deps, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:   e,
		deps:   deps,
		logger: logger.With().Str("component", "api").Logger(),
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestID())
	s.echo.Use(apimw.LoopbackOnly(s.deps.AllowedHosts...))
	s.echo.Use(apimw.SecurityHeaders())

	// Dashboard routes take no bodies
	s.echo.Use(middleware.BodyLimit("64K"))

	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogMethod:   true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Err(v.Error).
					Msg("request error")
			} else {
				s.logger.Debug().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Msg("request")
			}
			return nil
		},
	}))

	s.echo.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			return c.Request().Header.Get("Upgrade") == "websocket"
		},
	}))
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/", s.getPage)
	s.echo.GET("/fragment", s.getFragment)

	api := s.echo.Group("/api/v1")
	api.GET("/view", s.getView)
	NewLogsHandlers(s.deps.Logs, s.deps.LogFilePath).RegisterRoutes(api.Group("/logs"))

	if s.deps.Hub != nil {
		s.echo.GET("/ws", s.deps.Hub.HandleWebSocket)
	}
}

// Start listens on address until Shutdown. A clean shutdown returns nil.
func (s *Server) Start(address string) error {
	s.logger.Info().Str("address", address).Msg("Starting dashboard")
	if err := s.echo.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down dashboard")
	return s.echo.Shutdown(ctx)
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getView(c echo.Context) error {
	return c.JSON(http.StatusOK, s.deps.View.Snapshot())
}

func (s *Server) getFragment(c echo.Context) error {
	fragment, err := s.deps.View.Render()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to render view").SetInternal(err)
	}
	return c.HTML(http.StatusOK, fragment)
}

func (s *Server) getPage(c echo.Context) error {
	fragment, err := s.deps.View.Render()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to render view").SetInternal(err)
	}

	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(http.StatusOK)
	return pageTemplate.Execute(c.Response(), struct {
		Fragment template.HTML
		Live     bool
	}{
		// Rendered by html/template, already escaped
		Fragment: template.HTML(fragment), //nolint:gosec
		Live:     s.deps.Hub != nil,
	})
}

var pageTemplate = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>clipforge</title>
<style>
body { font-family: sans-serif; margin: 2rem; }
.file-progress { display: flex; gap: 1rem; align-items: center; }
.alert { color: #b00020; }
</style>
</head>
<body>
<main id="root">{{.Fragment}}</main>
{{- if .Live}}
<script>
(function () {
  var root = document.getElementById("root");
  function refresh() {
    fetch("/fragment").then(function (r) { return r.text(); }).then(function (html) { root.innerHTML = html; });
  }
  function connect() {
    var ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
    ws.onmessage = function (ev) {
      var msg = JSON.parse(ev.data);
      if (msg.type && msg.type.indexOf("view:") === 0) { refresh(); }
    };
    ws.onclose = function () { setTimeout(connect, 1000); };
  }
  connect();
})();
</script>
{{- end}}
</body>
</html>
`))
