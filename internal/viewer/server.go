package viewer

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// Server is a read-only browser over the storage root. It never writes and
// never locks files, so it can run beside the monitor.
type Server struct {
	echo *echo.Echo
	root string
	log  *zap.Logger
}

type clipEntry struct {
	Name    string
	Size    string
	ModTime string
	IsVideo bool
}

const indexHTML = `<!DOCTYPE html>
<html>
<head><title>Ring Videos</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; }
td, th { padding: 0.4em 1em; border-bottom: 1px solid #ddd; text-align: left; }
</style>
</head>
<body>
<h1>Ring Videos</h1>
<table>
<tr><th>File</th><th>Size</th><th>Modified</th></tr>
{{range .}}<tr><td><a href="/videos/{{.Name}}">{{.Name}}</a></td><td>{{.Size}}</td><td>{{.ModTime}}</td></tr>
{{end}}</table>
</body>
</html>`

var indexTmpl = template.Must(template.New("index").Parse(indexHTML))

func New(root string, log *zap.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{echo: e, root: root, log: log}

	e.GET("/", s.index)
	e.GET("/videos/:name", s.serveFile)
	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	return s
}

func (s *Server) index(c echo.Context) error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot read storage root")
	}

	clips := make([]clipEntry, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		clips = append(clips, clipEntry{
			Name:    e.Name(),
			Size:    humanSize(info.Size()),
			ModTime: info.ModTime().Format(time.DateTime),
			IsVideo: strings.HasSuffix(e.Name(), ".mp4"),
		})
	}

	// Newest first; names embed the capture timestamp.
	sort.Slice(clips, func(i, j int) bool { return clips[i].Name > clips[j].Name })

	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	return indexTmpl.Execute(c.Response(), clips)
}

func (s *Server) serveFile(c echo.Context) error {
	name := filepath.Base(c.Param("name"))
	if name == "." || name == ".." || strings.ContainsAny(name, "/\\") {
		return echo.NewHTTPError(http.StatusBadRequest, "bad filename")
	}

	path := filepath.Join(s.root, name)
	if _, err := os.Stat(path); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "no such clip")
	}
	return c.File(path)
}

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start(port int) error {
	s.log.Info("viewer listening", zap.Int("port", port), zap.String("root", s.root))
	err := s.echo.Start(fmt.Sprintf(":%d", port))
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the routes for tests.
func (s *Server) Handler() http.Handler { return s.echo }

func humanSize(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.2f GB", float64(n)/float64(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/float64(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
