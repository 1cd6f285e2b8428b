package server

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

// mountStatic serves the compiled single page app from the configured
// directory. Unknown /api paths always answer with JSON; every other unknown
// path falls back to index.html so client side routes survive a reload.
func (s *Server) mountStatic() {
	var indexPath string
	s.engine.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") || indexPath == "" {
			c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
			return
		}
		c.File(indexPath)
	})

	if s.staticDir == "" {
		s.logger.Warn("static directory not configured; API only mode")
		return
	}
	if info, err := os.Stat(s.staticDir); err != nil || !info.IsDir() {
		s.logger.Warn("static directory missing", "path", s.staticDir, "error", err)
		return
	}

	if candidate := filepath.Join(s.staticDir, "index.html"); exists(candidate) {
		indexPath = candidate
		s.engine.GET("/", func(c *gin.Context) {
			c.File(indexPath)
		})
	} else {
		s.logger.Warn("index.html not found", "path", candidate)
	}

	if assets := filepath.Join(s.staticDir, "assets"); exists(assets) {
		s.engine.StaticFS("/assets", gin.Dir(assets, false))
	}
	for _, name := range []string{"favicon.ico", "favicon.svg", "manifest.json"} {
		if path := filepath.Join(s.staticDir, name); exists(path) {
			s.engine.StaticFile("/"+name, path)
		}
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
