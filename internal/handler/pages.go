package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PageRoutes are the client-side routes answered with the SPA index.
var PageRoutes = []string{
	"/", "/auth", "/student-auth", "/demo", "/student-dashboard",
	"/classes", "/students", "/attendance", "/scan",
}

// RegisterPages serves the frontend bundle in dir and the not-found route.
func RegisterPages(r *gin.Engine, dir string, log *zap.Logger) {
	index := filepath.Join(dir, "index.html")
	for _, p := range PageRoutes {
		r.GET(p, func(c *gin.Context) { c.File(index) })
	}
	r.Static("/static", filepath.Join(dir, "static"))
	r.NoRoute(notFound(filepath.Join(dir, "404.html"), log))
}

func notFound(page string, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if path == "/v1" || strings.HasPrefix(path, "/v1/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		log.Info("no route for path", zap.String("path", path))
		if b, err := os.ReadFile(page); err == nil {
			c.Data(http.StatusNotFound, "text/html; charset=utf-8", b)
			return
		}
		c.String(http.StatusNotFound, "404 page not found")
	}
}
