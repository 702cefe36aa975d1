package api

import (
	"embed"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"
)

// Embedded dashboard assets: a small static landing page linking into the
// JSON/cache/authority endpoints and the generated Swagger UI.
//
//go:embed dist/*
var embeddedUI embed.FS

func getEmbedFS() static.ServeFileSystem {
	fs, err := static.EmbedFolder(embeddedUI, "dist")
	if err != nil {
		panic("failed to get embedded UI filesystem: " + err.Error())
	}
	return fs
}

// MountSPA mounts the embedded dashboard at "/", falling back to index.html
// for any non-API, non-swagger route.
func MountSPA(r *gin.Engine, logger *slog.Logger) {
	distFS := getEmbedFS()
	r.Use(static.Serve("/", distFS))

	r.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.RequestURI, "/api") || strings.HasPrefix(c.Request.RequestURI, "/swagger") {
			c.Status(http.StatusNotFound)
			return
		}
		index, err := distFS.Open("index.html")
		if err != nil {
			if logger != nil {
				logger.Error("failed to open index.html", "error", err)
			}
			c.Status(http.StatusNotFound)
			return
		}
		defer index.Close()
		stat, _ := index.Stat()
		http.ServeContent(c.Writer, c.Request, "index.html", stat.ModTime(), index)
	})
}
