// Package web embeds the game board (dist/) and serves it as a single-page
// application.
package web

import (
	"embed"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

//go:embed all:dist
var distFS embed.FS

const indexFile = "index.html"

type spa struct {
	files fs.FS
	fs    http.Handler
}

// SPAHandler serves files from dist/. Unknown paths get index.html so the
// board can route client-side; unknown /api/ paths stay 404.
func SPAHandler() http.Handler {
	sub, err := fs.Sub(distFS, "dist")
	if err != nil {
		panic("web: failed to create sub filesystem: " + err.Error())
	}
	return &spa{files: sub, fs: http.FileServer(http.FS(sub))}
}

func (s *spa) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		http.NotFound(w, r)
		return
	}

	name := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
	if name == "" || name == "." || !s.exists(name) {
		name = indexFile
	}

	if name == indexFile {
		// The board changes with every deploy.
		w.Header().Set("Cache-Control", "no-cache")
		r.URL.Path = "/"
	} else {
		w.Header().Set("Cache-Control", "public, max-age=3600")
	}
	s.fs.ServeHTTP(w, r)
}

func (s *spa) exists(name string) bool {
	info, err := fs.Stat(s.files, name)
	return err == nil && !info.IsDir()
}
