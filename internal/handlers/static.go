package handlers

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const indexFile = "index.html"

// SPA serves the single-page frontend from dir. Paths that name an existing
// file are served as is; every other non-API path gets index.html so the
// client router can resolve it.
type SPA struct {
	dir string
}

func NewSPA(dir string) *SPA {
	return &SPA{dir: dir}
}

func (s *SPA) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	clean := path.Clean("/" + r.URL.Path)
	if isBackendPath(clean) {
		writeError(w, http.StatusNotFound, "Resource not found")
		return
	}

	if clean != "/" && s.serveFile(w, r, filepath.FromSlash(strings.TrimPrefix(clean, "/"))) {
		return
	}
	if s.serveFile(w, r, indexFile) {
		return
	}
	http.NotFound(w, r)
}

func (s *SPA) serveFile(w http.ResponseWriter, r *http.Request, name string) bool {
	if s.dir == "" {
		return false
	}
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		return false
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		return false
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	return true
}

func isBackendPath(p string) bool {
	for _, prefix := range []string{"/api", "/actuator"} {
		if p == prefix || strings.HasPrefix(p, prefix+"/") {
			return true
		}
	}
	return false
}

