package worker

import (
	"embed"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

//go:embed static/*
var staticFS embed.FS

// uiFS is rooted at the static directory.
var uiFS fs.FS

var assetTypes = map[string]string{
	".js":  "application/javascript",
	".css": "text/css; charset=utf-8",
	".svg": "image/svg+xml",
}

func init() {
	var err error
	uiFS, err = fs.Sub(staticFS, "static")
	if err != nil {
		panic("failed to create sub filesystem: " + err.Error())
	}
}

func noCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
}

// serveIndex serves the single-page UI for every page route.
func serveIndex(w http.ResponseWriter, _ *http.Request) {
	content, err := fs.ReadFile(uiFS, "index.html")
	if err != nil {
		http.Error(w, "UI not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	noCache(w)
	_, _ = w.Write(content)
}

// serveAssets serves files under /assets/ from the embedded filesystem.
func serveAssets(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
	content, err := fs.ReadFile(uiFS, name)
	if err != nil {
		http.Error(w, "Asset not found", http.StatusNotFound)
		return
	}
	if ct, ok := assetTypes[path.Ext(name)]; ok {
		w.Header().Set("Content-Type", ct)
	}
	noCache(w)
	_, _ = w.Write(content)
}
