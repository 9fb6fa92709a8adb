// Package web serves the browser app shell from memory.
package web

import (
	"embed"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strings"
)

// CacheName versions the precached shell; bump it when an asset changes.
const CacheName = "lumina-shell-v3"

//go:embed static
var staticFS embed.FS

type asset struct {
	body        []byte
	contentType string
}

// Shell serves the precached app shell. Every asset shares the cache name as
// its ETag, so a version bump invalidates the whole shell at once.
type Shell struct {
	assets map[string]asset
	etag   string
}

// NewShell loads every embedded asset into memory.
func NewShell() (*Shell, error) {
	return newShell(staticFS, "static", CacheName)
}

func newShell(fsys fs.FS, root, version string) (*Shell, error) {
	s := &Shell{assets: make(map[string]asset), etag: `"` + version + `"`}
	err := fs.WalkDir(fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		body, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		ct := mime.TypeByExtension(path.Ext(p))
		if ct == "" {
			ct = "application/octet-stream"
		}
		s.assets["/"+strings.TrimPrefix(p, root+"/")] = asset{body: body, contentType: ct}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("precache shell: %w", err)
	}
	if _, ok := s.assets["/index.html"]; !ok {
		return nil, fmt.Errorf("precache shell: index.html missing")
	}
	return s, nil
}

// Paths lists the precached asset paths.
func (s *Shell) Paths() []string {
	out := make([]string, 0, len(s.assets))
	for p := range s.assets {
		out = append(out, p)
	}
	return out
}

func (s *Shell) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	p := r.URL.Path
	if p == "/" || p == "" {
		p = "/index.html"
	}
	a, ok := s.assets[p]
	if !ok {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("ETag", s.etag)
	w.Header().Set("Cache-Control", "no-cache")
	if match := r.Header.Get("If-None-Match"); match != "" && etagMatches(match, s.etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", a.contentType)
	w.Header().Set("Content-Length", fmt.Sprint(len(a.body)))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		_, _ = w.Write(a.body)
	}
}

func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}
