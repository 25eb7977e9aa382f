package http

import (
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/studyhub-gh/backoffice/internal/resource"
	"github.com/studyhub-gh/backoffice/internal/storage"
)

// MountAssets serves stored blobs on the public directory surface.
// GET /assets/* returns the blob at whatever follows /assets/.
func MountAssets(r chi.Router, bs storage.BlobStore) {
	r.Get("/*", func(w http.ResponseWriter, req *http.Request) {
		key := strings.TrimPrefix(chi.URLParam(req, "*"), "/")
		rc, err := bs.Get(key)
		if err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		defer rc.Close()
		ct := mime.TypeByExtension(path.Ext(key))
		if ct == "" {
			ct = "application/octet-stream"
		}
		w.Header().Set("Content-Type", ct)
		_, _ = io.Copy(w, rc)
	})
}

// DownloadHandler bumps a record's download counter. Counters are
// server-owned; this is the only writer.
func (s *Server) DownloadHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		typ := resource.Type(chi.URLParam(r, "type"))
		if _, ok := s.engines[typ]; !ok {
			http.Error(w, "unknown resource type", http.StatusNotFound)
			return
		}
		if err := s.counters.Bump(r.Context(), typ, chi.URLParam(r, "id"), "downloads"); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
