package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/studyhub-gh/backoffice/internal/resource"
)

// Uploads are streamed through the engine's pipeline. The multipart part
// carries the declared content type and size used for validation; progress is
// polled via GET /{type}/uploads.
func (s *Server) uploadStatuses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, engineFrom(r).UploadStatuses())
}

func (s *Server) uploadDraftFile(w http.ResponseWriter, r *http.Request) {
	f, hdr, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file required", http.StatusBadRequest)
		return
	}
	defer f.Close()

	e := engineFrom(r)
	field := resource.Field(chi.URLParam(r, "field"))
	ref, err := e.UploadDraftFile(r.Context(), field, hdr.Filename, hdr.Header.Get("Content-Type"), hdr.Size, f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ref)
}

func (s *Server) uploadChildFile(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		http.Error(w, "bad index", http.StatusBadRequest)
		return
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file required", http.StatusBadRequest)
		return
	}
	defer f.Close()

	e := engineFrom(r)
	slot := resource.Slot(chi.URLParam(r, "slot"))
	ref, err := e.UploadChildFile(r.Context(), slot, index, hdr.Filename, hdr.Header.Get("Content-Type"), hdr.Size, f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ref)
}
