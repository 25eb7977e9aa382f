package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/studyhub-gh/backoffice/internal/engine"
	"github.com/studyhub-gh/backoffice/internal/resource"
)

// CounterStore bumps server-owned counters from the public directory surface.
// The engine itself never writes them.
type CounterStore interface {
	Bump(ctx context.Context, typ resource.Type, id, counter string) error
}

// Server adapts HTTP calls onto the per-type engines. It owns no formatting
// beyond JSON encoding of the view model.
type Server struct {
	engines  map[resource.Type]*engine.Engine
	counters CounterStore
	log      zerolog.Logger
}

func NewServer(engines map[resource.Type]*engine.Engine, counters CounterStore, log zerolog.Logger) *Server {
	return &Server{engines: engines, counters: counters, log: log}
}

// Mount attaches the manager routes under /{type}. Callers wrap the router
// with auth middleware.
func (s *Server) Mount(r chi.Router) {
	r.Route("/{type}", func(tr chi.Router) {
		tr.Use(s.requireEngine)
		tr.Get("/", s.view)
		tr.Put("/query", s.setQuery)
		tr.Put("/filter", s.setFilter)
		tr.Put("/page", s.setPage)
		tr.Put("/page-size", s.setPageSize)

		tr.Post("/selection/toggle", s.toggleSelection)
		tr.Post("/selection/all", s.selectAllVisible)
		tr.Post("/selection/clear", s.clearSelection)

		tr.Post("/drafts", s.openCreate)
		tr.Post("/drafts/{id}", s.openEdit)
		tr.Patch("/draft", s.patchDraft)
		tr.Post("/draft/commit", s.commitDraft)
		tr.Delete("/draft", s.cancelDraft)
		tr.Post("/draft/files/{field}", s.uploadDraftFile)
		tr.Post("/draft/children/{slot}/{index}/file", s.uploadChildFile)
		tr.Get("/uploads", s.uploadStatuses)

		tr.Delete("/records/{id}", s.deleteRecord)
		tr.Post("/bulk/delete", s.bulkDelete)
		tr.Post("/bulk/flag", s.bulkFlag)
	})
}

type ctxKey string

const engineKey ctxKey = "engine"

func (s *Server) requireEngine(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		typ := resource.Type(chi.URLParam(r, "type"))
		e, ok := s.engines[typ]
		if !ok {
			http.Error(w, "unknown resource type", http.StatusNotFound)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), engineKey, e)))
	})
}

func engineFrom(r *http.Request) *engine.Engine {
	return r.Context().Value(engineKey).(*engine.Engine)
}

func (s *Server) view(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, engineFrom(r).View())
}

func (s *Server) setQuery(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Q string `json:"q"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, engineFrom(r).SetQuery(req.Q))
}

func (s *Server) setFilter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Field string `json:"field"`
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	v, err := engineFrom(r).SetFilter(resource.Field(req.Field), req.Value)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) setPage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Page int `json:"page"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, engineFrom(r).SetPage(req.Page))
}

func (s *Server) setPageSize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Size int `json:"size"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	v, err := engineFrom(r).SetPageSize(req.Size)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) toggleSelection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, engineFrom(r).Toggle(req.ID))
}

func (s *Server) selectAllVisible(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, engineFrom(r).SelectAllVisible())
}

func (s *Server) clearSelection(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, engineFrom(r).ClearSelection())
}

func (s *Server) openCreate(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, engineFrom(r).OpenCreate())
}

func (s *Server) openEdit(w http.ResponseWriter, r *http.Request) {
	e := engineFrom(r)
	if err := e.OpenEdit(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e.View())
}

// patchDraft applies one draft edit. The op selects the mutation; scalar,
// flag, list-item and child-record edits all go through here.
func (s *Server) patchDraft(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Op    string                `json:"op"`
		Field string                `json:"field,omitempty"`
		Value string                `json:"value,omitempty"`
		Flag  bool                  `json:"flag,omitempty"`
		Index int                   `json:"index,omitempty"`
		Slot  string                `json:"slot,omitempty"`
		Child *resource.ChildRecord `json:"child,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	e := engineFrom(r)
	f := resource.Field(req.Field)
	slot := resource.Slot(req.Slot)

	var err error
	switch req.Op {
	case "set":
		err = e.SetDraftField(f, req.Value)
	case "flag":
		err = e.SetDraftFlag(f, req.Flag)
	case "list-append":
		err = e.AppendDraftItem(f, req.Value)
	case "list-replace":
		err = e.ReplaceDraftItem(f, req.Index, req.Value)
	case "list-remove":
		err = e.RemoveDraftItem(f, req.Index)
	case "child-add":
		err = e.AddDraftChild(slot, childOrZero(req.Child))
	case "child-replace":
		err = e.ReplaceDraftChild(slot, req.Index, childOrZero(req.Child))
	case "child-remove":
		err = e.RemoveDraftChild(slot, req.Index)
	default:
		http.Error(w, "unknown op", http.StatusBadRequest)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e.View())
}

func childOrZero(c *resource.ChildRecord) resource.ChildRecord {
	if c == nil {
		return resource.ChildRecord{}
	}
	return *c
}

func (s *Server) commitDraft(w http.ResponseWriter, r *http.Request) {
	e := engineFrom(r)
	if err := e.Commit(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e.View())
}

func (s *Server) cancelDraft(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, engineFrom(r).Cancel())
}

func (s *Server) deleteRecord(w http.ResponseWriter, r *http.Request) {
	e := engineFrom(r)
	if err := e.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e.View())
}

func (s *Server) bulkDelete(w http.ResponseWriter, r *http.Request) {
	e := engineFrom(r)
	if err := e.BulkDelete(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e.View())
}

func (s *Server) bulkFlag(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Flag  string `json:"flag"`
		Value bool   `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	e := engineFrom(r)
	if err := e.BulkSetFlag(r.Context(), resource.Field(strings.ToLower(req.Flag)), req.Value); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e.View())
}
