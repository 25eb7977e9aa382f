// Package engine implements the filtered content management core shared by
// every manager screen: one local read-through cache of the remote record
// collection, kept consistent under search, filtering, pagination,
// multi-select bulk operations and draft editing. The engine is instantiated
// once per resource type; a concrete type contributes only its schema.
package engine

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/studyhub-gh/backoffice/internal/apperr"
	"github.com/studyhub-gh/backoffice/internal/repo"
	"github.com/studyhub-gh/backoffice/internal/resource"
	"github.com/studyhub-gh/backoffice/internal/upload"
)

// Engine holds the view state of one manager screen. All state transitions
// are serialized by the mutex; repository calls and uploads run outside it so
// a slow call never blocks other interactions.
type Engine struct {
	schema  resource.Schema
	repo    repo.Repository
	uploads *upload.Pipeline
	log     zerolog.Logger

	mu        sync.Mutex
	records   []resource.Record // read-through cache, replaced wholesale on refresh
	query     string
	filters   map[resource.Field]string
	page      int
	pageSize  int
	selection Selection
	session   *Session
}

func New(schema resource.Schema, rp repo.Repository, uploads *upload.Pipeline, log zerolog.Logger) *Engine {
	return &Engine{
		schema:    schema,
		repo:      rp,
		uploads:   uploads,
		log:       log.With().Str("resource", string(schema.Type)).Logger(),
		filters:   map[resource.Field]string{},
		page:      1,
		pageSize:  DefaultPageSize,
		selection: Selection{},
	}
}

func (e *Engine) Schema() resource.Schema { return e.schema }

// View is the reactive view model consumed by the presentation layer.
type View struct {
	Records  []resource.Record         `json:"records"`
	Total    int                       `json:"total"`
	PageInfo PageInfo                  `json:"page_info"`
	Query    string                    `json:"query,omitempty"`
	Filters  map[resource.Field]string `json:"filters,omitempty"`
	Selected []string                  `json:"selected"`
	Session  *SessionView              `json:"session,omitempty"`
	Uploads  map[string]upload.Status  `json:"uploads,omitempty"`
}

// Refresh replaces the cached collection with the repository's current state
// and reconciles the selection set against it. A failed list leaves the cache
// untouched.
func (e *Engine) Refresh(ctx context.Context) error {
	recs, err := e.repo.List(ctx, e.schema.Type)
	if err != nil {
		return apperr.Repo("list", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.records = recs
	e.reconcileLocked()
	return nil
}

func (e *Engine) reconcileLocked() {
	present := make(map[string]struct{}, len(e.records))
	for _, r := range e.records {
		present[r.ID] = struct{}{}
	}
	e.selection.Retain(present)
}

// View recomputes and returns the visible slice. The persisted page is the
// clamped one, so a filter change that empties the active page resets it.
func (e *Engine) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.viewLocked()
}

func (e *Engine) viewLocked() View {
	filtered := e.filteredLocked()
	start, end, info := Paginate(len(filtered), e.page, e.pageSize)
	e.page = info.Page

	fcopy := make(map[resource.Field]string, len(e.filters))
	for k, v := range e.filters {
		fcopy[k] = v
	}
	return View{
		Records:  filtered[start:end],
		Total:    len(e.records),
		PageInfo: info,
		Query:    e.query,
		Filters:  fcopy,
		Selected: e.selection.IDs(),
		Session:  e.session.view(),
		Uploads:  e.uploads.Statuses(),
	}
}

func (e *Engine) filteredLocked() []resource.Record {
	out := make([]resource.Record, 0, len(e.records))
	for _, r := range e.records {
		if Visible(r, e.query, e.filters, e.schema) {
			out = append(out, r)
		}
	}
	return out
}

func (e *Engine) visibleIDsLocked() []string {
	filtered := e.filteredLocked()
	start, end, info := Paginate(len(filtered), e.page, e.pageSize)
	e.page = info.Page
	ids := make([]string, 0, end-start)
	for _, r := range filtered[start:end] {
		ids = append(ids, r.ID)
	}
	return ids
}

// SetQuery replaces the free-text search term.
func (e *Engine) SetQuery(q string) View {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.query = q
	return e.viewLocked()
}

// SetFilter constrains one filter dimension; "" lifts the constraint.
func (e *Engine) SetFilter(f resource.Field, value string) (View, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.schema.Filters(f) {
		return e.viewLocked(), apperr.ErrUnknownField
	}
	if value == "" {
		delete(e.filters, f)
	} else {
		e.filters[f] = value
	}
	return e.viewLocked(), nil
}

// SetPage moves to a 1-based page; out-of-range values clamp in viewLocked.
func (e *Engine) SetPage(page int) View {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.page = page
	return e.viewLocked()
}

// SetPageSize switches to one of the fixed page sizes.
func (e *Engine) SetPageSize(size int) (View, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !AllowedPageSize(size) {
		return e.viewLocked(), apperr.ErrUnknownField
	}
	e.pageSize = size
	return e.viewLocked(), nil
}

// Toggle flips the selection of one record. Ids not in the collection are
// ignored, preserving the selection-subset invariant.
func (e *Engine) Toggle(id string) View {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range e.records {
		if r.ID == id {
			e.selection.Toggle(id)
			break
		}
	}
	return e.viewLocked()
}

// SelectAllVisible toggles selection of every id on the current page.
func (e *Engine) SelectAllVisible() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selection.ToggleAll(e.visibleIDsLocked())
	return e.viewLocked()
}

func (e *Engine) ClearSelection() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selection.Clear()
	return e.viewLocked()
}

// UploadStatuses snapshots the per-field upload pipeline state.
func (e *Engine) UploadStatuses() map[string]upload.Status {
	return e.uploads.Statuses()
}

func (e *Engine) findLocked(id string) (resource.Record, bool) {
	for _, r := range e.records {
		if r.ID == id {
			return r, true
		}
	}
	return resource.Record{}, false
}
