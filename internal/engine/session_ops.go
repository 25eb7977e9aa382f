package engine

import (
	"context"
	"io"
	"strconv"

	"github.com/studyhub-gh/backoffice/internal/apperr"
	"github.com/studyhub-gh/backoffice/internal/resource"
)

// OpenCreate starts a draft for a new record, implicitly cancelling any open
// session.
func (e *Engine) OpenCreate() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.uploads.Reset()
	e.session = &Session{State: StateCreating, Draft: resource.NewDraft(e.schema)}
	return e.viewLocked()
}

// OpenEdit starts a draft seeded from the cached record and loads its child
// collections from the repository. A failed child fetch discards the session:
// a draft holding an empty slot in place of unfetched children would wipe the
// persisted ones on commit. Any previously open session is cancelled.
func (e *Engine) OpenEdit(ctx context.Context, id string) error {
	e.mu.Lock()
	rec, ok := e.findLocked(id)
	if !ok {
		e.mu.Unlock()
		return apperr.ErrNotFound
	}
	e.uploads.Reset()
	sess := &Session{State: StateEditing, RecordID: id, Draft: resource.DraftOf(rec, e.schema)}
	e.session = sess
	slots := e.schema.ChildSlots
	e.mu.Unlock()

	for _, slot := range slots {
		kids, err := e.repo.ListChildren(ctx, id, slot)
		if err != nil {
			e.mu.Lock()
			if e.session == sess {
				e.session = nil
			}
			e.mu.Unlock()
			return apperr.Repo("list children", err)
		}
		e.mu.Lock()
		if e.session == sess {
			sess.Draft.Children[slot] = kids
		}
		e.mu.Unlock()
	}
	return nil
}

// Cancel discards the draft and its unsaved children without touching the
// repository. Upload statuses of the discarded draft are cleared with it.
func (e *Engine) Cancel() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.session = nil
	e.uploads.Reset()
	return e.viewLocked()
}

// withDraft runs fn against the open draft under the lock.
func (e *Engine) withDraft(fn func(d *resource.Draft) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil || e.session.State == StateCommitting {
		return apperr.ErrNoDraft
	}
	return fn(e.session.Draft)
}

func (e *Engine) SetDraftField(f resource.Field, v string) error {
	return e.withDraft(func(d *resource.Draft) error { return d.SetField(f, v) })
}

func (e *Engine) SetDraftFlag(f resource.Field, v bool) error {
	return e.withDraft(func(d *resource.Draft) error { return d.SetFlag(f, v) })
}

func (e *Engine) AppendDraftItem(f resource.Field, v string) error {
	return e.withDraft(func(d *resource.Draft) error { return d.AppendItem(f, v) })
}

func (e *Engine) ReplaceDraftItem(f resource.Field, i int, v string) error {
	return e.withDraft(func(d *resource.Draft) error { return d.ReplaceItem(f, i, v) })
}

func (e *Engine) RemoveDraftItem(f resource.Field, i int) error {
	return e.withDraft(func(d *resource.Draft) error { return d.RemoveItem(f, i) })
}

func (e *Engine) AddDraftChild(slot resource.Slot, c resource.ChildRecord) error {
	return e.withDraft(func(d *resource.Draft) error { return d.AddChild(slot, c) })
}

func (e *Engine) ReplaceDraftChild(slot resource.Slot, i int, c resource.ChildRecord) error {
	return e.withDraft(func(d *resource.Draft) error { return d.ReplaceChild(slot, i, c) })
}

func (e *Engine) RemoveDraftChild(slot resource.Slot, i int) error {
	return e.withDraft(func(d *resource.Draft) error { return d.RemoveChild(slot, i) })
}

// Commit validates the draft and persists it: parent upsert first, then — and
// only then — every child slot is replaced wholesale. Validation failures
// make no repository call. A parent failure leaves the cache untouched and
// the session editable. A child failure still refreshes (the parent write
// stands) but keeps the session open with its children intact for retry.
func (e *Engine) Commit(ctx context.Context) error {
	e.mu.Lock()
	sess := e.session
	if sess == nil || sess.State == StateCommitting {
		e.mu.Unlock()
		return apperr.ErrNoDraft
	}
	if err := sess.Draft.Validate(e.schema); err != nil {
		e.mu.Unlock()
		return err
	}
	prev := sess.State
	sess.State = StateCommitting
	rec := sess.Draft.Record.Clone()
	rec.Type = e.schema.Type
	type slotChildren struct {
		slot resource.Slot
		kids []resource.ChildRecord
	}
	var slots []slotChildren
	for _, slot := range e.schema.ChildSlots {
		kids := make([]resource.ChildRecord, 0, len(sess.Draft.Children[slot]))
		for _, c := range sess.Draft.Children[slot] {
			kids = append(kids, c.Clone())
		}
		slots = append(slots, slotChildren{slot: slot, kids: kids})
	}
	e.mu.Unlock()

	saved, err := e.repo.Upsert(ctx, rec)
	if err != nil {
		e.mu.Lock()
		if e.session == sess {
			sess.State = prev
			sess.LastErr = err.Error()
		}
		e.mu.Unlock()
		return apperr.Repo("upsert", err)
	}

	var childErr error
	for _, sc := range slots {
		if err := e.repo.ReplaceChildren(ctx, saved.ID, sc.slot, sc.kids); err != nil {
			childErr = apperr.Repo("replace children", err)
			break
		}
	}

	e.mu.Lock()
	if e.session == sess {
		if childErr == nil {
			e.session = nil
			e.uploads.Reset()
		} else {
			// retry keeps the unsaved children; the parent is now persisted
			sess.State = StateEditing
			sess.RecordID = saved.ID
			sess.Draft.Record.ID = saved.ID
			sess.LastErr = childErr.Error()
		}
	}
	e.mu.Unlock()

	if err := e.Refresh(ctx); err != nil {
		e.log.Warn().Err(err).Msg("refresh after commit failed")
		if childErr == nil {
			childErr = err
		}
	}
	return childErr
}

// UploadDraftFile runs the upload pipeline for one of the draft's file fields
// and, unless the attempt was superseded, applies the resolved reference to
// the draft.
func (e *Engine) UploadDraftFile(ctx context.Context, f resource.Field, filename, contentType string, size int64, r io.Reader) (resource.FileRef, error) {
	e.mu.Lock()
	c, ok := e.schema.FileFields[f]
	if !ok {
		e.mu.Unlock()
		return resource.FileRef{}, apperr.ErrUnknownField
	}
	sess := e.session
	if sess == nil {
		e.mu.Unlock()
		return resource.FileRef{}, apperr.ErrNoDraft
	}
	e.mu.Unlock()

	ref, err := e.uploads.Upload(ctx, string(f), filename, contentType, size, r, c)
	if err != nil {
		return resource.FileRef{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != sess {
		return resource.FileRef{}, apperr.ErrNoDraft
	}
	rc := ref
	if err := sess.Draft.SetFile(f, &rc); err != nil {
		return resource.FileRef{}, err
	}
	return ref, nil
}

// UploadChildFile uploads a section-B style document for one child record.
// The upload is tracked under its own field key so per-child progress and
// supersede ordering are independent of the main draft fields.
func (e *Engine) UploadChildFile(ctx context.Context, slot resource.Slot, index int, filename, contentType string, size int64, r io.Reader) (resource.FileRef, error) {
	e.mu.Lock()
	c, ok := e.schema.FileFields[resource.FieldFile]
	if !ok || !e.schema.HasSlot(slot) {
		e.mu.Unlock()
		return resource.FileRef{}, apperr.ErrUnknownField
	}
	sess := e.session
	if sess == nil {
		e.mu.Unlock()
		return resource.FileRef{}, apperr.ErrNoDraft
	}
	if kids := sess.Draft.Children[slot]; index < 0 || index >= len(kids) {
		e.mu.Unlock()
		return resource.FileRef{}, apperr.ErrNotFound
	}
	e.mu.Unlock()

	field := string(slot) + "." + strconv.Itoa(index) + ".file"
	ref, err := e.uploads.Upload(ctx, field, filename, contentType, size, r, c)
	if err != nil {
		return resource.FileRef{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != sess {
		return resource.FileRef{}, apperr.ErrNoDraft
	}
	kids := sess.Draft.Children[slot]
	if index >= len(kids) {
		return resource.FileRef{}, apperr.ErrNotFound
	}
	rc := ref
	kids[index].File = &rc
	return ref, nil
}
