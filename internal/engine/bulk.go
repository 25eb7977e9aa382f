package engine

import (
	"context"

	"github.com/studyhub-gh/backoffice/internal/apperr"
	"github.com/studyhub-gh/backoffice/internal/resource"
)

// Delete removes a single record and its stored blobs, then refreshes.
func (e *Engine) Delete(ctx context.Context, id string) error {
	e.mu.Lock()
	rec, ok := e.findLocked(id)
	e.mu.Unlock()
	if !ok {
		return apperr.ErrNotFound
	}
	if err := e.repo.DeleteMany(ctx, e.schema.Type, []string{id}); err != nil {
		return apperr.Repo("delete", err)
	}
	e.removeBlobs([]resource.Record{rec})
	return e.Refresh(ctx)
}

// BulkDelete removes every selected record in one batched repository call.
// An empty selection is a local guard error and never reaches the repository.
// The collection is re-fetched afterward regardless of outcome, so the view
// reflects the repository's true post-state even after a mid-batch failure.
func (e *Engine) BulkDelete(ctx context.Context) error {
	e.mu.Lock()
	ids := e.selection.IDs()
	if len(ids) == 0 {
		e.mu.Unlock()
		return apperr.ErrNoSelection
	}
	victims := make([]resource.Record, 0, len(ids))
	for _, id := range ids {
		if r, ok := e.findLocked(id); ok {
			victims = append(victims, r)
		}
	}
	e.mu.Unlock()

	opErr := e.repo.DeleteMany(ctx, e.schema.Type, ids)
	if opErr == nil {
		e.mu.Lock()
		e.selection.Clear()
		e.mu.Unlock()
		e.removeBlobs(victims)
	} else {
		opErr = apperr.Repo("bulk delete", opErr)
	}
	if err := e.Refresh(ctx); err != nil && opErr == nil {
		opErr = err
	}
	return opErr
}

// BulkSetFlag applies verify/unverify (or feature/unfeature) to the whole
// selection in one batched call, clears the selection on success, and always
// refreshes afterward.
func (e *Engine) BulkSetFlag(ctx context.Context, flag resource.Field, value bool) error {
	e.mu.Lock()
	ids := e.selection.IDs()
	e.mu.Unlock()
	if len(ids) == 0 {
		return apperr.ErrNoSelection
	}

	opErr := e.repo.SetFlagMany(ctx, e.schema.Type, ids, flag, value)
	if opErr == nil {
		e.mu.Lock()
		e.selection.Clear()
		e.mu.Unlock()
	} else {
		opErr = apperr.Repo("bulk set flag", opErr)
	}
	if err := e.Refresh(ctx); err != nil && opErr == nil {
		opErr = err
	}
	return opErr
}

// removeBlobs best-effort deletes the stored files of removed records.
func (e *Engine) removeBlobs(recs []resource.Record) {
	for _, r := range recs {
		for _, ref := range []*resource.FileRef{r.File, r.Image} {
			if ref == nil {
				continue
			}
			if err := e.uploads.Remove(ref.URL); err != nil {
				e.log.Warn().Err(err).Str("ref", ref.URL).Msg("delete stored blob failed")
			}
		}
	}
}
