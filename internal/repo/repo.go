package repo

import (
	"context"

	"github.com/studyhub-gh/backoffice/internal/resource"
)

// Repository is the engine's boundary to the remote record store. The engine
// treats the collection as replace-only: after every mutation it calls List
// again rather than patching its cache, so an alternative incremental-cache
// strategy can be swapped in behind this interface.
type Repository interface {
	List(ctx context.Context, typ resource.Type) ([]resource.Record, error)
	Upsert(ctx context.Context, rec resource.Record) (resource.Record, error)
	DeleteMany(ctx context.Context, typ resource.Type, ids []string) error
	SetFlagMany(ctx context.Context, typ resource.Type, ids []string, flag resource.Field, value bool) error

	ListChildren(ctx context.Context, parentID string, slot resource.Slot) ([]resource.ChildRecord, error)
	ReplaceChildren(ctx context.Context, parentID string, slot resource.Slot, children []resource.ChildRecord) error
}
