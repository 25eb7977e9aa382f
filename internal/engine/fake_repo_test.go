package engine

import (
	"context"
	"sort"
	"sync"

	"github.com/studyhub-gh/backoffice/internal/resource"
)

// fakeRepo is an in-memory Repository that counts calls per operation, so
// tests can assert that local guard errors never reach the repository.
type fakeRepo struct {
	mu       sync.Mutex
	records  map[string]resource.Record
	children map[string]map[resource.Slot][]resource.ChildRecord
	calls    map[string]int
	fail     map[string]error
}

func newFakeRepo(recs ...resource.Record) *fakeRepo {
	f := &fakeRepo{
		records:  map[string]resource.Record{},
		children: map[string]map[resource.Slot][]resource.ChildRecord{},
		calls:    map[string]int{},
		fail:     map[string]error{},
	}
	for _, r := range recs {
		f.records[r.ID] = r
	}
	return f
}

func (f *fakeRepo) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeRepo) failWith(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, op)
	} else {
		f.fail[op] = err
	}
}

func (f *fakeRepo) op(name string) error {
	f.calls[name]++
	return f.fail[name]
}

func (f *fakeRepo) List(ctx context.Context, typ resource.Type) ([]resource.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.op("list"); err != nil {
		return nil, err
	}
	out := make([]resource.Record, 0, len(f.records))
	for _, r := range f.records {
		if r.Type == typ {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRepo) Upsert(ctx context.Context, rec resource.Record) (resource.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.op("upsert"); err != nil {
		return resource.Record{}, err
	}
	if rec.ID == "" {
		rec.ID = "gen-" + rec.Title
	}
	f.records[rec.ID] = rec
	return rec, nil
}

func (f *fakeRepo) DeleteMany(ctx context.Context, typ resource.Type, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.op("deleteMany"); err != nil {
		return err
	}
	for _, id := range ids {
		delete(f.records, id)
		delete(f.children, id)
	}
	return nil
}

func (f *fakeRepo) SetFlagMany(ctx context.Context, typ resource.Type, ids []string, flag resource.Field, value bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.op("setFlagMany"); err != nil {
		return err
	}
	for _, id := range ids {
		r, ok := f.records[id]
		if !ok {
			continue
		}
		switch flag {
		case resource.FieldVerified:
			r.Verified = value
		case resource.FieldFeatured:
			r.Featured = value
		}
		f.records[id] = r
	}
	return nil
}

func (f *fakeRepo) ListChildren(ctx context.Context, parentID string, slot resource.Slot) ([]resource.ChildRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.op("listChildren"); err != nil {
		return nil, err
	}
	return append([]resource.ChildRecord(nil), f.children[parentID][slot]...), nil
}

func (f *fakeRepo) ReplaceChildren(ctx context.Context, parentID string, slot resource.Slot, children []resource.ChildRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.op("replaceChildren"); err != nil {
		return err
	}
	if f.children[parentID] == nil {
		f.children[parentID] = map[resource.Slot][]resource.ChildRecord{}
	}
	f.children[parentID][slot] = append([]resource.ChildRecord(nil), children...)
	return nil
}
