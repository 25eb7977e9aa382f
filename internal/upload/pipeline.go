// Package upload validates candidate files, streams them into the blob store
// and resolves them to stable public references. Each field tracks uploads by
// issue order: re-issuing an upload supersedes the one in flight, and a
// superseded attempt's result is discarded even if it settles later.
package upload

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/studyhub-gh/backoffice/internal/apperr"
	"github.com/studyhub-gh/backoffice/internal/resource"
)

// RefPrefix is prepended to blob keys to form the public reference served by
// the assets route.
const RefPrefix = "/assets/"

type State string

const (
	StateIdle      State = "idle"
	StateUploading State = "uploading"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Status is the externally visible state of one upload field.
type Status struct {
	State    State             `json:"state"`
	Progress int               `json:"progress"`
	Ref      *resource.FileRef `json:"ref,omitempty"`
	Error    string            `json:"error,omitempty"`
}

type fieldState struct {
	issue uint64 // latest issued attempt for this field
	Status
}

// Pipeline uploads draft files for a single manager screen.
type Pipeline struct {
	store blobStore
	now   func() time.Time

	mu     sync.Mutex
	fields map[string]*fieldState
}

type blobStore interface {
	Put(key string, r io.Reader) (string, error)
	Delete(key string) error
}

func NewPipeline(store blobStore) *Pipeline {
	return &Pipeline{store: store, now: time.Now, fields: map[string]*fieldState{}}
}

// Upload validates the file against c (type first, then size), stores it
// under a collision-resistant key and returns the resolved reference. A stale
// attempt that was superseded while in flight returns apperr.ErrSuperseded
// and leaves the field's status untouched.
func (p *Pipeline) Upload(ctx context.Context, field, filename, contentType string, size int64, r io.Reader, c resource.FileConstraint) (resource.FileRef, error) {
	if !typeAllowed(contentType, c.Types) {
		return resource.FileRef{}, apperr.ErrInvalidFileType
	}
	if c.MaxBytes > 0 && size > c.MaxBytes {
		return resource.FileRef{}, apperr.ErrFileTooLarge
	}

	fs, issue := p.begin(field)
	key := p.genKey(filename)

	pr := &progressReader{r: r, total: size, report: func(pct int) { p.progress(field, fs, issue, pct) }}
	stored, err := p.store.Put(key, pr)
	if err != nil {
		p.fail(field, fs, issue, err)
		return resource.FileRef{}, apperr.Repo("store blob", err)
	}
	ref := resource.FileRef{URL: RefPrefix + stored, Size: size}
	if !p.succeed(field, fs, issue, ref) {
		return resource.FileRef{}, apperr.ErrSuperseded
	}
	return ref, nil
}

// Remove deletes the stored blob behind a public reference. References not
// minted by this pipeline are ignored.
func (p *Pipeline) Remove(ref string) error {
	key := strings.TrimPrefix(ref, RefPrefix)
	if key == "" || key == ref {
		return nil
	}
	return p.store.Delete(key)
}

// Reset clears every field's tracked state when the owning draft closes.
// In-flight uploads keep streaming but their results are discarded, the same
// as being superseded.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fields = map[string]*fieldState{}
}

// Statuses returns a snapshot of every field's upload state.
func (p *Pipeline) Statuses() map[string]Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]Status, len(p.fields))
	for k, fs := range p.fields {
		out[k] = fs.Status
	}
	return out
}

// FieldStatus returns the state of one field.
func (p *Pipeline) FieldStatus(field string) Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	if fs, ok := p.fields[field]; ok {
		return fs.Status
	}
	return Status{State: StateIdle}
}

func (p *Pipeline) begin(field string) (*fieldState, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fs, ok := p.fields[field]
	if !ok {
		fs = &fieldState{}
		p.fields[field] = fs
	}
	fs.issue++
	fs.Status = Status{State: StateUploading}
	return fs, fs.issue
}

// stale reports whether an attempt's field state was superseded or the whole
// pipeline reset since the attempt began. Callers hold the mutex.
func (p *Pipeline) stale(field string, fs *fieldState, issue uint64) bool {
	return p.fields[field] != fs || fs.issue != issue
}

func (p *Pipeline) progress(field string, fs *fieldState, issue uint64, pct int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stale(field, fs, issue) || fs.State != StateUploading {
		return
	}
	if pct > fs.Progress {
		fs.Progress = pct
	}
}

func (p *Pipeline) succeed(field string, fs *fieldState, issue uint64, ref resource.FileRef) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stale(field, fs, issue) {
		return false
	}
	r := ref
	fs.Status = Status{State: StateSucceeded, Progress: 100, Ref: &r}
	return true
}

func (p *Pipeline) fail(field string, fs *fieldState, issue uint64, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stale(field, fs, issue) {
		return
	}
	fs.Status = Status{State: StateFailed, Progress: fs.Progress, Error: err.Error()}
}

// genKey builds a collision-resistant blob key: timestamp, random suffix,
// original extension.
func (p *Pipeline) genKey(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("uploads/%d-%s%s", p.now().UnixNano(), suffix, ext)
}

func typeAllowed(contentType string, types []string) bool {
	for _, t := range types {
		if strings.EqualFold(contentType, t) {
			return true
		}
	}
	return false
}

// progressReader reports bytes consumed as a 0-100 percentage.
type progressReader struct {
	r      io.Reader
	total  int64
	read   int64
	report func(pct int)
}

func (pr *progressReader) Read(b []byte) (int, error) {
	n, err := pr.r.Read(b)
	pr.read += int64(n)
	if pr.total > 0 {
		pct := int(pr.read * 100 / pr.total)
		if pct > 100 {
			pct = 100
		}
		pr.report(pct)
	}
	return n, err
}
