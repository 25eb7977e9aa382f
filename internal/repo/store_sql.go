package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/studyhub-gh/backoffice/internal/apperr"
	"github.com/studyhub-gh/backoffice/internal/resource"
)

// SQLRepo persists records in sqlite or postgres. Array-valued free-text
// fields travel as one JSON column; file references are flattened to
// url/size column pairs and rebuilt on read.
type SQLRepo struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

func NewSQLRepo(db *sql.DB, driver string) *SQLRepo {
	return &SQLRepo{db: db, driver: driver}
}

// listsJSON is the wire shape of the record's ordered string lists.
type listsJSON struct {
	Requirements []string `json:"requirements,omitempty"`
	Benefits     []string `json:"benefits,omitempty"`
	Eligibility  []string `json:"eligibility,omitempty"`
}

const recordCols = `id,resource_type,title,code,provider,category,status,year,verified,featured,
file_url,file_size,image_url,image_size,lists_json,downloads,views,created_at`

func (s *SQLRepo) List(ctx context.Context, typ resource.Type) ([]resource.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordCols+` FROM resources WHERE resource_type=$1 ORDER BY created_at DESC, id`,
		string(typ))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []resource.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanRecord(rows *sql.Rows) (resource.Record, error) {
	var (
		r                 resource.Record
		typ               string
		fileURL, imageURL string
		fileSize, imgSize int64
		lists             string
	)
	if err := rows.Scan(&r.ID, &typ, &r.Title, &r.Code, &r.Provider, &r.Category, &r.Status,
		&r.Year, &r.Verified, &r.Featured,
		&fileURL, &fileSize, &imageURL, &imgSize, &lists,
		&r.Downloads, &r.Views, &r.CreatedAt); err != nil {
		return resource.Record{}, err
	}
	r.Type = resource.Type(typ)
	if fileURL != "" {
		r.File = &resource.FileRef{URL: fileURL, Size: fileSize}
	}
	if imageURL != "" {
		r.Image = &resource.FileRef{URL: imageURL, Size: imgSize}
	}
	if lists != "" {
		var lj listsJSON
		if err := json.Unmarshal([]byte(lists), &lj); err != nil {
			return resource.Record{}, err
		}
		r.Requirements = lj.Requirements
		r.Benefits = lj.Benefits
		r.Eligibility = lj.Eligibility
	}
	return r, nil
}

// Upsert inserts or updates a record. Downloads, views and created_at are
// server-owned: an update never rewrites them.
func (s *SQLRepo) Upsert(ctx context.Context, rec resource.Record) (resource.Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt == 0 {
		rec.CreatedAt = time.Now().Unix()
	}
	lj, err := json.Marshal(listsJSON{
		Requirements: rec.Requirements,
		Benefits:     rec.Benefits,
		Eligibility:  rec.Eligibility,
	})
	if err != nil {
		return resource.Record{}, err
	}
	var fileURL, imageURL string
	var fileSize, imgSize int64
	if rec.File != nil {
		fileURL, fileSize = rec.File.URL, rec.File.Size
	}
	if rec.Image != nil {
		imageURL, imgSize = rec.Image.URL, rec.Image.Size
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO resources (`+recordCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,0,0,$16)
		ON CONFLICT (id) DO UPDATE SET
		  title=EXCLUDED.title, code=EXCLUDED.code, provider=EXCLUDED.provider,
		  category=EXCLUDED.category, status=EXCLUDED.status, year=EXCLUDED.year,
		  verified=EXCLUDED.verified, featured=EXCLUDED.featured,
		  file_url=EXCLUDED.file_url, file_size=EXCLUDED.file_size,
		  image_url=EXCLUDED.image_url, image_size=EXCLUDED.image_size,
		  lists_json=EXCLUDED.lists_json`,
		rec.ID, string(rec.Type), rec.Title, rec.Code, rec.Provider, rec.Category, rec.Status,
		rec.Year, rec.Verified, rec.Featured,
		fileURL, fileSize, imageURL, imgSize, string(lj), rec.CreatedAt)
	if err != nil {
		return resource.Record{}, err
	}
	return rec, nil
}

// DeleteMany removes the given ids in one batched statement.
func (s *SQLRepo) DeleteMany(ctx context.Context, typ resource.Type, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	q := `DELETE FROM resources WHERE resource_type=$1 AND id IN (` + placeholders(2, len(ids)) + `)`
	_, err := s.db.ExecContext(ctx, q, args(string(typ), ids)...)
	return err
}

// SetFlagMany flips one boolean flag on every given id in one batched
// statement. Only the verified and featured flags are writable.
func (s *SQLRepo) SetFlagMany(ctx context.Context, typ resource.Type, ids []string, flag resource.Field, value bool) error {
	if len(ids) == 0 {
		return nil
	}
	var col string
	switch flag {
	case resource.FieldVerified:
		col = "verified"
	case resource.FieldFeatured:
		col = "featured"
	default:
		return fmt.Errorf("flag %q not writable", flag)
	}
	q := `UPDATE resources SET ` + col + `=$1 WHERE resource_type=$2 AND id IN (` + placeholders(3, len(ids)) + `)`
	argv := make([]any, 0, len(ids)+2)
	argv = append(argv, value, string(typ))
	for _, id := range ids {
		argv = append(argv, id)
	}
	_, err := s.db.ExecContext(ctx, q, argv...)
	return err
}

func (s *SQLRepo) ListChildren(ctx context.Context, parentID string, slot resource.Slot) ([]resource.ChildRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload_json FROM resource_children WHERE parent_id=$1 AND slot=$2 ORDER BY position`,
		parentID, string(slot))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []resource.ChildRecord{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var c resource.ChildRecord
		if err := json.Unmarshal([]byte(payload), &c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ReplaceChildren swaps the whole child collection of one slot inside a
// transaction: delete-all-then-insert-all, never a diff.
func (s *SQLRepo) ReplaceChildren(ctx context.Context, parentID string, slot resource.Slot, children []resource.ChildRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM resource_children WHERE parent_id=$1 AND slot=$2`, parentID, string(slot)); err != nil {
		return err
	}
	for i, c := range children {
		payload, err := json.Marshal(c)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO resource_children (parent_id,slot,position,payload_json) VALUES ($1,$2,$3,$4)`,
			parentID, string(slot), i, string(payload)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Bump increments a server-owned counter. Used by the public directory
// surface, never by the engine.
func (s *SQLRepo) Bump(ctx context.Context, typ resource.Type, id, counter string) error {
	if counter != "downloads" && counter != "views" {
		return fmt.Errorf("counter %q not bumpable", counter)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE resources SET `+counter+`=`+counter+`+1 WHERE resource_type=$1 AND id=$2`,
		string(typ), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func placeholders(start, n int) string {
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(parts, ",")
}

func args(first string, ids []string) []any {
	out := make([]any, 0, len(ids)+1)
	out = append(out, first)
	for _, id := range ids {
		out = append(out, id)
	}
	return out
}
