package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyhub-gh/backoffice/internal/apperr"
	"github.com/studyhub-gh/backoffice/internal/resource"
	"github.com/studyhub-gh/backoffice/internal/upload"
)

type memBlob struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newMemBlob() *memBlob { return &memBlob{blobs: map[string][]byte{}} }

func (m *memBlob) Put(key string, r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = b
	return key, nil
}

func (m *memBlob) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}

func (m *memBlob) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blobs[key]
	return ok
}

func newTestEngine(t *testing.T, typ resource.Type, recs ...resource.Record) (*Engine, *fakeRepo, *memBlob) {
	t.Helper()
	s, ok := resource.SchemaFor(typ)
	require.True(t, ok)
	f := newFakeRepo(recs...)
	blob := newMemBlob()
	e := New(s, f, upload.NewPipeline(blob), zerolog.Nop())
	require.NoError(t, e.Refresh(context.Background()))
	return e, f, blob
}

func trialRecord(id, title, category string) resource.Record {
	return resource.Record{ID: id, Type: resource.TypeTrialQuestions, Title: title, Category: category}
}

func TestRefreshDropsStaleSelection(t *testing.T) {
	e, f, _ := newTestEngine(t, resource.TypeTrialQuestions,
		trialRecord("r1", "Mock One", "bece"),
		trialRecord("r2", "Mock Two", "bece"),
	)
	e.Toggle("r1")
	e.Toggle("r2")
	require.ElementsMatch(t, []string{"r1", "r2"}, e.View().Selected)

	// r2 vanishes remotely; the refreshed selection must not keep it
	require.NoError(t, f.DeleteMany(context.Background(), resource.TypeTrialQuestions, []string{"r2"}))
	require.NoError(t, e.Refresh(context.Background()))
	assert.Equal(t, []string{"r1"}, e.View().Selected)
}

func TestToggleUnknownIDIgnored(t *testing.T) {
	e, _, _ := newTestEngine(t, resource.TypeTrialQuestions, trialRecord("r1", "Mock", "bece"))
	v := e.Toggle("ghost")
	assert.Empty(t, v.Selected)
}

func TestSelectAllVisibleToggles(t *testing.T) {
	e, _, _ := newTestEngine(t, resource.TypeTrialQuestions,
		trialRecord("r1", "A", "bece"),
		trialRecord("r2", "B", "bece"),
		trialRecord("r3", "C", "bece"),
	)
	// from no selection: select everything on the page, then back to none
	v := e.SelectAllVisible()
	assert.ElementsMatch(t, []string{"r1", "r2", "r3"}, v.Selected)
	v = e.SelectAllVisible()
	assert.Empty(t, v.Selected)

	// a partial selection is completed, not cleared
	e.Toggle("r2")
	v = e.SelectAllVisible()
	assert.ElementsMatch(t, []string{"r1", "r2", "r3"}, v.Selected)
}

func TestFilterChangeResetsPage(t *testing.T) {
	recs := make([]resource.Record, 0, 120)
	for i := 0; i < 120; i++ {
		cat := "wassce"
		if i < 40 {
			cat = "bece"
		}
		recs = append(recs, trialRecord(fmt.Sprintf("r%03d", i), fmt.Sprintf("Paper %d", i), cat))
	}
	e, _, _ := newTestEngine(t, resource.TypeTrialQuestions, recs...)

	v := e.SetPage(3)
	assert.Equal(t, 3, v.PageInfo.Page)
	assert.Equal(t, 3, v.PageInfo.TotalPages)
	assert.Len(t, v.Records, 20)

	v, err := e.SetFilter(resource.FieldCategory, "bece")
	require.NoError(t, err)
	assert.Equal(t, 1, v.PageInfo.Page)
	assert.Equal(t, 1, v.PageInfo.TotalPages)
	assert.Equal(t, 40, v.PageInfo.TotalFiltered)
	assert.Len(t, v.Records, 40)
}

func TestSetFilterUnknownDimension(t *testing.T) {
	e, _, _ := newTestEngine(t, resource.TypeTrialQuestions)
	_, err := e.SetFilter(resource.Field("publisher"), "x")
	assert.ErrorIs(t, err, apperr.ErrUnknownField)
}

func TestOpenSecondDraftCancelsFirst(t *testing.T) {
	e, _, _ := newTestEngine(t, resource.TypeTrialQuestions, trialRecord("r1", "Mock", "bece"))
	require.NoError(t, e.OpenEdit(context.Background(), "r1"))
	require.NoError(t, e.SetDraftField(resource.FieldTitle, "Edited but never saved"))

	v := e.OpenCreate()
	require.NotNil(t, v.Session)
	assert.Equal(t, StateCreating, v.Session.State)
	assert.Empty(t, v.Session.Draft.Record.Title)

	// the cached record is untouched by the discarded draft
	assert.Equal(t, "Mock", v.Records[0].Title)
}

func TestOpenEditChildFetchFailureDiscardsSession(t *testing.T) {
	e, f, _ := newTestEngine(t, resource.TypeTrialQuestions, trialRecord("r1", "Mock", "bece"))
	require.NoError(t, f.ReplaceChildren(context.Background(), "r1", resource.SlotQuiz,
		[]resource.ChildRecord{{Prompt: "Q1"}, {Prompt: "Q2"}}))

	f.failWith("listChildren", errors.New("remote down"))
	err := e.OpenEdit(context.Background(), "r1")
	require.Error(t, err)
	assert.True(t, apperr.IsRepo(err))

	// the half-loaded draft is discarded, so nothing can commit an empty
	// child slot over the persisted entries
	assert.Nil(t, e.View().Session)
	assert.ErrorIs(t, e.Commit(context.Background()), apperr.ErrNoDraft)

	f.failWith("listChildren", nil)
	kids, err := f.ListChildren(context.Background(), "r1", resource.SlotQuiz)
	require.NoError(t, err)
	assert.Len(t, kids, 2)

	// once the repository recovers the edit opens with its children
	require.NoError(t, e.OpenEdit(context.Background(), "r1"))
	v := e.View()
	require.NotNil(t, v.Session)
	assert.Len(t, v.Session.Draft.Children[resource.SlotQuiz], 2)
}

func TestCommitValidationMakesNoRepositoryCall(t *testing.T) {
	e, f, _ := newTestEngine(t, resource.TypeTrialQuestions)
	e.OpenCreate()

	err := e.Commit(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
	assert.Equal(t, 0, f.count("upsert"))
	assert.Equal(t, 0, f.count("replaceChildren"))

	// session survives a validation failure
	assert.NotNil(t, e.View().Session)
}

func TestCommitCreatePersistsParentAndChildren(t *testing.T) {
	e, f, _ := newTestEngine(t, resource.TypeTrialQuestions)
	e.OpenCreate()
	require.NoError(t, e.SetDraftField(resource.FieldTitle, "BECE Trial 1"))
	require.NoError(t, e.SetDraftField(resource.FieldCategory, "bece"))
	require.NoError(t, e.AddDraftChild(resource.SlotQuiz, resource.ChildRecord{
		Prompt:  "2 + 2?",
		Options: []string{"3", "4"},
		Answer:  "4",
	}))

	require.NoError(t, e.Commit(context.Background()))

	v := e.View()
	assert.Nil(t, v.Session)
	require.Len(t, v.Records, 1)
	assert.Equal(t, "BECE Trial 1", v.Records[0].Title)

	kids, err := f.ListChildren(context.Background(), v.Records[0].ID, resource.SlotQuiz)
	require.NoError(t, err)
	require.Len(t, kids, 1)
	assert.Equal(t, "4", kids[0].Answer)
}

func TestCommitChildFailureKeepsDraftChildren(t *testing.T) {
	e, f, _ := newTestEngine(t, resource.TypeTrialQuestions, trialRecord("r1", "Mock", "bece"))
	require.NoError(t, e.OpenEdit(context.Background(), "r1"))
	require.NoError(t, e.SetDraftField(resource.FieldTitle, "Mock (updated)"))
	require.NoError(t, e.AddDraftChild(resource.SlotQuiz, resource.ChildRecord{Prompt: "Q1"}))

	f.failWith("replaceChildren", errors.New("boom"))
	err := e.Commit(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.IsRepo(err))
	assert.Equal(t, 1, f.count("upsert"))

	v := e.View()
	// parent write stands and is visible after the refresh
	require.Len(t, v.Records, 1)
	assert.Equal(t, "Mock (updated)", v.Records[0].Title)
	// the draft stays open with its children intact for retry
	require.NotNil(t, v.Session)
	assert.Equal(t, StateEditing, v.Session.State)
	require.Len(t, v.Session.Draft.Children[resource.SlotQuiz], 1)

	// retry succeeds once the repository recovers
	f.failWith("replaceChildren", nil)
	require.NoError(t, e.Commit(context.Background()))
	kids, err := f.ListChildren(context.Background(), "r1", resource.SlotQuiz)
	require.NoError(t, err)
	assert.Len(t, kids, 1)
}

func TestCommitUpsertFailureLeavesCacheUntouched(t *testing.T) {
	e, f, _ := newTestEngine(t, resource.TypeTrialQuestions, trialRecord("r1", "Mock", "bece"))
	require.NoError(t, e.OpenEdit(context.Background(), "r1"))
	require.NoError(t, e.SetDraftField(resource.FieldTitle, "Never lands"))

	lists := f.count("list")
	f.failWith("upsert", errors.New("remote down"))
	err := e.Commit(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.IsRepo(err))

	v := e.View()
	assert.Equal(t, "Mock", v.Records[0].Title)
	assert.Equal(t, lists, f.count("list"), "no refresh after a failed parent write")
	// session reopens for retry
	require.NotNil(t, v.Session)
	assert.Equal(t, StateEditing, v.Session.State)
}

func TestBulkDeleteEmptySelection(t *testing.T) {
	e, f, _ := newTestEngine(t, resource.TypeTrialQuestions, trialRecord("r1", "Mock", "bece"))
	lists := f.count("list")

	err := e.BulkDelete(context.Background())
	assert.ErrorIs(t, err, apperr.ErrNoSelection)
	assert.Equal(t, 0, f.count("deleteMany"))
	assert.Equal(t, lists, f.count("list"))

	err = e.BulkSetFlag(context.Background(), resource.FieldVerified, true)
	assert.ErrorIs(t, err, apperr.ErrNoSelection)
	assert.Equal(t, 0, f.count("setFlagMany"))
}

func TestBulkDeleteClearsSelectionAndBlobs(t *testing.T) {
	rec := trialRecord("r1", "Mock", "bece")
	rec.File = &resource.FileRef{URL: "/assets/uploads/1-abc.pdf", Size: 3}
	e, f, blob := newTestEngine(t, resource.TypeTrialQuestions, rec, trialRecord("r2", "Keep", "bece"))
	_, err := blob.Put("uploads/1-abc.pdf", strings.NewReader("pdf"))
	require.NoError(t, err)

	e.Toggle("r1")
	require.NoError(t, e.BulkDelete(context.Background()))

	v := e.View()
	assert.Empty(t, v.Selected)
	require.Len(t, v.Records, 1)
	assert.Equal(t, "r2", v.Records[0].ID)
	assert.Equal(t, 1, f.count("deleteMany"), "one batched call, not one per id")
	assert.False(t, blob.has("uploads/1-abc.pdf"), "stored blob removed with its record")
}

func TestBulkSetFlag(t *testing.T) {
	e, f, _ := newTestEngine(t, resource.TypeTrialQuestions,
		trialRecord("r1", "A", "bece"),
		trialRecord("r2", "B", "bece"),
		trialRecord("r3", "C", "bece"),
	)
	e.Toggle("r1")
	e.Toggle("r3")
	require.NoError(t, e.BulkSetFlag(context.Background(), resource.FieldVerified, true))

	v := e.View()
	assert.Empty(t, v.Selected)
	assert.Equal(t, 1, f.count("setFlagMany"))
	byID := map[string]resource.Record{}
	for _, r := range v.Records {
		byID[r.ID] = r
	}
	assert.True(t, byID["r1"].Verified)
	assert.False(t, byID["r2"].Verified)
	assert.True(t, byID["r3"].Verified)
}

func TestUploadDraftFile(t *testing.T) {
	e, _, blob := newTestEngine(t, resource.TypeTrialQuestions)
	e.OpenCreate()

	ref, err := e.UploadDraftFile(context.Background(), resource.FieldFile,
		"mock.pdf", "application/pdf", 4, strings.NewReader("data"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref.URL, "/assets/uploads/"))
	assert.EqualValues(t, 4, ref.Size)
	assert.True(t, blob.has(strings.TrimPrefix(ref.URL, "/assets/")))

	v := e.View()
	require.NotNil(t, v.Session.Draft.Record.File)
	assert.Equal(t, ref.URL, v.Session.Draft.Record.File.URL)
}

func TestUploadDraftFileRejectionsLeaveDraftUntouched(t *testing.T) {
	e, _, _ := newTestEngine(t, resource.TypeTrialQuestions)
	e.OpenCreate()

	_, err := e.UploadDraftFile(context.Background(), resource.FieldFile,
		"notes.txt", "text/plain", 4, strings.NewReader("data"))
	assert.ErrorIs(t, err, apperr.ErrInvalidFileType)

	_, err = e.UploadDraftFile(context.Background(), resource.FieldFile,
		"huge.pdf", "application/pdf", 60<<20, strings.NewReader("data"))
	assert.ErrorIs(t, err, apperr.ErrFileTooLarge)

	assert.Nil(t, e.View().Session.Draft.Record.File)
}

func TestUploadStatusesDoNotOutliveDraft(t *testing.T) {
	e, _, _ := newTestEngine(t, resource.TypeTrialQuestions)
	e.OpenCreate()
	_, err := e.UploadDraftFile(context.Background(), resource.FieldFile,
		"mock.pdf", "application/pdf", 4, strings.NewReader("data"))
	require.NoError(t, err)
	require.NotEmpty(t, e.View().Uploads)

	// cancelling the draft drops its upload statuses with it
	v := e.Cancel()
	assert.Empty(t, v.Uploads)

	// a fresh draft starts with a clean slate
	v = e.OpenCreate()
	assert.Empty(t, v.Uploads)

	// a committed draft clears them too
	require.NoError(t, e.SetDraftField(resource.FieldTitle, "T"))
	require.NoError(t, e.SetDraftField(resource.FieldCategory, "bece"))
	_, err = e.UploadDraftFile(context.Background(), resource.FieldFile,
		"mock.pdf", "application/pdf", 4, strings.NewReader("data"))
	require.NoError(t, err)
	require.NoError(t, e.Commit(context.Background()))
	assert.Empty(t, e.View().Uploads)
}
