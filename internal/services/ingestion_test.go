package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lumina/internal/models"
)

type fakePages struct {
	pages []PDFPage
	err   error
}

func (f fakePages) ExtractPages(string) ([]PDFPage, error) {
	return f.pages, f.err
}

type ingestionFixture struct {
	svc       *IngestionService
	documents *DocumentService
	library   *LibraryService
	settings  *SettingsService
	completer *scriptedCompleter
}

func newIngestionFixture(t *testing.T, pages PageExtractor) *ingestionFixture {
	t.Helper()
	conn := openTestDB(t)
	f := &ingestionFixture{
		documents: NewDocumentService(conn, t.TempDir()),
		library:   NewLibraryService(conn),
		settings:  NewSettingsService(conn, ""),
		completer: &scriptedCompleter{responses: []string{wellFormed}},
	}
	ai := NewAIService(f.completer, 2, time.Millisecond)
	f.svc = NewIngestionService(f.documents, pages, ai, f.library, f.settings, 4000, 10)
	return f
}

func (f *ingestionFixture) upload(t *testing.T) *models.Document {
	t.Helper()
	doc, err := f.documents.Create(context.Background(), "notes.pdf", strings.NewReader("%PDF-1.4 fake"))
	require.NoError(t, err)
	return doc
}

func TestBuildLibrary_CreatesPoolAndRemembersTopic(t *testing.T) {
	ctx := context.Background()
	f := newIngestionFixture(t, fakePages{pages: []PDFPage{
		{Number: 1, Text: "Plants make food from sunlight."},
		{Number: 3, Text: "Chlorophyll is green."},
	}})
	doc := f.upload(t)

	var steps []string
	pool, err := f.svc.BuildLibraryWithProgress(ctx, BuildRequest{Topic: " Plants ", Age: 12, Document: doc},
		func(step, _ string, _, _ int) { steps = append(steps, step) })
	require.NoError(t, err)

	assert.Equal(t, "Plants", pool.Topic)
	assert.Equal(t, models.ZoneCreator, pool.Zone)
	require.NotEmpty(t, pool.Questions)
	assert.Equal(t, "notes.pdf", pool.Questions[0].Source)
	assert.Equal(t, "complete", steps[len(steps)-1])
	assert.Contains(t, f.completer.prompts[0], "[Page 3]")

	latest, err := f.library.LatestPool(ctx)
	require.NoError(t, err)
	assert.Equal(t, pool.ID, latest.ID)

	stored, err := f.documents.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.PageCount)

	settings, err := f.settings.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Plants", settings.Topic)
}

func TestBuildLibrary_Validation(t *testing.T) {
	ctx := context.Background()
	f := newIngestionFixture(t, fakePages{})

	_, err := f.svc.BuildLibrary(ctx, BuildRequest{Topic: "  ", Document: &models.Document{}})
	assert.ErrorIs(t, err, ErrTopicRequired)

	_, err = f.svc.BuildLibrary(ctx, BuildRequest{Topic: "Plants"})
	assert.ErrorIs(t, err, ErrFileRequired)
}

func TestBuildLibrary_ExtractionFailureLeavesLibraryEmpty(t *testing.T) {
	ctx := context.Background()
	f := newIngestionFixture(t, fakePages{err: ErrNoText})
	doc := f.upload(t)

	_, err := f.svc.BuildLibrary(ctx, BuildRequest{Topic: "Plants", Document: doc})
	assert.ErrorIs(t, err, ErrNoText)

	_, err = f.library.LatestPool(ctx)
	assert.True(t, errors.Is(err, ErrLibraryEmpty))
	assert.Empty(t, f.completer.prompts)
}

func TestDocuments_RejectsNonPDF(t *testing.T) {
	f := newIngestionFixture(t, fakePages{})
	_, err := f.documents.Create(context.Background(), "notes.txt", strings.NewReader("hello"))
	assert.ErrorIs(t, err, ErrUnsupportedFile)

	_, err = f.documents.Create(context.Background(), "notes.pdf", strings.NewReader(""))
	assert.ErrorIs(t, err, ErrFileRequired)
}
