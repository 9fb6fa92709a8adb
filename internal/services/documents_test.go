package services

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocuments_CreateAndDelete(t *testing.T) {
	ctx := context.Background()
	svc := NewDocumentService(openTestDB(t), t.TempDir())

	doc, err := svc.Create(ctx, "Notes.PDF", strings.NewReader("%PDF-1.4 body"))
	require.NoError(t, err)
	assert.FileExists(t, doc.StoredPath)

	require.NoError(t, svc.Delete(ctx, doc.ID))
	_, err = os.Stat(doc.StoredPath)
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, err = svc.GetByID(ctx, doc.ID)
	assert.ErrorIs(t, err, ErrDocumentNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, doc.ID), ErrDocumentNotFound)
}

func TestDocuments_RejectsEmptyUpload(t *testing.T) {
	dir := t.TempDir()
	svc := NewDocumentService(openTestDB(t), dir)

	_, err := svc.Create(context.Background(), "notes.pdf", strings.NewReader(""))
	assert.ErrorIs(t, err, ErrFileRequired)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
