package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lumina/internal/models"
)

func TestRenderWorksheetMarkdown(t *testing.T) {
	questions := []models.Question{{
		Question:    "Which gas do plants absorb?",
		Options:     []string{"Oxygen", "Carbon dioxide", "Helium"},
		Answer:      "Carbon dioxide",
		Explanation: "Used in photosynthesis.",
		Page:        4,
	}}

	md := RenderWorksheetMarkdown("Plants", questions, false)
	assert.Contains(t, md, "# Plants Worksheet")
	assert.Contains(t, md, "## 1. Which gas do plants absorb?")
	assert.Contains(t, md, "- [ ] **B.** Carbon dioxide")
	assert.NotContains(t, md, "Answer Key")

	md = RenderWorksheetMarkdown("Plants", questions, true)
	assert.Contains(t, md, "## Answer Key")
	assert.Contains(t, md, "1. **B.** Carbon dioxide (page 4)")
	assert.Contains(t, md, "Used in photosynthesis.")
}

func TestRenderWorksheetMarkdown_EscapesMarkup(t *testing.T) {
	md := RenderWorksheetMarkdown("2*3", []models.Question{{
		Question: "What is <b>bold</b>?",
		Options:  []string{"a_b", "c"},
		Answer:   "c",
	}}, false)
	assert.Contains(t, md, `# 2\*3 Worksheet`)
	assert.Contains(t, md, `What is \<b\>bold\</b\>?`)
	assert.NotContains(t, md, "&lt;")
	assert.Contains(t, md, `a\_b`)

	html, err := NewWorksheetService(nil, 4).RenderHTML(md)
	require.NoError(t, err)
	assert.Contains(t, html, "What is &lt;b&gt;bold&lt;/b&gt;?")
	assert.NotContains(t, html, "<b>")
	assert.Contains(t, html, "a_b")
}

func TestWorksheets_GenerateAndRender(t *testing.T) {
	ctx := context.Background()
	conn := openTestDB(t)
	lib := NewLibraryService(conn)
	require.NoError(t, lib.CreatePool(ctx, samplePool("Plants", 6)))

	svc := NewWorksheetService(lib, 4)
	ws, err := svc.Generate(ctx, "", 0, true)
	require.NoError(t, err)
	assert.Len(t, ws.Questions, 4)
	assert.Equal(t, "Plants", ws.Topic)
	assert.Equal(t, 4, strings.Count(ws.Markdown, "\n## ")-1, "four questions plus the answer key heading")

	html, err := svc.RenderHTML(ws.Markdown)
	require.NoError(t, err)
	assert.Contains(t, html, "<h1>Plants Worksheet</h1>")
	assert.Contains(t, html, "<h2>Answer Key</h2>")
}

func TestWorksheets_EmptyLibrary(t *testing.T) {
	svc := NewWorksheetService(NewLibraryService(openTestDB(t)), 4)
	_, err := svc.Generate(context.Background(), "", 0, false)
	assert.ErrorIs(t, err, ErrLibraryEmpty)
}
