package services

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writePDF writes a minimal single-font PDF with one page per entry. An empty
// entry produces a page without a content stream.
func writePDF(t *testing.T, pages ...string) string {
	t.Helper()

	var objects []string
	pageIDs := make([]int, len(pages))
	next := 4
	for i := range pages {
		pageIDs[i] = next
		next++
		if pages[i] != "" {
			next++
		}
	}

	kids := ""
	for _, id := range pageIDs {
		kids += fmt.Sprintf("%d 0 R ", id)
	}
	objects = append(objects,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, len(pages)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	)
	for i, text := range pages {
		page := "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >>"
		if text == "" {
			objects = append(objects, page+" >>")
			continue
		}
		stream := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		objects = append(objects,
			fmt.Sprintf("%s /Contents %d 0 R >>", page, pageIDs[i]+1),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	path := filepath.Join(t.TempDir(), "notes.pdf")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestExtractPages_SkipsPagesWithoutText(t *testing.T) {
	path := writePDF(t, "Plants need sunlight", "", "Roots drink water")

	pages, err := NewPDFService().ExtractPages(path)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, 1, pages[0].Number)
	assert.Contains(t, pages[0].Text, "Plants need sunlight")
	assert.Equal(t, 3, pages[1].Number)
	assert.Contains(t, pages[1].Text, "Roots drink water")
}

func TestExtractPages_NoTextLayer(t *testing.T) {
	path := writePDF(t, "", "")

	_, err := NewPDFService().ExtractPages(path)
	assert.ErrorIs(t, err, ErrNoText)
}

func TestExtractPages_BrokenFiles(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.pdf")
	require.NoError(t, os.WriteFile(garbage, bytes.Repeat([]byte("not a pdf at all "), 20), 0o644))

	valid, err := os.ReadFile(writePDF(t, "Plants need sunlight"))
	require.NoError(t, err)
	truncated := filepath.Join(dir, "truncated.pdf")
	require.NoError(t, os.WriteFile(truncated, valid[:len(valid)/2], 0o644))

	corrupt := filepath.Join(dir, "corrupt.pdf")
	body := append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("<< /Type [ 1 0 R "), 20)...)
	body = append(body, []byte("\nstartxref\n12\n%%EOF\n")...)
	require.NoError(t, os.WriteFile(corrupt, body, 0o644))

	cases := map[string]string{
		"missing":   filepath.Join(dir, "missing.pdf"),
		"garbage":   garbage,
		"truncated": truncated,
		"corrupt":   corrupt,
	}
	for name, path := range cases {
		t.Run(name, func(t *testing.T) {
			var (
				pages  []PDFPage
				extErr error
			)
			assert.NotPanics(t, func() {
				pages, extErr = NewPDFService().ExtractPages(path)
			})
			assert.Error(t, extErr)
			assert.Nil(t, pages)
		})
	}
}
