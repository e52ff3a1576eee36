package parser

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupported(t *testing.T) {
	assert.True(t, Supported("a/b/report.pdf"))
	assert.True(t, Supported("notes.TXT"))
	assert.True(t, Supported("readme.md"))
	assert.True(t, Supported("slides.pptx"))
	assert.False(t, Supported("archive.tar.gz"))
	assert.False(t, Supported("binary.exe"))
	assert.False(t, Supported("noextension"))
}

func TestExtractTextPlain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "note.txt")
	require.NoError(t, os.WriteFile(path, []byte("plain text\ncontent"), 0o644))

	text, err := ExtractText(path)
	require.NoError(t, err)
	assert.Equal(t, "plain text\ncontent", text)
}

func TestExtractTextMarkdown(t *testing.T) {
	md := `# Title

Some *emphasized* paragraph with a [link](https://example.com).

- first item
- second item

` + "```go\nfmt.Println(\"hi\")\n```\n"
	path := filepath.Join(t.TempDir(), "doc.md")
	require.NoError(t, os.WriteFile(path, []byte(md), 0o644))

	text, err := ExtractText(path)
	require.NoError(t, err)

	assert.Contains(t, text, "Title")
	assert.Contains(t, text, "Some")
	assert.Contains(t, text, "emphasized")
	assert.Contains(t, text, "link")
	assert.Contains(t, text, "first item")
	assert.Contains(t, text, "second item")
	assert.Contains(t, text, `fmt.Println("hi")`)
	assert.NotContains(t, text, "#")
	assert.NotContains(t, text, "```")
}

func TestParseNamesDocumentByStem(t *testing.T) {
	path := filepath.Join(t.TempDir(), "annual report.txt")
	require.NoError(t, os.WriteFile(path, []byte("yearly figures"), 0o644))

	doc, err := Parse(path)
	require.NoError(t, err)
	assert.Equal(t, "annual report", doc.Name)
	assert.Equal(t, "yearly figures", doc.Text)
}

func TestExtractTextUnsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.png")
	require.NoError(t, os.WriteFile(path, []byte{0x89, 0x50}, 0o644))

	_, err := ExtractText(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file format")
}

func TestExtractTextMissingFile(t *testing.T) {
	_, err := ExtractText(filepath.Join(t.TempDir(), "gone.txt"))
	assert.Error(t, err)
}

func TestExtractPPTX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deck.pptx")
	f, err := os.Create(path)
	require.NoError(t, err)

	zw := zip.NewWriter(f)
	slide, err := zw.Create("ppt/slides/slide1.xml")
	require.NoError(t, err)
	_, err = slide.Write([]byte(`<p:sp><a:t>Hello</a:t><a:t>Slides</a:t></p:sp>`))
	require.NoError(t, err)
	other, err := zw.Create("ppt/theme/theme1.xml")
	require.NoError(t, err)
	_, err = other.Write([]byte(`<a:t>ignored theme</a:t>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	text, err := ExtractText(path)
	require.NoError(t, err)
	assert.Contains(t, text, "Hello")
	assert.Contains(t, text, "Slides")
	assert.NotContains(t, text, "ignored theme")
}

func TestExtractTagText(t *testing.T) {
	xml := `<w:p><w:t>first</w:t><w:t xml:space="preserve"> second</w:t>` +
		`<w:t/><w:tbl><w:t>in table</w:t></w:tbl></w:p>`

	text := extractTagText(xml, "w:t")
	assert.Contains(t, text, "first")
	assert.Contains(t, text, " second")
	assert.Contains(t, text, "in table")
	assert.NotContains(t, text, "<w:tbl>")
}
