package codec

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omprakashjha/URLBookmarks/internal/domain"
)

func sampleBookmarks() []domain.Bookmark {
	created := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	return []domain.Bookmark{
		{
			ID:      "b1",
			URL:     "https://a.example/page",
			Title:   "First Page",
			Notes:   "some notes",
			Created: created,
			Updated: created.Add(time.Hour),
		},
		{
			ID:      "b2",
			URL:     "https://b.example",
			Created: created,
			Updated: created,
		},
	}
}

func TestExportJSONRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, FormatJSON, sampleBookmarks(), "web"))

	records, importErrors, err := Parse(FormatJSON, buf.Bytes())
	require.NoError(t, err)
	assert.Empty(t, importErrors)
	require.Len(t, records, 2)
	assert.Equal(t, "https://a.example/page", records[0].URL)
	assert.Equal(t, "First Page", records[0].Title)
	assert.Equal(t, "some notes", records[0].Notes)
	// a record stored without a title round-trips without one, so the
	// re-imported copy can still have its real title resolved
	assert.Empty(t, records[1].Title)

	assert.Contains(t, buf.String(), `"version": 1`)
	assert.Contains(t, buf.String(), `"platform": "web"`)
}

func TestParseJSONBareArray(t *testing.T) {
	records, importErrors, err := Parse(FormatJSON,
		[]byte(`[{"url":"https://a.example","title":"t","notes":"n"}]`))
	require.NoError(t, err)
	assert.Empty(t, importErrors)
	require.Len(t, records, 1)
	assert.Equal(t, "https://a.example", records[0].URL)
}

func TestExportCSVRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, FormatCSV, sampleBookmarks(), "web"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "url,title,notes,createdAt,modifiedAt", lines[0])

	records, importErrors, err := Parse(FormatCSV, buf.Bytes())
	require.NoError(t, err)
	assert.Empty(t, importErrors)
	require.Len(t, records, 2)
	assert.Equal(t, "First Page", records[0].Title)
	assert.Equal(t, "some notes", records[0].Notes)
}

func TestParseCSVCollectsMalformedRows(t *testing.T) {
	data := []byte("url,title\nhttps://a.example,good\n,missing url\nhttps://b.example,also good\n")
	records, importErrors, err := Parse(FormatCSV, data)
	require.NoError(t, err)
	assert.Len(t, records, 2, "good rows survive their bad siblings")
	require.Len(t, importErrors, 1)
	assert.Equal(t, 2, importErrors[0].Entry)

	_, _, err = Parse(FormatCSV, []byte("title,notes\nno url column,at all\n"))
	assert.Error(t, err)
}

func TestExportHTMLRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, FormatHTML, sampleBookmarks(), "web"))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "<!DOCTYPE NETSCAPE-Bookmark-file-1>"))
	assert.Contains(t, out, `HREF="https://a.example/page"`)
	assert.Contains(t, out, "<DD>some notes")

	records, importErrors, err := Parse(FormatHTML, buf.Bytes())
	require.NoError(t, err)
	assert.Empty(t, importErrors)
	require.Len(t, records, 2)
	assert.Equal(t, "First Page", records[0].Title)
	assert.Equal(t, "some notes", records[0].Notes)
	assert.Equal(t, "https://b.example", records[1].URL)
}

func TestParseHTMLUnescapesAndStripsMarkup(t *testing.T) {
	data := []byte(`<DL><DT><A HREF="https://a.example">Caf&eacute; &lt;b&gt;Guide&lt;/b&gt;</A>
<DD>plain notes
</DL>`)
	records, _, err := Parse(FormatHTML, data)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Café Guide", records[0].Title)
	assert.Equal(t, "plain notes", records[0].Notes)
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, FormatJSON, DetectFormat("export.json", nil))
	assert.Equal(t, FormatCSV, DetectFormat("export.csv", nil))
	assert.Equal(t, FormatHTML, DetectFormat("export.html", nil))
	assert.Equal(t, FormatHTML, DetectFormat("export.HTM", nil))

	// no useful extension: sniff the content
	assert.Equal(t, FormatJSON, DetectFormat("export", []byte(`  {"version":1}`)))
	assert.Equal(t, FormatJSON, DetectFormat("export", []byte(`[{"url":"x"}]`)))
	assert.Equal(t, FormatHTML, DetectFormat("export", []byte("<!DOCTYPE NETSCAPE-Bookmark-file-1>")))
	assert.Equal(t, FormatCSV, DetectFormat("export", []byte("url,title\n")))
}

// fakeStore records adds and rejects known URLs as duplicates.
type fakeStore struct {
	existing map[string]bool
	added    []string
}

func (s *fakeStore) Add(url, title, notes string) (domain.Bookmark, error) {
	if s.existing[url] {
		return domain.Bookmark{URL: url}, domain.ErrDuplicate
	}
	s.added = append(s.added, url)
	return domain.Bookmark{ID: "new", URL: url, Title: title, Notes: notes}, nil
}

func TestImportIntoSkipsDuplicatesAndBadEntries(t *testing.T) {
	store := &fakeStore{existing: map[string]bool{"https://known.example": true}}
	file := `[
		{"url":"https://known.example","title":"dup"},
		{"url":"https://fresh.example","title":"new"},
		{"url":"not a url","title":"broken"}
	]`

	summary, err := ImportInto(store, strings.NewReader(file), "backup.json")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, summary.Format)
	assert.Equal(t, 3, summary.TotalItems)
	assert.Equal(t, 1, summary.Imported)
	assert.Equal(t, 1, summary.Skipped)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, 3, summary.Errors[0].Entry)
	assert.Equal(t, []string{"https://fresh.example"}, store.added)
}
