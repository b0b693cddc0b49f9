// Package codec serializes the record set to JSON, CSV and HTML and merges
// imported files back into the store.
package codec

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"strings"
	"time"

	"github.com/omprakashjha/URLBookmarks/internal/domain"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatHTML Format = "html"
)

// EnvelopeVersion is the version stamped into JSON exports.
const EnvelopeVersion = 1

// Envelope is the versioned JSON export container. Dates are ISO-8601.
type Envelope struct {
	Version    int       `json:"version"`
	ExportDate time.Time `json:"exportDate"`
	Platform   string    `json:"platform"`
	Records    []Record  `json:"records"`
}

// Record is the wire shape shared by all three formats.
type Record struct {
	URL        string    `json:"url"`
	Title      string    `json:"title"`
	Notes      string    `json:"notes"`
	CreatedAt  time.Time `json:"createdAt"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

// toRecord exports the stored title as-is. A titleless record must round-trip
// titleless so consumers apply their own display fallback and a re-import
// stays eligible for title resolution.
func toRecord(b domain.Bookmark) Record {
	return Record{
		URL:        b.URL,
		Title:      b.Title,
		Notes:      b.Notes,
		CreatedAt:  b.Created,
		ModifiedAt: b.Updated,
	}
}

// MimeType returns the MIME type for a format, for file downloads.
func (f Format) MimeType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatHTML:
		return "text/html"
	default:
		return "application/json"
	}
}

// Export serializes the given records in the requested format.
func Export(w io.Writer, format Format, bookmarks []domain.Bookmark, platform string) error {
	switch format {
	case FormatCSV:
		return ExportCSV(w, bookmarks)
	case FormatHTML:
		return ExportHTML(w, bookmarks)
	case FormatJSON:
		return ExportJSON(w, bookmarks, platform)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

func ExportJSON(w io.Writer, bookmarks []domain.Bookmark, platform string) error {
	envelope := Envelope{
		Version:    EnvelopeVersion,
		ExportDate: time.Now().UTC(),
		Platform:   platform,
		Records:    make([]Record, 0, len(bookmarks)),
	}
	for _, bookmark := range bookmarks {
		envelope.Records = append(envelope.Records, toRecord(bookmark))
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(envelope)
}

var csvHeader = []string{"url", "title", "notes", "createdAt", "modifiedAt"}

func ExportCSV(w io.Writer, bookmarks []domain.Bookmark) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return err
	}
	for _, bookmark := range bookmarks {
		record := toRecord(bookmark)
		row := []string{
			record.URL,
			record.Title,
			record.Notes,
			record.CreatedAt.UTC().Format(time.RFC3339),
			record.ModifiedAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ExportHTML writes a minimal Netscape-style bookmark list, the lingua franca
// of browser bookmark managers.
func ExportHTML(w io.Writer, bookmarks []domain.Bookmark) error {
	var sb strings.Builder
	sb.WriteString("<!DOCTYPE NETSCAPE-Bookmark-file-1>\n")
	sb.WriteString("<META HTTP-EQUIV=\"Content-Type\" CONTENT=\"text/html; charset=UTF-8\">\n")
	sb.WriteString("<TITLE>Bookmarks</TITLE>\n<H1>Bookmarks</H1>\n<DL><p>\n")
	for _, bookmark := range bookmarks {
		record := toRecord(bookmark)
		sb.WriteString(fmt.Sprintf("<DT><A HREF=%q ADD_DATE=\"%d\" LAST_MODIFIED=\"%d\">%s</A>\n",
			record.URL, record.CreatedAt.Unix(), record.ModifiedAt.Unix(), html.EscapeString(record.Title)))
		if record.Notes != "" {
			sb.WriteString("<DD>" + html.EscapeString(record.Notes) + "\n")
		}
	}
	sb.WriteString("</DL><p>\n")
	_, err := io.WriteString(w, sb.String())
	return err
}
