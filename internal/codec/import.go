package codec

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"path/filepath"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	xhtml "golang.org/x/net/html"

	"github.com/omprakashjha/URLBookmarks/internal/domain"
)

// ImportError records a single malformed entry; the rest of the file still
// imports (partial success).
type ImportError struct {
	Entry   int    `json:"entry"`
	Message string `json:"message"`
}

// ImportSummary reports the outcome of an import batch.
type ImportSummary struct {
	Source     string        `json:"source"`
	Format     Format        `json:"format"`
	TotalItems int           `json:"totalItems"`
	Imported   int           `json:"imported"`
	Skipped    int           `json:"skipped"`
	Errors     []ImportError `json:"errors"`
}

// Adder is the slice of the record store an import needs.
type Adder interface {
	Add(url, title, notes string) (domain.Bookmark, error)
}

// text pulled out of imported HTML gets stripped of any leftover markup
var importSanitizer = bluemonday.StrictPolicy()

// DetectFormat picks the import format from the file extension, falling back
// to sniffing the content.
func DetectFormat(filename string, data []byte) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		return FormatJSON
	case ".csv":
		return FormatCSV
	case ".html", ".htm":
		return FormatHTML
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return FormatJSON
	}
	lower := strings.ToLower(string(trimmed))
	if strings.HasPrefix(lower, "<!doctype") || strings.Contains(lower, "<a ") {
		return FormatHTML
	}
	return FormatCSV
}

// Parse decodes a file in the given format into wire records. Malformed
// entries are collected, not fatal; only an unreadable file aborts.
func Parse(format Format, data []byte) ([]Record, []ImportError, error) {
	switch format {
	case FormatJSON:
		return parseJSON(data)
	case FormatCSV:
		return parseCSV(data)
	case FormatHTML:
		return parseHTML(data)
	default:
		return nil, nil, fmt.Errorf("unknown import format %q", format)
	}
}

// ImportInto parses the file and merges its records into the store. Records
// whose URL already exists as an active bookmark are skipped, never
// overwritten; imported records are re-stamped as new (fresh id and
// timestamps).
func ImportInto(store Adder, reader io.Reader, filename string) (ImportSummary, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return ImportSummary{}, err
	}
	format := DetectFormat(filename, data)
	records, parseErrors, err := Parse(format, data)
	if err != nil {
		return ImportSummary{}, err
	}
	summary := ImportSummary{
		Source:     filename,
		Format:     format,
		TotalItems: len(records) + len(parseErrors),
		Errors:     parseErrors,
	}
	for i, record := range records {
		if err := domain.ValidateURL(record.URL); err != nil {
			summary.Errors = append(summary.Errors, ImportError{Entry: i + 1, Message: err.Error()})
			continue
		}
		_, err := store.Add(record.URL, record.Title, record.Notes)
		switch {
		case errors.Is(err, domain.ErrDuplicate):
			summary.Skipped++
		case err != nil:
			summary.Errors = append(summary.Errors, ImportError{Entry: i + 1, Message: err.Error()})
		default:
			summary.Imported++
		}
	}
	return summary, nil
}

func parseJSON(data []byte) ([]Record, []ImportError, error) {
	var envelope Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		// also accept a bare array of records without the envelope
		var bare []Record
		if bareErr := json.Unmarshal(data, &bare); bareErr == nil {
			return bare, nil, nil
		}
		return nil, nil, fmt.Errorf("parsing JSON export: %w", err)
	}
	return envelope.Records, nil, nil
}

func parseCSV(data []byte) ([]Record, []ImportError, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("reading CSV header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(strings.ToLower(name))] = i
	}
	urlCol, ok := columns["url"]
	if !ok {
		return nil, nil, errors.New("CSV header has no url column")
	}
	titleCol, hasTitle := columns["title"]
	notesCol, hasNotes := columns["notes"]

	records := make([]Record, 0)
	importErrors := make([]ImportError, 0)
	for entry := 1; ; entry++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			importErrors = append(importErrors, ImportError{Entry: entry, Message: err.Error()})
			continue
		}
		if urlCol >= len(row) || strings.TrimSpace(row[urlCol]) == "" {
			importErrors = append(importErrors, ImportError{Entry: entry, Message: "row has no url"})
			continue
		}
		record := Record{URL: strings.TrimSpace(row[urlCol])}
		if hasTitle && titleCol < len(row) {
			record.Title = row[titleCol]
		}
		if hasNotes && notesCol < len(row) {
			record.Notes = row[notesCol]
		}
		records = append(records, record)
	}
	return records, importErrors, nil
}

// parseHTML walks a Netscape-style bookmark file: every <a href> becomes a
// record, a following <dd> block becomes its notes.
func parseHTML(data []byte) ([]Record, []ImportError, error) {
	tokenizer := xhtml.NewTokenizer(bytes.NewReader(data))
	records := make([]Record, 0)
	var current *Record
	var inAnchor, inNotes bool
	for {
		switch tokenizer.Next() {
		case xhtml.ErrorToken:
			if current != nil {
				records = append(records, *current)
			}
			if err := tokenizer.Err(); !errors.Is(err, io.EOF) {
				return records, nil, fmt.Errorf("parsing HTML: %w", err)
			}
			return records, nil, nil
		case xhtml.StartTagToken:
			token := tokenizer.Token()
			switch token.Data {
			case "a":
				if current != nil {
					records = append(records, *current)
					current = nil
				}
				for _, attr := range token.Attr {
					if attr.Key == "href" {
						current = &Record{URL: attr.Val}
					}
				}
				inAnchor = current != nil
				inNotes = false
			case "dd":
				inAnchor = false
				inNotes = current != nil
			case "dt", "dl":
				if inNotes && current != nil {
					records = append(records, *current)
					current = nil
				}
				inNotes = false
			}
		case xhtml.EndTagToken:
			if tokenizer.Token().Data == "a" {
				inAnchor = false
			}
		case xhtml.TextToken:
			if current == nil {
				continue
			}
			text := sanitizeText(string(tokenizer.Text()))
			if text == "" {
				continue
			}
			if inAnchor {
				current.Title += text
			} else if inNotes {
				if current.Notes != "" {
					current.Notes += " "
				}
				current.Notes += text
			}
		}
	}
}

func sanitizeText(s string) string {
	return strings.TrimSpace(html.UnescapeString(importSanitizer.Sanitize(s)))
}
