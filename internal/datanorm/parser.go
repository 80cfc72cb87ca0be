package datanorm

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	// maxRowErrors bounds how many malformed CSV rows are reported.
	maxRowErrors = 50
)

// DetectFormat picks the parser for an upload. A JSON-only template forces
// JSON; otherwise the file extension, then the declared content type, then
// the bytes themselves decide.
func DetectFormat(content []byte, hint FileHint) Format {
	if hint.ForceJSON {
		return FormatJSON
	}

	switch strings.ToLower(filepath.Ext(hint.Name)) {
	case ".json":
		return FormatJSON
	case ".csv", ".txt":
		return FormatCSV
	case ".xlsx":
		return FormatXLSX
	}

	if mt, _, err := mime.ParseMediaType(hint.ContentType); err == nil {
		switch mt {
		case "application/json", "text/json":
			return FormatJSON
		case "text/csv", "application/csv":
			return FormatCSV
		case xlsxMIME:
			return FormatXLSX
		}
	}

	detected := mimetype.Detect(content)
	switch {
	case detected.Is("application/json"):
		return FormatJSON
	case detected.Is(xlsxMIME):
		return FormatXLSX
	}

	trimmed := bytes.TrimSpace(stripBOM(content))
	if len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{') {
		return FormatJSON
	}
	return FormatCSV
}

// Parse reads an uploaded export into a uniform table. Failures are returned
// as *ParseError and are fatal for the whole file.
func Parse(content []byte, hint FileHint) (*ParsedFile, error) {
	format := DetectFormat(content, hint)
	if len(bytes.TrimSpace(stripBOM(content))) == 0 {
		return nil, parseErr(format, ErrEmptyFile)
	}

	switch format {
	case FormatJSON:
		return parseJSON(content)
	case FormatXLSX:
		return parseXLSX(content)
	default:
		return parseCSV(content)
	}
}

// parseJSON expects a top-level array of flat objects. The key list is the
// union of every object's keys in first-seen order.
func parseJSON(content []byte) (*ParsedFile, error) {
	dec := json.NewDecoder(bytes.NewReader(stripBOM(content)))
	var items []json.RawMessage
	if err := dec.Decode(&items); err != nil {
		return nil, &ParseError{Format: FormatJSON, Kind: ErrInvalidJSON, Details: []string{err.Error()}, Err: err}
	}
	if items == nil {
		return nil, parseErr(FormatJSON, ErrInvalidJSON)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, parseErr(FormatJSON, ErrInvalidJSON, "unexpected data after the top-level array")
	}
	if len(items) == 0 {
		return nil, parseErr(FormatJSON, ErrEmptyArray)
	}

	out := &ParsedFile{
		Format:     FormatJSON,
		IsJSON:     true,
		Rows:       make([]RawRow, 0, len(items)),
		RowNumbers: make([]int, 0, len(items)),
	}
	seen := make(map[string]bool)
	for i, raw := range items {
		keys, row, err := decodeObject(raw)
		if err != nil {
			return nil, parseErr(FormatJSON, ErrInvalidJSON, fmt.Sprintf("element %d: %v", i+1, err))
		}
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				out.Keys = append(out.Keys, k)
			}
		}
		out.Rows = append(out.Rows, row)
		out.RowNumbers = append(out.RowNumbers, i+firstDataRow)
	}
	return out, nil
}

// decodeObject walks one JSON object token by token so key order survives.
func decodeObject(raw json.RawMessage) ([]string, RawRow, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, errors.New("not an object")
	}

	row := make(RawRow)
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("unexpected token %v", tok)
		}
		var val any
		if err := dec.Decode(&val); err != nil {
			return nil, nil, fmt.Errorf("key %q: %w", key, err)
		}
		if _, dup := row[key]; !dup {
			keys = append(keys, key)
		}
		row[key] = val
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	return keys, row, nil
}

// parseCSV requires a header row and reports every malformed row by line.
// Quoting is strict: a stray quote inside a quoted field is an error rather
// than being absorbed into the value.
func parseCSV(content []byte) (*ParsedFile, error) {
	src := transform.NewReader(bytes.NewReader(content), unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	r := csv.NewReader(src)
	r.FieldsPerRecord = -1

	var lines csvRowCounter
	header, err := r.Read()
	if err == io.EOF {
		return nil, parseErr(FormatCSV, ErrEmptyFile)
	}
	if err != nil {
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			return nil, parseErr(FormatCSV, ErrHeaderMissing, pe.Error())
		}
		return nil, &ParseError{Format: FormatCSV, Kind: ErrUnreadable, Err: err}
	}

	keys, ok := headerKeys(header)
	if !ok {
		return nil, parseErr(FormatCSV, ErrHeaderMissing)
	}
	lines.advance(r, header)

	var records [][]string
	var rowNumbers []int
	var details []string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				return nil, &ParseError{Format: FormatCSV, Kind: ErrUnreadable, Err: err}
			}
			details = append(details, pe.Error())
			if len(details) >= maxRowErrors {
				details = append(details, "too many malformed rows, parsing stopped")
				break
			}
			continue
		}
		records = append(records, rec)
		rowNumbers = append(rowNumbers, lines.advance(r, rec))
	}
	if len(details) > 0 {
		return nil, parseErr(FormatCSV, ErrCSVRows, details...)
	}

	return buildTable(FormatCSV, keys, records, rowNumbers), nil
}

// csvRowCounter numbers CSV records the way a spreadsheet shows them. Empty
// lines, which encoding/csv skips, still count as rows, and a quoted field
// spanning several lines stays in one row.
type csvRowCounter struct {
	row     int
	endLine int
}

// advance returns the row number of rec, the record r just read.
func (c *csvRowCounter) advance(r *csv.Reader, rec []string) int {
	start, _ := r.FieldPos(0)
	c.row += start - c.endLine
	last := len(rec) - 1
	line, _ := r.FieldPos(last)
	c.endLine = line + strings.Count(rec[last], "\n")
	return c.row
}

// parseXLSX reads the first worksheet; its first row is the header.
func parseXLSX(content []byte) (*ParsedFile, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, &ParseError{Format: FormatXLSX, Kind: ErrUnreadable, Details: []string{err.Error()}, Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, parseErr(FormatXLSX, ErrEmptyFile)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, &ParseError{Format: FormatXLSX, Kind: ErrUnreadable, Details: []string{err.Error()}, Err: err}
	}
	if len(rows) == 0 {
		return nil, parseErr(FormatXLSX, ErrEmptyFile)
	}

	keys, ok := headerKeys(rows[0])
	if !ok {
		return nil, parseErr(FormatXLSX, ErrHeaderMissing)
	}
	// GetRows keeps empty rows in place, so the slice index is the sheet row.
	rowNumbers := make([]int, len(rows)-1)
	for i := range rowNumbers {
		rowNumbers[i] = i + firstDataRow
	}
	return buildTable(FormatXLSX, keys, rows[1:], rowNumbers), nil
}

// headerKeys trims header cells and names blank ones by position. ok is false
// when every cell is blank.
func headerKeys(header []string) ([]string, bool) {
	keys := make([]string, len(header))
	named := false
	seen := make(map[string]int)
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Column %d", i+1)
		} else {
			named = true
		}
		if n := seen[h]; n > 0 {
			seen[h] = n + 1
			h = fmt.Sprintf("%s (%d)", h, n+1)
		} else {
			seen[h] = 1
		}
		keys[i] = h
	}
	return keys, named
}

// buildTable keys each record by header. rowNumbers[i] is the source row of
// records[i]; blank records are dropped along with their number.
func buildTable(format Format, keys []string, records [][]string, rowNumbers []int) *ParsedFile {
	out := &ParsedFile{
		Format:     format,
		Keys:       keys,
		Rows:       make([]RawRow, 0, len(records)),
		RowNumbers: make([]int, 0, len(records)),
	}
	for n, rec := range records {
		if blankRecord(rec) {
			continue
		}
		row := make(RawRow, len(keys))
		for i, k := range keys {
			if i < len(rec) {
				row[k] = strings.TrimSpace(rec[i])
			} else {
				row[k] = ""
			}
		}
		out.Rows = append(out.Rows, row)
		out.RowNumbers = append(out.RowNumbers, rowNumbers[n])
	}
	return out
}

func blankRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func stripBOM(b []byte) []byte {
	return bytes.TrimPrefix(b, []byte("\xef\xbb\xbf"))
}
