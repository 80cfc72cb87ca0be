package datanorm

// Format is the detected container format of an uploaded export.
type Format string

const (
	FormatCSV  Format = "CSV"
	FormatJSON Format = "JSON"
	FormatXLSX Format = "XLSX"
)

// RawRow is one source row keyed by the original header or JSON key. CSV and
// XLSX values are strings; JSON values keep their decoded type (string,
// json.Number, bool, nil, []any, map[string]any).
type RawRow map[string]any

// FileHint carries everything known about an upload besides its bytes.
type FileHint struct {
	Name        string
	ContentType string
	// ForceJSON is set when the selected template only reads JSON.
	ForceJSON bool
}

// firstDataRow is the row number of the first record; row 1 is the header.
const firstDataRow = 2

// ParsedFile is the uniform table every format parses into.
type ParsedFile struct {
	Format Format   `json:"format"`
	IsJSON bool     `json:"isJson"`
	Keys   []string `json:"keys"`
	Rows   []RawRow `json:"rows"`
	// RowNumbers holds the source row of each entry in Rows, counted the way a
	// spreadsheet numbers them. Blank rows are dropped from Rows but still
	// count.
	RowNumbers []int `json:"rowNumbers"`
}

// RowNumber reports the source row of Rows[i].
func (f *ParsedFile) RowNumber(i int) int {
	if i < len(f.RowNumbers) {
		return f.RowNumbers[i]
	}
	return i + firstDataRow
}
