package ingest

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// RawRow is one data row keyed by normalized header. Missing cells read as "".
type RawRow map[string]string

// Get returns the cell for a header, matched case-insensitively.
func (r RawRow) Get(header string) string {
	return r[NormalizeKey(header)]
}

// Empty reports whether every cell in the row is blank.
func (r RawRow) Empty() bool {
	for _, v := range r {
		if v != "" {
			return false
		}
	}
	return true
}

// Table is a normalized sheet: the header row plus data rows.
type Table struct {
	Headers []string `json:"headers"`
	Rows    []RawRow `json:"rows"`
}

// Keys returns the normalized header keys, skipping blank headers.
func (t Table) Keys() []string {
	keys := make([]string, 0, len(t.Headers))
	seen := make(map[string]bool, len(t.Headers))
	for _, h := range t.Headers {
		k := NormalizeKey(h)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
	}
	return keys
}

// Normalize zips each data row against the header row by position. Blank
// header cells are skipped, blank data rows are dropped, and a duplicated
// header keeps its first non-empty value.
func Normalize(rows [][]string) (Table, error) {
	if len(rows) == 0 {
		return Table{}, ErrEmptyFile
	}

	headers := make([]string, len(rows[0]))
	keys := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
		keys[i] = NormalizeKey(h)
	}

	table := Table{Headers: headers}
	for _, cells := range rows[1:] {
		row := make(RawRow, len(keys))
		for j, key := range keys {
			if key == "" {
				continue
			}
			value := ""
			if j < len(cells) {
				value = strings.TrimSpace(cells[j])
			}
			if existing, ok := row[key]; ok && existing != "" {
				continue
			}
			row[key] = value
		}
		if row.Empty() {
			continue
		}
		table.Rows = append(table.Rows, row)
	}

	if len(table.Rows) == 0 {
		return Table{}, ErrEmptyFile
	}
	return table, nil
}

// NormalizeKey canonicalizes a header for comparison: NFKC, Unicode case
// folding, and runs of spaces or hyphens collapsed to a single underscore.
func NormalizeKey(header string) string {
	s := norm.NFKC.String(strings.TrimSpace(strings.TrimPrefix(header, byteOrderMark)))
	s = cases.Fold().String(s)
	s = strings.ReplaceAll(s, "-", " ")
	return strings.Join(strings.Fields(s), "_")
}
