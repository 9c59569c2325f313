package ingest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/p-n-ai/aptis-ingest/internal/questionset"
)

// transformer builds the content fields of a question set from a table whose
// headers were resolved to format f. Title, skill, part and level are set by
// the pipeline.
type transformer func(t Table, f Format) (*questionset.QuestionSet, error)

var transformers = map[FormatID]transformer{
	FormatComprehension:  transformComprehension,
	FormatLettered:       transformComprehension,
	FormatGapFill:        transformComprehension,
	FormatConversation:   transformConversations,
	FormatOrdering:       transformOrdering,
	FormatMonologue:      transformMonologue,
	FormatPersonMatching: transformPersonMatching,
	FormatDiscussion:     transformDiscussion,
	FormatHeadingMatch:   transformHeadingMatch,
	FormatLecture:        transformLectures,
}

// Transform converts a normalized table into a question set for format f.
func Transform(t Table, f Format) (*questionset.QuestionSet, error) {
	if len(t.Rows) == 0 {
		return nil, ErrEmptyFile
	}
	fn, ok := transformers[f.ID]
	if !ok {
		return nil, fmt.Errorf("no transformer for format %q", f.ID)
	}
	qs, err := fn(t, f)
	if err != nil {
		return nil, fmt.Errorf("transforming %s rows: %w", f.ID, err)
	}
	if qs.Questions == nil {
		qs.Questions = []questionset.Question{}
	}
	return qs, nil
}

// abcOptions collects the three lettered options of a row.
func abcOptions(f Format, row RawRow) questionset.Options {
	return questionset.Options{
		{Letter: "A", Text: f.Value(row, fieldOptionA)},
		{Letter: "B", Text: f.Value(row, fieldOptionB)},
		{Letter: "C", Text: f.Value(row, fieldOptionC)},
	}
}

// normalizeLetter turns answer cells such as "a", "B)", "Option C" or
// "Person D" into a bare upper-case letter. Other values are upper-cased.
func normalizeLetter(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, prefix := range []string{"OPTION", "PERSON", "HEADING"} {
		if rest, ok := strings.CutPrefix(s, prefix); ok {
			s = strings.TrimSpace(rest)
			break
		}
	}
	return strings.TrimRight(s, ").:")
}

// parseNumber reads an integer from a cell, accepting spreadsheet floats such
// as "3.0".
func parseNumber(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int(f)) {
		return int(f), true
	}
	return 0, false
}

// groupRows buckets rows by key in order of first occurrence. Rows with a
// blank key are dropped.
func groupRows(rows []RawRow, key func(RawRow) string) ([]string, map[string][]RawRow) {
	var order []string
	groups := make(map[string][]RawRow)
	for _, row := range rows {
		k := key(row)
		if k == "" {
			continue
		}
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], row)
	}
	return order, groups
}

// firstValue returns the first non-empty cell under key across rows.
func firstValue(rows []RawRow, key string) (string, int) {
	for i, row := range rows {
		if v := row[key]; v != "" {
			return v, i
		}
	}
	return "", -1
}
