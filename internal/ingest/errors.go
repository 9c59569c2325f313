package ingest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/p-n-ai/aptis-ingest/internal/questionset"
)

// ErrEmptyFile is returned when a sheet has no header row or no data rows.
var ErrEmptyFile = errors.New("the uploaded file is empty")

// UnsupportedFileError is returned for files the sheet reader cannot open.
type UnsupportedFileError struct {
	Filename string
}

func (e *UnsupportedFileError) Error() string {
	return fmt.Sprintf("unsupported file %q: upload an .xlsx, .xls or .csv file", e.Filename)
}

// InvalidFormatError is returned when the header row matches none of the
// accepted layouts for the selected part. Its message is shown to the user
// as-is, so it lists every accepted column set.
type InvalidFormatError struct {
	Skill    questionset.Skill
	Part     int
	Expected [][]string
	Missing  []string
}

func (e *InvalidFormatError) Error() string {
	sets := make([]string, len(e.Expected))
	for i, cols := range e.Expected {
		sets[i] = strings.Join(cols, ", ")
	}
	msg := fmt.Sprintf("Invalid file format for %s Part %d. Expected columns: %s",
		e.Skill, e.Part, strings.Join(sets, " OR "))
	if len(e.Missing) > 0 {
		msg += fmt.Sprintf(" (missing: %s)", strings.Join(e.Missing, ", "))
	}
	return msg
}

// Issue codes reported by Validate.
const (
	CodeEmptySet               = "empty_set"
	CodeMissingAnswerReference = "missing_answer_reference"
	CodeAnswerNotInOptions     = "answer_not_in_options"
	CodeOrderingExampleCount   = "ordering_example_count"
	CodeOrderingTooFew         = "ordering_too_few"
	CodeMissingText            = "missing_text"
)

// Issue is one validation problem found in a question set.
type Issue struct {
	Code    string `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Field, i.Message)
}

// ValidationError aggregates the issues that block publishing a set.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Issues) == 0 {
		return "question set validation failed"
	}
	lines := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		lines = append(lines, issue.String())
	}
	return strings.Join(lines, "\n")
}

// HasCode reports whether any issue carries code.
func (e *ValidationError) HasCode(code string) bool {
	if e == nil {
		return false
	}
	for _, issue := range e.Issues {
		if issue.Code == code {
			return true
		}
	}
	return false
}
