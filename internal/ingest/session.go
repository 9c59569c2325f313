package ingest

import (
	"time"

	"github.com/p-n-ai/aptis-ingest/internal/questionset"
)

// Session is the state of one upload, from the parsed rows to the preview a
// teacher edits and finally publishes. It is threaded explicitly through the
// pipeline, the editor and the publisher.
type Session struct {
	ID               string                   `json:"id"`
	Title            string                   `json:"title"`
	Description      string                   `json:"description,omitempty"`
	Skill            questionset.Skill        `json:"skill"`
	Part             int                      `json:"part"`
	Filename         string                   `json:"filename"`
	Fingerprint      string                   `json:"fingerprint"`
	Table            Table                    `json:"table"`
	Format           Format                   `json:"format"`
	QuestionSet      *questionset.QuestionSet `json:"questionSet"`
	ValidationErrors []Issue                  `json:"validationErrors"`
	BankID           string                   `json:"bankId,omitempty"`
	CreatedAt        time.Time                `json:"createdAt"`
	UpdatedAt        time.Time                `json:"updatedAt"`
	PublishedAt      *time.Time               `json:"publishedAt,omitempty"`
}

// Revalidate recomputes the validation issues of the current question set.
func (s *Session) Revalidate() {
	s.ValidationErrors = Validate(s.QuestionSet)
	if s.ValidationErrors == nil {
		s.ValidationErrors = []Issue{}
	}
}

// Err returns the validation issues as an error, or nil when the set can be
// published.
func (s *Session) Err() error {
	if len(s.ValidationErrors) == 0 {
		return nil
	}
	return &ValidationError{Issues: s.ValidationErrors}
}

// Published reports whether the set was accepted by the backend.
func (s *Session) Published() bool {
	return s.PublishedAt != nil
}
