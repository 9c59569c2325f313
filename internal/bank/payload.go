package bank

import (
	_ "embed"
	"fmt"
	"slices"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/p-n-ai/aptis-ingest/internal/questionset"
)

//go:embed payload.schema.json
var payloadSchema []byte

// Payload is the body of a question-bank creation request.
type Payload struct {
	questionset.QuestionSet
	AudioFiles []string `json:"audioFiles,omitempty"`
}

// NewPayload copies qs into a payload. The parts AttachAudio writes to are
// deep-copied so the session's set is never changed.
func NewPayload(qs *questionset.QuestionSet) *Payload {
	p := &Payload{QuestionSet: *qs}

	p.Conversations = slices.Clone(qs.Conversations)
	for i := range p.Conversations {
		p.Conversations[i].Segments = slices.Clone(p.Conversations[i].Segments)
	}
	if qs.Monologue != nil {
		mono := *qs.Monologue
		mono.Segments = slices.Clone(mono.Segments)
		p.Monologue = &mono
	}
	p.Lectures = slices.Clone(qs.Lectures)
	if p.Questions == nil {
		p.Questions = []questionset.Question{}
	}
	return p
}

// AttachAudio merges an uploaded audio URL into every listening item of the
// payload and records it as the set's audio file.
func AttachAudio(p *Payload, url string) {
	if url == "" {
		return
	}
	p.AudioURL = url
	p.AudioFiles = append(p.AudioFiles, url)

	for i := range p.Conversations {
		p.Conversations[i].AudioURL = url
		for j := range p.Conversations[i].Segments {
			p.Conversations[i].Segments[j].AudioURL = url
		}
	}
	if p.Monologue != nil {
		p.Monologue.AudioURL = url
		for j := range p.Monologue.Segments {
			p.Monologue.Segments[j].AudioURL = url
		}
	}
	for i := range p.Lectures {
		p.Lectures[i].AudioURL = url
	}
}

// SchemaError lists the ways a payload breaks the backend's schema.
type SchemaError struct {
	Errors []string
}

func (e *SchemaError) Error() string {
	return "payload does not match the question bank schema: " + strings.Join(e.Errors, "; ")
}

// Schema checks payloads before they are sent.
type Schema struct {
	schema *gojsonschema.Schema
}

// NewSchema compiles the embedded payload schema.
func NewSchema() (*Schema, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(payloadSchema))
	if err != nil {
		return nil, fmt.Errorf("compiling payload schema: %w", err)
	}
	return &Schema{schema: s}, nil
}

// Check validates p, returning a *SchemaError when it does not conform.
func (s *Schema) Check(p *Payload) error {
	result, err := s.schema.Validate(gojsonschema.NewGoLoader(p))
	if err != nil {
		return fmt.Errorf("validating payload: %w", err)
	}
	if result.Valid() {
		return nil
	}
	errs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		errs = append(errs, e.String())
	}
	return &SchemaError{Errors: errs}
}
