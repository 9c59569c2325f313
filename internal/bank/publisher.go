package bank

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/p-n-ai/aptis-ingest/internal/ingest"
	"github.com/p-n-ai/aptis-ingest/internal/questionset"
)

// ErrAlreadyPublished is returned when a session was already accepted by the
// backend.
var ErrAlreadyPublished = errors.New("question set already published")

// Audio is the recording uploaded alongside a listening set.
type Audio struct {
	Filename string
	Body     io.Reader
}

// Publisher sends finished sessions to the question bank.
type Publisher struct {
	client *Client
	schema *Schema
	now    func() time.Time
}

// NewPublisher creates a publisher using client.
func NewPublisher(client *Client) (*Publisher, error) {
	schema, err := NewSchema()
	if err != nil {
		return nil, err
	}
	return &Publisher{client: client, schema: schema, now: time.Now}, nil
}

// Publish uploads the audio (listening sets only), posts the question set and
// stamps the session with the backend id. Sets with validation issues are
// refused. On any failure the session is left as it was so the caller can
// retry; nothing is retried here.
func (p *Publisher) Publish(ctx context.Context, sess *ingest.Session, token string, audio *Audio) error {
	if sess.Published() {
		return ErrAlreadyPublished
	}
	if err := sess.Err(); err != nil {
		return err
	}
	if audio != nil && sess.Skill != questionset.SkillListening {
		return fmt.Errorf("audio can only be attached to listening sets")
	}

	payload := NewPayload(sess.QuestionSet)
	if audio != nil {
		url, err := p.client.UploadAudio(ctx, token, audio.Filename, audio.Body)
		if err != nil {
			return fmt.Errorf("uploading audio: %w", err)
		}
		AttachAudio(payload, url)
	}

	if err := p.schema.Check(payload); err != nil {
		return err
	}

	created, err := p.client.CreateQuestionBank(ctx, token, payload)
	if err != nil {
		slog.Warn("publish failed", "session_id", sess.ID, "error", err)
		return fmt.Errorf("creating question bank: %w", err)
	}

	now := p.now()
	sess.BankID = created.ID
	sess.PublishedAt = &now
	sess.UpdatedAt = now
	if payload.AudioURL != "" {
		sess.QuestionSet.AudioURL = payload.AudioURL
	}

	slog.Info("question set published",
		"session_id", sess.ID,
		"bank_id", created.ID,
		"skill", sess.Skill,
		"part", sess.Part,
	)
	return nil
}
