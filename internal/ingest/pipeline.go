// Package ingest turns teacher-authored spreadsheets into canonical question
// sets: it normalizes rows, detects which accepted layout the headers follow,
// runs the matching transformer and validates the result.
package ingest

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/p-n-ai/aptis-ingest/internal/questionset"
)

// Request describes an upload.
type Request struct {
	Title       string
	Description string
	Skill       questionset.Skill
	Part        int
	Filename    string
}

func (r Request) validate() error {
	if _, err := questionset.ParseSkill(string(r.Skill)); err != nil {
		return err
	}
	if !questionset.ValidPart(r.Part) {
		return fmt.Errorf("part must be between 1 and 4, got %d", r.Part)
	}
	return nil
}

// Pipeline runs uploads through parse, detect, transform and validate.
type Pipeline struct {
	levels *questionset.LevelTable
	now    func() time.Time
}

// NewPipeline creates a pipeline. A nil level table uses the built-in one.
func NewPipeline(levels *questionset.LevelTable) *Pipeline {
	if levels == nil {
		levels = questionset.DefaultLevels()
	}
	return &Pipeline{levels: levels, now: time.Now}
}

// Ingest reads a spreadsheet and builds a session from it. Any parse,
// format or transform error aborts the upload; no partial session is
// returned. Validation issues do not fail the call, they are recorded on
// the session and block publishing.
func (p *Pipeline) Ingest(ctx context.Context, req Request, r io.Reader) (*Session, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := ReadSheet(req.Filename, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	sess, err := p.Build(req, rows)
	if err != nil {
		return nil, err
	}
	sess.Fingerprint = Fingerprint(data, req.Skill, req.Part)
	return sess, nil
}

// Build runs the pipeline on rows that were already read from a sheet.
func (p *Pipeline) Build(req Request, rows [][]string) (*Session, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	table, err := Normalize(rows)
	if err != nil {
		return nil, err
	}

	format, err := Detect(req.Skill, req.Part, table.Keys())
	if err != nil {
		slog.Info("upload rejected", "skill", req.Skill, "part", req.Part, "headers", table.Headers)
		return nil, err
	}

	qs, err := Transform(table, format)
	if err != nil {
		return nil, err
	}

	level, err := p.levels.Level(req.Skill, req.Part)
	if err != nil {
		return nil, err
	}

	qs.Title = req.Title
	if qs.Title == "" && req.Filename != "" {
		qs.Title = strings.TrimSuffix(filepath.Base(req.Filename), filepath.Ext(req.Filename))
	}
	qs.Description = req.Description
	qs.Skill = req.Skill
	qs.Part = req.Part
	qs.Level = level

	now := p.now()
	sess := &Session{
		ID:          uuid.NewString(),
		Title:       qs.Title,
		Description: req.Description,
		Skill:       req.Skill,
		Part:        req.Part,
		Filename:    req.Filename,
		Table:       table,
		Format:      format,
		QuestionSet: qs,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	sess.Revalidate()

	slog.Info("upload transformed",
		"session_id", sess.ID,
		"format", format.ID,
		"rows", len(table.Rows),
		"issues", len(sess.ValidationErrors),
	)
	return sess, nil
}

// Fingerprint identifies an upload by its bytes and target skill and part.
func Fingerprint(data []byte, skill questionset.Skill, part int) string {
	h, _ := blake2b.New256(nil)
	h.Write(data)
	h.Write([]byte{0})
	h.Write([]byte(skill))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(part)))
	return hex.EncodeToString(h.Sum(nil))
}
