package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/p-n-ai/aptis-ingest/internal/audit"
	"github.com/p-n-ai/aptis-ingest/internal/bank"
	"github.com/p-n-ai/aptis-ingest/internal/ingest"
	"github.com/p-n-ai/aptis-ingest/internal/questionset"
	"github.com/p-n-ai/aptis-ingest/internal/session"
)

var errPublished = errors.New("session was already published and can no longer be edited")

// POST /v1/ingest (multipart: file, skill, part, title, description)
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("file exceeds %d MB", s.opts.MaxUploadBytes>>20))
			return
		}
		writeError(w, http.StatusBadRequest, "expected a multipart form")
		return
	}

	skill, err := questionset.ParseSkill(strings.ToLower(strings.TrimSpace(r.FormValue("skill"))))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	part, err := strconv.Atoi(strings.TrimSpace(r.FormValue("part")))
	if err != nil || !questionset.ValidPart(part) {
		writeError(w, http.StatusBadRequest, "part must be a number between 1 and 4")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read the uploaded file")
		return
	}

	ctx := r.Context()
	who := author(bearerToken(r))
	req := ingest.Request{
		Title:       strings.TrimSpace(r.FormValue("title")),
		Description: strings.TrimSpace(r.FormValue("description")),
		Skill:       skill,
		Part:        part,
		Filename:    header.Filename,
	}

	if s.opts.Dedupe {
		fp := ingest.Fingerprint(data, skill, part)
		if existing, err := s.store.FindByFingerprint(ctx, fp); err == nil && !existing.Published() {
			writeJSON(w, http.StatusOK, existing)
			return
		}
	}

	sess, err := s.pipeline.Ingest(ctx, req, bytes.NewReader(data))
	if err != nil {
		s.logEvent(audit.Event{
			Author:    who,
			EventType: audit.EventIngestRejected,
			Data: map[string]any{
				"filename": header.Filename,
				"skill":    string(skill),
				"part":     part,
				"error":    err.Error(),
			},
		})
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := s.store.Save(ctx, sess); err != nil {
		writeError(w, http.StatusInternalServerError, "could not save the session")
		return
	}

	s.logEvent(audit.Event{
		SessionID: sess.ID,
		Author:    who,
		EventType: audit.EventIngestAccepted,
		Data: map[string]any{
			"filename": header.Filename,
			"format":   string(sess.Format.ID),
			"rows":     len(sess.Table.Rows),
			"issues":   len(sess.ValidationErrors),
		},
	})
	writeJSON(w, http.StatusCreated, sess)
}

// GET /v1/sessions/{id}
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, sessionStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// DELETE /v1/sessions/{id}
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, sessionStatus(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PUT /v1/sessions/{id}/question-set replaces the whole previewed set. The
// skill, part and level of the session cannot be changed this way.
func (s *Server) handleReplaceQuestionSet(w http.ResponseWriter, r *http.Request) {
	var qs questionset.QuestionSet
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)).Decode(&qs); err != nil {
		writeError(w, http.StatusBadRequest, "invalid question set: "+err.Error())
		return
	}

	id := chi.URLParam(r, "id")
	unlock := s.locks.lock(id)
	defer unlock()

	ctx := r.Context()
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		writeError(w, sessionStatus(err), err.Error())
		return
	}
	if sess.Published() {
		writeError(w, http.StatusConflict, errPublished.Error())
		return
	}

	qs.Skill = sess.Skill
	qs.Part = sess.Part
	qs.Level = sess.QuestionSet.Level
	if strings.TrimSpace(qs.Title) == "" {
		qs.Title = sess.Title
	}
	if qs.Questions == nil {
		qs.Questions = []questionset.Question{}
	}
	sess.QuestionSet = &qs
	sess.Title = qs.Title
	sess.Description = qs.Description
	sess.Revalidate()
	sess.UpdatedAt = s.now()

	if err := s.store.Save(ctx, sess); err != nil {
		writeError(w, http.StatusInternalServerError, "could not save the session")
		return
	}
	s.logEvent(audit.Event{
		SessionID: sess.ID,
		Author:    author(bearerToken(r)),
		EventType: audit.EventSessionEdited,
		Data:      map[string]any{"op": "replace", "issues": len(sess.ValidationErrors)},
	})
	writeJSON(w, http.StatusOK, sess)
}

// POST /v1/sessions/{id}/edits
func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	var e ingest.Edit
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		writeError(w, http.StatusBadRequest, "invalid edit: "+err.Error())
		return
	}

	sess, err := s.applyEdit(r.Context(), chi.URLParam(r, "id"), e, author(bearerToken(r)))
	if err != nil {
		writeError(w, editStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// applyEdit loads, edits and saves a session while holding its lock, so
// edits to one session are applied one after another.
func (s *Server) applyEdit(ctx context.Context, id string, e ingest.Edit, who string) (*ingest.Session, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Published() {
		return nil, errPublished
	}
	if err := sess.Apply(e); err != nil {
		return nil, err
	}
	sess.UpdatedAt = s.now()

	if err := s.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}
	s.logEvent(audit.Event{
		SessionID: id,
		Author:    who,
		EventType: audit.EventSessionEdited,
		Data:      map[string]any{"op": string(e.Op), "issues": len(sess.ValidationErrors)},
	})
	return sess, nil
}

// POST /v1/sessions/{id}/publish (optional multipart: audio)
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	var audio *bank.Audio
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
		if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
			return
		}
		if f, h, err := r.FormFile("audio"); err == nil {
			defer f.Close()
			if !bank.IsAudioFile(h.Filename) {
				writeError(w, http.StatusBadRequest,
					fmt.Sprintf("unsupported audio file %q: want one of %s", h.Filename, strings.Join(bank.AudioExtensions, ", ")))
				return
			}
			audio = &bank.Audio{Filename: h.Filename, Body: f}
		}
	}

	id := chi.URLParam(r, "id")
	unlock := s.locks.lock(id)
	defer unlock()

	ctx := r.Context()
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		writeError(w, sessionStatus(err), err.Error())
		return
	}
	if audio != nil && sess.Skill != questionset.SkillListening {
		writeError(w, http.StatusBadRequest, "audio can only be attached to listening sets")
		return
	}

	token := bearerToken(r)
	who := author(token)
	if err := s.publisher.Publish(ctx, sess, token, audio); err != nil {
		var (
			verr      *ingest.ValidationError
			schemaErr *bank.SchemaError
		)
		switch {
		case errors.As(err, &verr):
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "the question set has validation errors", Issues: verr.Issues})
		case errors.As(err, &schemaErr):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, bank.ErrAlreadyPublished):
			writeError(w, http.StatusConflict, err.Error())
		default:
			s.logEvent(audit.Event{
				SessionID: id,
				Author:    who,
				EventType: audit.EventBankPublishFailed,
				Data:      map[string]any{"error": err.Error()},
			})
			writeError(w, http.StatusBadGateway, err.Error())
		}
		return
	}

	s.logEvent(audit.Event{
		SessionID: id,
		Author:    who,
		EventType: audit.EventBankPublished,
		Data:      map[string]any{"bank_id": sess.BankID, "audio": audio != nil},
	})
	if err := s.savePublished(ctx, sess); err != nil {
		slog.Error("published session not saved", "session_id", id, "bank_id", sess.BankID, "error", err)
		writeError(w, http.StatusInternalServerError,
			fmt.Sprintf("published as %s, but could not save the session", sess.BankID))
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func sessionStatus(err error) int {
	if errors.Is(err, session.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func editStatus(err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ingest.ErrInvalidEdit):
		return http.StatusBadRequest
	case errors.Is(err, errPublished):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
