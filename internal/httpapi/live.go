package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"

	"github.com/p-n-ai/aptis-ingest/internal/ingest"
)

// liveReply answers one edit sent over the live channel.
type liveReply struct {
	Session *ingest.Session `json:"session,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// GET /v1/sessions/{id}/live
//
// The client sends one Edit per message and receives the updated session,
// validation issues included. Messages are handled in order; the next edit
// is read only after the previous reply was written.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.store.Get(r.Context(), id); err != nil {
		writeError(w, sessionStatus(err), err.Error())
		return
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.originPatterns()})
	if err != nil {
		slog.Warn("websocket accept failed", "session_id", id, "error", err)
		return
	}
	defer c.CloseNow()

	ctx := r.Context()
	who := author(bearerToken(r))
	for {
		_, data, err := c.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure &&
				websocket.CloseStatus(err) != websocket.StatusGoingAway {
				slog.Debug("live channel closed", "session_id", id, "error", err)
			}
			return
		}

		var reply liveReply
		var e ingest.Edit
		if err := json.Unmarshal(data, &e); err != nil {
			reply.Error = "invalid edit: " + err.Error()
		} else if sess, err := s.applyEdit(ctx, id, e, who); err != nil {
			reply.Error = err.Error()
		} else {
			reply.Session = sess
		}

		if err := wsjson.Write(ctx, c, reply); err != nil {
			slog.Debug("live channel write failed", "session_id", id, "error", err)
			return
		}
	}
}
