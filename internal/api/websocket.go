package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/serroba/notesync/internal/collab"
	"github.com/serroba/notesync/internal/ws"
)

// handleWebSocket handles GET /ws. Rooms are chosen per message, so the
// connection itself only carries the caller's identity.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", zap.Error(err))

		return
	}

	name := user.Name
	if name == "" {
		name = user.ID
	}

	s.manager.Serve(r.Context(), conn, collab.Identity{UserID: user.ID, UserName: name})
}

// handlePresence handles GET /api/notes/{id}/presence. Only members of the
// note may see who is in its room.
func (s *Server) handlePresence(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	docID := chi.URLParam(r, "id")

	if _, err := s.notes.Get(r.Context(), docID, user.ID); err != nil {
		s.fail(w, r, err)

		return
	}

	occupants := s.manager.Occupants(docID)
	active := make([]ws.PresencePayload, len(occupants))

	for i, e := range occupants {
		active[i] = ws.PresencePayload{UserID: e.UserID, UserName: e.UserName, ConnectionID: e.ConnID}
	}

	writeSuccess(w, http.StatusOK, "Active users", active)
}
