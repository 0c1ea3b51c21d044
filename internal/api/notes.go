package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/serroba/notesync/internal/history"
	"github.com/serroba/notesync/internal/model"
	"github.com/serroba/notesync/internal/note"
)

type createNoteRequest struct {
	Title       string   `json:"title" validate:"required,max=200"`
	Content     string   `json:"content"`
	Tags        []string `json:"tags" validate:"max=50,dive,max=64"`
	ContentType string   `json:"contentType" validate:"omitempty,oneof=plain markdown html"`
	Folder      string   `json:"folder" validate:"max=200"`
}

type updateNoteRequest struct {
	Title       *string   `json:"title" validate:"omitempty,max=200"`
	Content     *string   `json:"content"`
	Tags        *[]string `json:"tags" validate:"omitempty,max=50"`
	ContentType *string   `json:"contentType" validate:"omitempty,oneof=plain markdown html"`
	Folder      *string   `json:"folder" validate:"omitempty,max=200"`
	IsPublic    *bool     `json:"isPublic"`
}

func (req updateNoteRequest) fields() note.Fields {
	f := note.Fields{
		Title:    req.Title,
		Body:     req.Content,
		Folder:   req.Folder,
		IsPublic: req.IsPublic,
	}

	if req.Tags != nil {
		f.Tags = *req.Tags
		f.SetTags = true
	}

	if req.ContentType != nil {
		ct := model.ContentType(*req.ContentType)
		f.ContentType = &ct
	}

	return f
}

type shareNoteRequest struct {
	ExpiresIn int `json:"expiresIn" validate:"gte=0,lte=365"`
}

type joinNoteRequest struct {
	ShareCode string `json:"shareCode" validate:"required,max=64"`
}

type saveNoteResponse struct {
	Note    *model.Document `json:"note"`
	Version history.State   `json:"version"`
}

type renderResponse struct {
	HTML string `json:"html"`
}

// handleListNotes handles GET /api/notes.
func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	docs, err := s.notes.List(r.Context(), user.ID)
	if err != nil {
		s.fail(w, r, err)

		return
	}

	if docs == nil {
		docs = []*model.Document{}
	}

	writeSuccess(w, http.StatusOK, "Notes retrieved", docs)
}

// handleCreateNote handles POST /api/notes.
func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	var req createNoteRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, err)

		return
	}

	contentType := model.ContentType(req.ContentType)
	if contentType == "" {
		contentType = model.ContentPlain
	}

	doc, err := s.notes.Create(r.Context(), user.ID, note.CreateInput{
		Title:       req.Title,
		Body:        req.Content,
		Tags:        req.Tags,
		ContentType: contentType,
		Folder:      req.Folder,
	})
	if err != nil {
		s.fail(w, r, err)

		return
	}

	writeSuccess(w, http.StatusCreated, "Note created", doc)
}

// handleJoinNote handles POST /api/notes/join.
func (s *Server) handleJoinNote(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	var req joinNoteRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, err)

		return
	}

	doc, err := s.notes.JoinByShareToken(r.Context(), req.ShareCode, user.ID)
	if err != nil {
		s.fail(w, r, err)

		return
	}

	writeSuccess(w, http.StatusOK, "Joined note", doc)
}

// handleGetNote handles GET /api/notes/{id}.
func (s *Server) handleGetNote(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	doc, err := s.notes.Get(r.Context(), chi.URLParam(r, "id"), user.ID)
	if err != nil {
		s.fail(w, r, err)

		return
	}

	writeSuccess(w, http.StatusOK, "Note retrieved", doc)
}

// handleUpdateNote handles PUT /api/notes/{id}.
func (s *Server) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	var req updateNoteRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, err)

		return
	}

	doc, err := s.notes.Update(r.Context(), chi.URLParam(r, "id"), user.ID, req.fields())
	if err != nil {
		s.fail(w, r, err)

		return
	}

	writeSuccess(w, http.StatusOK, "Note updated", doc)
}

// handleDeleteNote handles DELETE /api/notes/{id}.
func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	if err := s.notes.Delete(r.Context(), chi.URLParam(r, "id"), user.ID); err != nil {
		s.fail(w, r, err)

		return
	}

	writeSuccess(w, http.StatusOK, "Note deleted", nil)
}

// handleRenderNote handles GET /api/notes/{id}/render.
func (s *Server) handleRenderNote(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	html, err := s.notes.Render(r.Context(), chi.URLParam(r, "id"), user.ID)
	if err != nil {
		s.fail(w, r, err)

		return
	}

	writeSuccess(w, http.StatusOK, "Note rendered", renderResponse{HTML: html})
}

// handleShareNote handles POST /api/notes/{id}/share. An empty body uses
// the default expiry.
func (s *Server) handleShareNote(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	var req shareNoteRequest
	if r.ContentLength != 0 {
		if err := s.decode(r, &req); err != nil {
			s.fail(w, r, err)

			return
		}
	}

	grant, err := s.notes.GenerateShareToken(r.Context(), chi.URLParam(r, "id"), user.ID, req.ExpiresIn)
	if err != nil {
		s.fail(w, r, err)

		return
	}

	writeSuccess(w, http.StatusOK, "Share code generated", grant)
}

// handleStopSharing handles DELETE /api/notes/{id}/share.
func (s *Server) handleStopSharing(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	doc, err := s.notes.StopSharing(r.Context(), chi.URLParam(r, "id"), user.ID)
	if err != nil {
		s.fail(w, r, err)

		return
	}

	writeSuccess(w, http.StatusOK, "Sharing stopped", doc)
}

// handleRecordVersion handles POST /api/notes/{id}/version.
func (s *Server) handleRecordVersion(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	state, err := s.notes.RecordVersion(r.Context(), chi.URLParam(r, "id"), user.ID)
	if err != nil {
		s.fail(w, r, err)

		return
	}

	writeSuccess(w, http.StatusOK, "Version saved", state)
}

// handleSaveNote handles POST /api/notes/{id}/save.
func (s *Server) handleSaveNote(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	var req updateNoteRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, err)

		return
	}

	doc, state, err := s.notes.SaveEdit(r.Context(), chi.URLParam(r, "id"), user.ID, req.fields())
	if err != nil {
		s.fail(w, r, err)

		return
	}

	writeSuccess(w, http.StatusOK, "Note saved", saveNoteResponse{Note: doc, Version: state})
}

// handleUndo handles POST /api/notes/{id}/undo.
func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	state, err := s.notes.Undo(r.Context(), chi.URLParam(r, "id"), user.ID)
	if err != nil {
		s.fail(w, r, err)

		return
	}

	writeSuccess(w, http.StatusOK, "Undo successful", state)
}

// handleRedo handles POST /api/notes/{id}/redo.
func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	state, err := s.notes.Redo(r.Context(), chi.URLParam(r, "id"), user.ID)
	if err != nil {
		s.fail(w, r, err)

		return
	}

	writeSuccess(w, http.StatusOK, "Redo successful", state)
}

// handleToggleFavorite handles POST /api/notes/{id}/favorite.
func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	doc, err := s.notes.ToggleFavorite(r.Context(), chi.URLParam(r, "id"), user.ID)
	if err != nil {
		s.fail(w, r, err)

		return
	}

	writeSuccess(w, http.StatusOK, "Favorite toggled", doc)
}
