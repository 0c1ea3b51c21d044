// Package api exposes notes over HTTP and the real-time channel over
// WebSocket.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/serroba/notesync/internal/collab"
	"github.com/serroba/notesync/internal/note"
)

// Server handles HTTP requests for the notes API.
type Server struct {
	notes    *note.Service
	manager  *collab.Manager
	tokens   TokenParser
	logger   *zap.Logger
	validate *validator.Validate
	upgrader websocket.Upgrader
	origins  []string
	now      func() time.Time
}

// ServerConfig holds configuration for creating a server.
type ServerConfig struct {
	Notes          *note.Service
	Manager        *collab.Manager
	Tokens         TokenParser
	Logger         *zap.Logger
	AllowedOrigins []string
}

// NewServer creates a new API server.
func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	return &Server{
		notes:    cfg.Notes,
		manager:  cfg.Manager,
		tokens:   cfg.Tokens,
		logger:   logger,
		validate: validator.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(origins),
		},
		origins: origins,
		now:     time.Now,
	}
}

// Handler returns an http.Handler with all routes configured.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(s.origins))

	r.Get("/healthz", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get("/ws", s.handleWebSocket)

		r.Route("/api/notes", func(r chi.Router) {
			r.Get("/", s.handleListNotes)
			r.Post("/", s.handleCreateNote)
			r.Post("/join", s.handleJoinNote)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetNote)
				r.Put("/", s.handleUpdateNote)
				r.Delete("/", s.handleDeleteNote)
				r.Get("/render", s.handleRenderNote)
				r.Post("/share", s.handleShareNote)
				r.Delete("/share", s.handleStopSharing)
				r.Post("/version", s.handleRecordVersion)
				r.Post("/save", s.handleSaveNote)
				r.Post("/undo", s.handleUndo)
				r.Post("/redo", s.handleRedo)
				r.Post("/favorite", s.handleToggleFavorite)
				r.Get("/presence", s.handlePresence)
			})
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"time":        s.now().UTC().Format(time.RFC3339),
		"rooms":       s.manager.RoomCount(),
		"connections": s.manager.ConnectionCount(),
	})
}
