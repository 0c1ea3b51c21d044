// Package collab runs the real-time side of note editing: room presence
// and relay of live edits between the connections in a room.
package collab

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/serroba/notesync/internal/acl"
	"github.com/serroba/notesync/internal/presence"
	"github.com/serroba/notesync/internal/storage"
	"github.com/serroba/notesync/internal/ws"
)

// Identity is the authenticated user behind a connection.
type Identity struct {
	UserID   string
	UserName string
}

// Manager tracks every live connection and the rooms they occupy.
type Manager struct {
	registry *presence.Registry
	hub      *ws.Hub
	access   AccessChecker
	merger   Merger
	logger   *zap.Logger
	now      func() time.Time

	queueSize    int
	writeTimeout time.Duration
}

// ManagerConfig holds configuration for creating a manager.
type ManagerConfig struct {
	Registry     *presence.Registry
	Hub          *ws.Hub
	Access       AccessChecker
	Merger       Merger
	Logger       *zap.Logger
	Now          func() time.Time
	QueueSize    int
	WriteTimeout time.Duration
}

// NewManager creates a new session manager.
func NewManager(cfg ManagerConfig) *Manager {
	m := &Manager{
		registry:     cfg.Registry,
		hub:          cfg.Hub,
		access:       cfg.Access,
		merger:       cfg.Merger,
		logger:       cfg.Logger,
		now:          cfg.Now,
		queueSize:    cfg.QueueSize,
		writeTimeout: cfg.WriteTimeout,
	}

	if m.registry == nil {
		m.registry = presence.NewRegistry()
	}

	if m.hub == nil {
		m.hub = ws.NewHub()
	}

	if m.merger == nil {
		m.merger = LastWriterWins{}
	}

	if m.logger == nil {
		m.logger = zap.NewNop()
	}

	if m.now == nil {
		m.now = time.Now
	}

	if m.queueSize <= 0 {
		m.queueSize = ws.DefaultQueueSize
	}

	return m
}

// Serve runs one connection until the peer disconnects or ctx is done.
func (m *Manager) Serve(ctx context.Context, conn ws.Conn, id Identity) {
	client := ws.NewClient(uuid.NewString(), id.UserID, id.UserName, conn,
		ws.WithQueueSize(m.queueSize), ws.WithWriteTimeout(m.writeTimeout))

	m.hub.Register(client)

	c := &Connection{client: client}
	log := m.logger.With(zap.String("conn_id", client.ID), zap.String("user_id", id.UserID))

	defer func() {
		m.disconnect(c)
		m.hub.Unregister(client)
		_ = client.Close()
		log.Debug("connection closed")
	}()

	go func() {
		if err := client.WritePump(); err != nil {
			log.Debug("write failed", zap.Error(err))
		}
	}()

	go func() {
		select {
		case <-ctx.Done():
			_ = client.Close()
		case <-client.Done():
		}
	}()

	log.Debug("connection opened")

	for {
		msg, err := client.Receive()
		if err != nil {
			if errors.Is(err, ws.ErrMalformedMessage) {
				log.Warn("dropped message", zap.Error(err))

				continue
			}

			return
		}

		if err := m.dispatch(ctx, c, msg); err != nil {
			log.Warn("dropped message", zap.String("type", string(msg.Type)), zap.Error(err))
		}
	}
}

func (m *Manager) dispatch(ctx context.Context, c *Connection, msg ws.Message) error {
	switch payload := msg.Payload.(type) {
	case ws.JoinNotePayload:
		return m.join(ctx, c, payload)
	case ws.NoteUpdatePayload:
		return m.noteUpdate(c, payload)
	case ws.CursorUpdatePayload:
		return m.cursorUpdate(c, payload)
	default:
		return errUnexpectedMessage
	}
}

// Publish sends the document's authoritative title and content to every
// connection in its room, including the author's.
func (m *Manager) Publish(docID, title, content, userID string) {
	m.registry.Room(docID, func(members []presence.Entry) {
		payload := ws.NoteUpdatedPayload{
			Content:   content,
			Title:     title,
			UserID:    userID,
			Timestamp: m.now().UTC(),
		}

		for _, e := range members {
			if e.UserID == userID {
				payload.UserName = e.UserName

				break
			}
		}

		m.broadcast(members, ws.Message{Type: ws.MessageTypeNoteUpdated, Payload: payload}, "")
	})
}

// Revalidate re-checks access for every connection in the room and closes
// the ones that lost it.
func (m *Manager) Revalidate(ctx context.Context, docID string) {
	for _, e := range m.registry.Occupants(docID) {
		_, err := m.access.RoleFor(ctx, docID, e.UserID)
		if err == nil {
			continue
		}

		if !errors.Is(err, acl.ErrAccessDenied) && !errors.Is(err, storage.ErrDocumentNotFound) {
			m.logger.Warn("revalidate failed, keeping connection",
				zap.String("conn_id", e.ConnID), zap.String("doc_id", docID), zap.Error(err))

			continue
		}

		if client, ok := m.hub.Get(e.ConnID); ok {
			m.logger.Info("closing connection after access change",
				zap.String("conn_id", e.ConnID), zap.String("doc_id", docID))

			_ = client.Close()
		}
	}
}

// Occupants returns the presence entries of a room.
func (m *Manager) Occupants(docID string) []presence.Entry {
	return m.registry.Occupants(docID)
}

// ConnectionCount returns the number of live connections.
func (m *Manager) ConnectionCount() int {
	return m.hub.TotalClients()
}

// RoomCount returns the number of rooms with at least one connection.
func (m *Manager) RoomCount() int {
	return m.registry.RoomCount()
}

// broadcast queues msg on every member except exclude. Callers hold the
// room lock.
func (m *Manager) broadcast(members []presence.Entry, msg ws.Message, exclude string) {
	for _, e := range members {
		if e.ConnID == exclude {
			continue
		}

		if err := m.hub.Send(e.ConnID, msg); err != nil {
			m.logger.Debug("broadcast dropped",
				zap.String("conn_id", e.ConnID), zap.String("type", string(msg.Type)), zap.Error(err))
		}
	}
}

func presenceOf(e presence.Entry) ws.PresencePayload {
	return ws.PresencePayload{UserID: e.UserID, UserName: e.UserName, ConnectionID: e.ConnID}
}
