package collab

import (
	"context"
	"errors"
	"fmt"

	"github.com/serroba/notesync/internal/acl"
	"github.com/serroba/notesync/internal/presence"
	"github.com/serroba/notesync/internal/ws"
)

// Reasons a real-time event is dropped.
var (
	errUnexpectedMessage = errors.New("unexpected message")
	errMissingField      = errors.New("missing documentId or userId")
	errIdentityMismatch  = errors.New("userId does not match the connection")
	errNotJoined         = errors.New("connection has not joined a note")
	errWrongRoom         = errors.New("documentId does not match the joined note")
	errReadOnly          = errors.New("connection cannot edit this note")
)

// State is the lifecycle stage of a connection.
type State int

const (
	StateDisconnected State = iota
	StateJoined
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateJoined:
		return "joined"
	default:
		return "unknown"
	}
}

// Connection is the per-connection state machine. It is owned by the
// goroutine running Serve.
type Connection struct {
	client *ws.Client
	state  State
	docID  string
	role   acl.Role
}

func (c *Connection) checkSender(docID, userID string) error {
	if docID == "" || userID == "" {
		return errMissingField
	}

	if userID != c.client.UserID {
		return errIdentityMismatch
	}

	if c.state != StateJoined {
		return errNotJoined
	}

	if docID != c.docID {
		return errWrongRoom
	}

	return nil
}

// join moves the connection into p.DocumentID's room from any state.
func (m *Manager) join(ctx context.Context, c *Connection, p ws.JoinNotePayload) error {
	if p.DocumentID == "" || p.UserID == "" {
		return errMissingField
	}

	if p.UserID != c.client.UserID {
		return errIdentityMismatch
	}

	role, err := m.access.RoleFor(ctx, p.DocumentID, p.UserID)
	if err != nil {
		return fmt.Errorf("join %s: %w", p.DocumentID, err)
	}

	name := p.UserName
	if name == "" {
		name = c.client.UserName
	}

	entry := presence.Entry{
		ConnID:   c.client.ID,
		DocID:    p.DocumentID,
		UserID:   p.UserID,
		UserName: name,
	}

	m.registry.Join(entry, presence.Hooks{
		Left: func(prev presence.Entry, remaining []presence.Entry) {
			m.broadcast(remaining, ws.Message{Type: ws.MessageTypeUserLeft, Payload: presenceOf(prev)}, prev.ConnID)
		},
		Joined: func(joined presence.Entry, others []presence.Entry) {
			m.broadcast(others, ws.Message{Type: ws.MessageTypeUserJoined, Payload: presenceOf(joined)}, joined.ConnID)

			active := make([]ws.PresencePayload, len(others))
			for i, e := range others {
				active[i] = presenceOf(e)
			}

			_ = c.client.Send(ws.Message{Type: ws.MessageTypeActiveUsers, Payload: active})
		},
	})

	c.state = StateJoined
	c.docID = p.DocumentID
	c.role = role

	return nil
}

// noteUpdate relays a live edit to the other occupants of the room.
func (m *Manager) noteUpdate(c *Connection, p ws.NoteUpdatePayload) error {
	if err := c.checkSender(p.DocumentID, p.UserID); err != nil {
		return err
	}

	if !c.role.CanWrite() {
		return errReadOnly
	}

	edit, ok := m.merger.Merge(Edit{
		DocID:    c.docID,
		Title:    p.Title,
		Content:  p.Content,
		UserID:   p.UserID,
		UserName: p.UserName,
		At:       m.now().UTC(),
	})
	if !ok {
		return nil
	}

	msg := ws.Message{
		Type: ws.MessageTypeNoteUpdated,
		Payload: ws.NoteUpdatedPayload{
			Content:   edit.Content,
			Title:     edit.Title,
			UserID:    edit.UserID,
			UserName:  edit.UserName,
			Timestamp: edit.At,
		},
	}

	m.registry.Room(c.docID, func(members []presence.Entry) {
		m.broadcast(members, msg, c.client.ID)
	})

	return nil
}

// cursorUpdate relays a cursor position to the other occupants.
func (m *Manager) cursorUpdate(c *Connection, p ws.CursorUpdatePayload) error {
	if err := c.checkSender(p.DocumentID, p.UserID); err != nil {
		return err
	}

	msg := ws.Message{
		Type: ws.MessageTypeCursorUpdated,
		Payload: ws.CursorUpdatedPayload{
			Position:     p.Position,
			UserID:       p.UserID,
			UserName:     p.UserName,
			ConnectionID: c.client.ID,
		},
	}

	m.registry.Room(c.docID, func(members []presence.Entry) {
		m.broadcast(members, msg, c.client.ID)
	})

	return nil
}

// disconnect leaves the current room and tells the rest of it.
func (m *Manager) disconnect(c *Connection) {
	if c.state != StateJoined {
		return
	}

	m.registry.Leave(c.client.ID, func(prev presence.Entry, remaining []presence.Entry) {
		m.broadcast(remaining, ws.Message{Type: ws.MessageTypeUserLeft, Payload: presenceOf(prev)}, prev.ConnID)
	})

	c.state = StateDisconnected
	c.docID = ""
}
