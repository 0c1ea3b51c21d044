package ws

import (
	"encoding/json"
	"time"
)

// MessageType identifies the kind of WebSocket message.
type MessageType string

const (
	// Client to Server messages.
	MessageTypeJoinNote     MessageType = "join-note"     // Client enters a document room
	MessageTypeNoteUpdate   MessageType = "note-update"   // Client pushes live content
	MessageTypeCursorUpdate MessageType = "cursor-update" // Client moves its cursor

	// Server to Client messages.
	MessageTypeActiveUsers   MessageType = "active-users"   // Occupants already in the room
	MessageTypeUserJoined    MessageType = "user-joined"    // Someone entered the room
	MessageTypeUserLeft      MessageType = "user-left"      // Someone left the room
	MessageTypeNoteUpdated   MessageType = "note-updated"   // Live content from another editor
	MessageTypeCursorUpdated MessageType = "cursor-updated" // Cursor of another editor
)

// Message is the envelope for all WebSocket communication.
type Message struct {
	Type    MessageType `json:"type"`
	Payload any         `json:"payload,omitempty"`
}


// JoinNotePayload is sent when a client enters a document room.
type JoinNotePayload struct {
	DocumentID string `json:"documentId"`
	UserID     string `json:"userId"`
	UserName   string `json:"userName"`
}

// PresencePayload describes one room occupant. It is the item type of
// active-users and the payload of user-joined and user-left.
type PresencePayload struct {
	UserID       string `json:"userId"`
	UserName     string `json:"userName"`
	ConnectionID string `json:"connectionId"`
}

// NoteUpdatePayload carries a client's live title and content.
type NoteUpdatePayload struct {
	DocumentID string `json:"documentId"`
	Content    string `json:"content"`
	Title      string `json:"title"`
	UserID     string `json:"userId"`
	UserName   string `json:"userName"`
}

// NoteUpdatedPayload is relayed to the other occupants of the room.
type NoteUpdatedPayload struct {
	Content   string    `json:"content"`
	Title     string    `json:"title"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Timestamp time.Time `json:"timestamp"`
}

// CursorUpdatePayload carries a client's cursor. Position is opaque to the
// server.
type CursorUpdatePayload struct {
	DocumentID string          `json:"documentId"`
	Position   json.RawMessage `json:"position"`
	UserID     string          `json:"userId"`
	UserName   string          `json:"userName"`
}

// CursorUpdatedPayload is relayed to the other occupants of the room.
type CursorUpdatedPayload struct {
	Position     json.RawMessage `json:"position"`
	UserID       string          `json:"userId"`
	UserName     string          `json:"userName"`
	ConnectionID string          `json:"connectionId"`
}
