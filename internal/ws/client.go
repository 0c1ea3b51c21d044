package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultQueueSize is the outbound buffer of a client.
const DefaultQueueSize = 64

// Common errors.
var (
	ErrClientClosed     = errors.New("client is closed")
	ErrSendQueueFull    = errors.New("send queue is full")
	ErrMalformedMessage = errors.New("malformed message")
)

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	WriteJSON(v any) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// writeDeadliner is implemented by *websocket.Conn.
type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// Client represents a connected user. Outbound messages go through a
// buffered queue drained by WritePump, so they reach the peer in the order
// they were sent.
type Client struct {
	ID       string
	UserID   string
	UserName string
	conn     Conn

	send         chan Message
	done         chan struct{}
	closeOnce    sync.Once
	writeTimeout time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithQueueSize sets the outbound buffer size.
func WithQueueSize(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.send = make(chan Message, n)
		}
	}
}

// WithWriteTimeout bounds each write when the connection supports deadlines.
func WithWriteTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.writeTimeout = d
	}
}

// NewClient creates a new client wrapper.
func NewClient(id, userID, userName string, conn Conn, opts ...ClientOption) *Client {
	c := &Client{
		ID:       id,
		UserID:   userID,
		UserName: userName,
		conn:     conn,
		send:     make(chan Message, DefaultQueueSize),
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Send queues a message without blocking. Delivery is best effort: a full
// queue drops the message.
func (c *Client) Send(msg Message) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}

	select {
	case c.send <- msg:
		return nil
	case <-c.done:
		return ErrClientClosed
	default:
		return ErrSendQueueFull
	}
}

// WritePump writes queued messages until the client is closed or a write
// fails. A failed write closes the client.
func (c *Client) WritePump() error {
	for {
		select {
		case <-c.done:
			return nil
		case msg := <-c.send:
			if err := c.write(msg); err != nil {
				_ = c.Close()

				return err
			}
		}
	}
}

func (c *Client) write(msg Message) error {
	if d, ok := c.conn.(writeDeadliner); ok && c.writeTimeout > 0 {
		if err := d.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}

	return c.conn.WriteJSON(msg)
}

// Receive reads a message from the client and decodes its payload by type.
// Errors wrapping ErrMalformedMessage leave the connection usable.
func (c *Client) Receive() (Message, error) {
	var raw struct {
		Type    MessageType     `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}

	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return Message{}, err
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	msg := Message{Type: raw.Type}

	// Parse payload based on message type
	switch raw.Type {
	case MessageTypeJoinNote:
		var payload JoinNotePayload
		err = json.Unmarshal(raw.Payload, &payload)
		msg.Payload = payload
	case MessageTypeNoteUpdate:
		var payload NoteUpdatePayload
		err = json.Unmarshal(raw.Payload, &payload)
		msg.Payload = payload
	case MessageTypeCursorUpdate:
		var payload CursorUpdatePayload
		err = json.Unmarshal(raw.Payload, &payload)
		msg.Payload = payload
	default:
		return Message{}, fmt.Errorf("%w: unexpected type %q", ErrMalformedMessage, raw.Type)
	}

	if err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	return msg, nil
}

// Close closes the client connection. It is safe to call more than once.
func (c *Client) Close() error {
	var err error

	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})

	return err
}

// Done is closed when the client is closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}
