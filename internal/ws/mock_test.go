package ws_test

import (
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/serroba/notesync/internal/ws"
)

const textMessage = 1

// mockConn is a test double for ws.Conn.
type mockConn struct {
	mu       sync.Mutex
	messages []ws.Message
	closed   bool
	writeErr error

	// For ReadMessage simulation. Items are frames, raw strings or errors.
	incoming chan any
}

func newMockConn() *mockConn {
	return &mockConn{
		messages: make([]ws.Message, 0),
		incoming: make(chan any, 10),
	}
}

func (m *mockConn) WriteJSON(v any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.writeErr != nil {
		return m.writeErr
	}

	// Convert to Message
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	var msg ws.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}

	m.messages = append(m.messages, msg)

	return nil
}

func (m *mockConn) ReadMessage() (int, []byte, error) {
	frame, ok := <-m.incoming
	if !ok {
		return 0, nil, io.EOF
	}

	switch f := frame.(type) {
	case error:
		return 0, nil, f
	case string:
		return textMessage, []byte(f), nil
	}

	data, err := json.Marshal(frame)
	if err != nil {
		return 0, nil, err
	}

	return textMessage, data, nil
}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true

	return nil
}

func (m *mockConn) Messages() []ws.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]ws.Message, len(m.messages))
	copy(result, m.messages)

	return result
}

func (m *mockConn) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.closed
}

func (m *mockConn) failWrites() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.writeErr = errors.New("broken pipe")
}
