package collab_test

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/serroba/notesync/internal/acl"
	"github.com/serroba/notesync/internal/ws"
)

// mockConn is a test double for ws.Conn. Frames pushed with push are read
// by the server; everything the server writes is recorded.
type mockConn struct {
	mu       sync.Mutex
	messages []ws.Message

	incoming  chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newMockConn() *mockConn {
	return &mockConn{
		incoming: make(chan []byte, 64),
		closed:   make(chan struct{}),
	}
}

func (m *mockConn) WriteJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	var msg ws.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.messages = append(m.messages, msg)

	return nil
}

func (m *mockConn) ReadMessage() (int, []byte, error) {
	select {
	case frame := <-m.incoming:
		return 1, frame, nil
	case <-m.closed:
		return 0, nil, io.EOF
	}
}

func (m *mockConn) Close() error {
	m.closeOnce.Do(func() { close(m.closed) })

	return nil
}

func (m *mockConn) push(t ws.MessageType, payload any) {
	data, err := json.Marshal(ws.Message{Type: t, Payload: payload})
	if err != nil {
		panic(err)
	}

	m.incoming <- data
}

// pushRaw queues a frame exactly as given.
func (m *mockConn) pushRaw(frame string) {
	m.incoming <- []byte(frame)
}

func (m *mockConn) isClosed() bool {
	select {
	case <-m.closed:
		return true
	default:
		return false
	}
}

// ofType returns the recorded messages of type t.
func (m *mockConn) ofType(t ws.MessageType) []ws.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []ws.Message

	for _, msg := range m.messages {
		if msg.Type == t {
			result = append(result, msg)
		}
	}

	return result
}

// fakeAccess grants roles from a docID -> userID -> role table.
type fakeAccess struct {
	mu    sync.Mutex
	roles map[string]map[string]acl.Role
	err   error
}

func newFakeAccess() *fakeAccess {
	return &fakeAccess{roles: make(map[string]map[string]acl.Role)}
}

func (f *fakeAccess) grant(docID, userID string, role acl.Role) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.roles[docID] == nil {
		f.roles[docID] = make(map[string]acl.Role)
	}

	f.roles[docID][userID] = role
}

func (f *fakeAccess) revoke(docID, userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.roles[docID], userID)
}

// failWith makes every lookup return err until reset with nil.
func (f *fakeAccess) failWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.err = err
}

func (f *fakeAccess) RoleFor(_ context.Context, docID, userID string) (acl.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return 0, f.err
	}

	role, ok := f.roles[docID][userID]
	if !ok {
		return 0, acl.ErrAccessDenied
	}

	return role, nil
}
