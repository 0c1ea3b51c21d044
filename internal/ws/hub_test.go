package ws_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/serroba/notesync/internal/ws"
	"github.com/stretchr/testify/require"
)

func TestHub_RegisterUnregister(t *testing.T) {
	t.Parallel()

	hub := ws.NewHub()
	client := ws.NewClient("c1", "user1", "User One", newMockConn())

	hub.Register(client)

	if hub.TotalClients() != 1 {
		t.Errorf("expected 1 client, got %d", hub.TotalClients())
	}

	got, ok := hub.Get("c1")
	require.True(t, ok)
	require.Same(t, client, got)

	hub.Unregister(client)

	if hub.TotalClients() != 0 {
		t.Errorf("expected 0 clients, got %d", hub.TotalClients())
	}
}

func TestHub_UnregisterKeepsReplacement(t *testing.T) {
	t.Parallel()

	hub := ws.NewHub()
	old := ws.NewClient("c1", "user1", "User One", newMockConn())
	replacement := ws.NewClient("c1", "user1", "User One", newMockConn())

	hub.Register(old)
	hub.Register(replacement)
	hub.Unregister(old)

	got, ok := hub.Get("c1")
	require.True(t, ok)
	require.Same(t, replacement, got)
}

func TestHub_Send(t *testing.T) {
	t.Parallel()

	hub := ws.NewHub()
	conn := newMockConn()
	client := ws.NewClient("c1", "user1", "User One", conn)
	hub.Register(client)

	require.NoError(t, hub.Send("c1", ws.Message{Type: ws.MessageTypeUserJoined}))
	require.ErrorIs(t, hub.Send("missing", ws.Message{Type: ws.MessageTypeUserJoined}), ws.ErrClientNotFound)

	require.NoError(t, client.Close())
	require.ErrorIs(t, hub.Send("c1", ws.Message{Type: ws.MessageTypeUserJoined}), ws.ErrClientClosed)
}

func TestHub_ConcurrentOperations(t *testing.T) {
	t.Parallel()

	hub := ws.NewHub()

	var wg sync.WaitGroup

	for i := range 100 {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			client := ws.NewClient(fmt.Sprintf("c%d", i), "user", "User", newMockConn())
			hub.Register(client)
			_ = hub.Send(client.ID, ws.Message{Type: ws.MessageTypeUserJoined})

			if i%2 == 0 {
				hub.Unregister(client)
			}
		}(i)
	}

	wg.Wait()

	if hub.TotalClients() != 50 {
		t.Errorf("expected 50 clients, got %d", hub.TotalClients())
	}
}
