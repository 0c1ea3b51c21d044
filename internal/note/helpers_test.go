package note_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/serroba/notesync/internal/model"
	"github.com/serroba/notesync/internal/note"
	"github.com/serroba/notesync/internal/storage"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

// codes returns a generator yielding the given codes, then distinct ones.
func codes(fixed ...string) note.CodeGenerator {
	var (
		mu sync.Mutex
		n  int
	)

	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()

		n++
		if n <= len(fixed) {
			return fixed[n-1], nil
		}

		return fmt.Sprintf("GEN%05d", n), nil
	}
}

type notifier struct {
	mu          sync.Mutex
	published   []string
	revalidated []string
}

func (n *notifier) Publish(docID, title, content, userID string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.published = append(n.published, fmt.Sprintf("%s:%s:%s:%s", docID, title, content, userID))
}

func (n *notifier) Revalidate(_ context.Context, docID string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.revalidated = append(n.revalidated, docID)
}

type archiver struct {
	err      error
	archived []string
}

func (a *archiver) Archive(_ context.Context, doc *model.Document) error {
	if a.err != nil {
		return a.err
	}

	a.archived = append(a.archived, doc.ID)

	return nil
}

type renderer struct{}

func (renderer) Render(body string, contentType model.ContentType) (string, error) {
	return fmt.Sprintf("<%s>%s", contentType, body), nil
}

// conflictStore fails the first n saves with a revision conflict.
type conflictStore struct {
	*storage.MemoryStore

	mu        sync.Mutex
	conflicts int
}

func (c *conflictStore) SaveDocument(ctx context.Context, doc *model.Document) error {
	c.mu.Lock()
	if c.conflicts > 0 {
		c.conflicts--
		c.mu.Unlock()

		return storage.ErrRevisionConflict
	}
	c.mu.Unlock()

	return c.MemoryStore.SaveDocument(ctx, doc)
}

type fixture struct {
	svc      *note.Service
	store    storage.Store
	clock    *clock
	notifier *notifier
	archiver *archiver
}

func newFixture(t *testing.T, opts ...func(*note.Config)) *fixture {
	t.Helper()

	f := &fixture{
		store:    storage.NewMemoryStore(),
		clock:    newClock(),
		notifier: &notifier{},
		archiver: &archiver{},
	}

	cfg := note.Config{
		Store:        f.store,
		GenerateCode: codes(),
		Cache:        note.NewShareCache(16, time.Hour),
		Notifier:     f.notifier,
		Archiver:     f.archiver,
		Renderer:     renderer{},
		Now:          f.clock.Now,
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	f.store = cfg.Store
	f.svc = note.NewService(cfg)

	return f
}

func (f *fixture) create(t *testing.T, owner, title, body string) *model.Document {
	t.Helper()

	doc, err := f.svc.Create(context.Background(), owner, note.CreateInput{Title: title, Body: body})
	require.NoError(t, err)

	return doc
}

func (f *fixture) share(t *testing.T, doc *model.Document, users ...string) note.ShareGrant {
	t.Helper()

	ctx := context.Background()

	grant, err := f.svc.GenerateShareToken(ctx, doc.ID, doc.Owner, 0)
	require.NoError(t, err)

	for _, u := range users {
		_, err := f.svc.JoinByShareToken(ctx, grant.Code, u)
		require.NoError(t, err)
	}

	return grant
}

func ptr[T any](v T) *T {
	return &v
}

func requireIs(t *testing.T, err, target error) {
	t.Helper()

	if !errors.Is(err, target) {
		t.Fatalf("expected %v, got %v", target, err)
	}
}
