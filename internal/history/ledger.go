package history

import (
	"errors"
	"time"
)

// ErrNoHistory is returned when there is nothing to undo or redo.
var ErrNoHistory = errors.New("no history")

const (
	// DefaultLimit is the number of entries a ledger retains.
	DefaultLimit = 50

	// NoCursor is the cursor of a ledger that has nothing left to undo.
	NoCursor = -1
)

// Entry is an immutable snapshot of a document's title and body.
type Entry struct {
	Title     string    `json:"title"`
	Body      string    `json:"content"`
	UserID    string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
}

// Ledger is a bounded, linear version history with a cursor.
// The cursor satisfies NoCursor <= Cursor <= len(Entries)-1.
type Ledger struct {
	Entries []Entry `json:"entries"`
	Cursor  int     `json:"cursor"`
}

// NewLedger returns an empty ledger.
func NewLedger() Ledger {
	return Ledger{
		Entries: make([]Entry, 0),
		Cursor:  NoCursor,
	}
}

// Len returns the number of retained entries.
func (l *Ledger) Len() int {
	return len(l.Entries)
}

// Clone returns a deep copy of the ledger.
func (l *Ledger) Clone() Ledger {
	entries := make([]Entry, len(l.Entries))
	copy(entries, l.Entries)

	return Ledger{Entries: entries, Cursor: l.Cursor}
}

// Versioned is a document whose live title and body are tracked by a ledger.
type Versioned interface {
	Live() (title, body string)
	Restore(title, body string)
	Ledger() *Ledger
}

// State describes the live content and ledger position after an operation.
type State struct {
	Title  string `json:"title"`
	Body   string `json:"content"`
	Cursor int    `json:"currentVersion"`
	Total  int    `json:"totalVersions"`
}

// Recorder appends snapshots to ledgers, evicting the oldest entry once
// Limit entries are retained. The zero value uses DefaultLimit and time.Now.
type Recorder struct {
	Limit int
	Now   func() time.Time
}

// NewRecorder creates a recorder retaining at most limit entries.
func NewRecorder(limit int) Recorder {
	return Recorder{Limit: limit}
}

// Record captures the document's current title and body as a new entry and
// moves the cursor onto it. The live fields are not modified.
func (r Recorder) Record(doc Versioned, userID string) State {
	l := doc.Ledger()
	title, body := doc.Live()

	limit := r.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	// Evict from the front so the newest captures always survive.
	if over := len(l.Entries) - limit + 1; over > 0 {
		n := copy(l.Entries, l.Entries[over:])
		l.Entries = l.Entries[:n]
	}

	l.Entries = append(l.Entries, Entry{
		Title:     title,
		Body:      body,
		UserID:    userID,
		Timestamp: r.now(),
	})
	l.Cursor = len(l.Entries) - 1

	return State{Title: title, Body: body, Cursor: l.Cursor, Total: len(l.Entries)}
}

func (r Recorder) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}

	return time.Now().UTC()
}

// Undo restores the entry under the cursor into the document and moves the
// cursor back by one. Returns ErrNoHistory when the cursor is below the
// first entry.
func Undo(doc Versioned) (State, error) {
	l := doc.Ledger()
	if len(l.Entries) == 0 || l.Cursor < 0 {
		return State{}, ErrNoHistory
	}

	if l.Cursor > len(l.Entries)-1 {
		l.Cursor = len(l.Entries) - 1
	}

	entry := l.Entries[l.Cursor]
	doc.Restore(entry.Title, entry.Body)
	l.Cursor--

	return State{Title: entry.Title, Body: entry.Body, Cursor: l.Cursor, Total: len(l.Entries)}, nil
}

// Redo advances the cursor by one and restores that entry into the document.
// Returns ErrNoHistory when the cursor is already on the newest entry.
func Redo(doc Versioned) (State, error) {
	l := doc.Ledger()
	if l.Cursor >= len(l.Entries)-1 {
		return State{}, ErrNoHistory
	}

	if l.Cursor < NoCursor {
		l.Cursor = NoCursor
	}

	l.Cursor++
	entry := l.Entries[l.Cursor]
	doc.Restore(entry.Title, entry.Body)

	return State{Title: entry.Title, Body: entry.Body, Cursor: l.Cursor, Total: len(l.Entries)}, nil
}
