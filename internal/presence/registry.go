// Package presence tracks which connections occupy which document room.
package presence

import (
	"sort"
	"sync"
)

// Entry is a connection's participation in a room.
type Entry struct {
	ConnID   string
	DocID    string
	UserID   string
	UserName string
}

// Hooks run while the affected room is locked, so notices sent from them
// are ordered with the registry change they describe.
type Hooks struct {
	// Left is called on the previous room when a connection switches rooms.
	Left func(prev Entry, remaining []Entry)

	// Joined is called on the new room after the entry is registered.
	Joined func(joined Entry, others []Entry)
}

type member struct {
	entry Entry
	seq   uint64
}

type room struct {
	docID string

	mu      sync.Mutex
	members map[string]member
	closed  bool
}

func (rm *room) snapshot(exclude string) []Entry {
	members := make([]member, 0, len(rm.members))

	for id, m := range rm.members {
		if id != exclude {
			members = append(members, m)
		}
	}

	sort.Slice(members, func(i, j int) bool { return members[i].seq < members[j].seq })

	entries := make([]Entry, len(members))
	for i, m := range members {
		entries[i] = m.entry
	}

	return entries
}

// Registry holds presence entries keyed by connection. A connection is in
// at most one room. Lock order is room.mu before Registry.mu.
type Registry struct {
	mu    sync.Mutex
	conns map[string]*room
	rooms map[string]*room
	seq   uint64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]*room),
		rooms: make(map[string]*room),
	}
}

// Join registers e.ConnID in e.DocID, leaving any other room first, and
// returns the other occupants of the new room.
func (r *Registry) Join(e Entry, hooks Hooks) []Entry {
	if prev := r.roomOf(e.ConnID); prev != nil && prev.docID != e.DocID {
		r.Leave(e.ConnID, hooks.Left)
	}

	for {
		rm := r.openRoom(e.DocID)

		rm.mu.Lock()

		if rm.closed {
			rm.mu.Unlock()

			continue
		}

		r.mu.Lock()
		r.seq++
		seq := r.seq
		r.conns[e.ConnID] = rm
		r.mu.Unlock()

		if existing, ok := rm.members[e.ConnID]; ok {
			seq = existing.seq
		}

		rm.members[e.ConnID] = member{entry: e, seq: seq}
		others := rm.snapshot(e.ConnID)

		if hooks.Joined != nil {
			hooks.Joined(e, others)
		}

		rm.mu.Unlock()

		return others
	}
}

// Leave removes the connection from its room. It is a no-op if the
// connection is in no room. fn, if set, runs under the room lock.
func (r *Registry) Leave(connID string, fn func(prev Entry, remaining []Entry)) (Entry, bool) {
	for {
		rm := r.roomOf(connID)
		if rm == nil {
			return Entry{}, false
		}

		rm.mu.Lock()

		m, ok := rm.members[connID]
		if !ok {
			// Moved between lookup and lock.
			rm.mu.Unlock()

			continue
		}

		delete(rm.members, connID)

		r.mu.Lock()
		if r.conns[connID] == rm {
			delete(r.conns, connID)
		}

		if len(rm.members) == 0 {
			rm.closed = true
			delete(r.rooms, rm.docID)
		}
		r.mu.Unlock()

		if fn != nil {
			fn(m.entry, rm.snapshot(""))
		}

		rm.mu.Unlock()

		return m.entry, true
	}
}

// Occupants returns every entry in the room.
func (r *Registry) Occupants(docID string) []Entry {
	var entries []Entry

	r.Room(docID, func(members []Entry) {
		entries = members
	})

	return entries
}

// Room runs fn with the room's members while holding the room lock. It
// returns false if the room is empty.
func (r *Registry) Room(docID string, fn func(members []Entry)) bool {
	r.mu.Lock()
	rm := r.rooms[docID]
	r.mu.Unlock()

	if rm == nil {
		return false
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.closed {
		return false
	}

	fn(rm.snapshot(""))

	return true
}

// RoomCount returns the number of occupied rooms.
func (r *Registry) RoomCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.rooms)
}

func (r *Registry) roomOf(connID string) *room {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.conns[connID]
}

func (r *Registry) openRoom(docID string) *room {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[docID]
	if !ok {
		rm = &room{docID: docID, members: make(map[string]member)}
		r.rooms[docID] = rm
	}

	return rm
}
