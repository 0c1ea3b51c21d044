package collab

import "time"

// Edit is a live change to a document's title and content sent by one
// connection.
type Edit struct {
	DocID    string
	Title    string
	Content  string
	UserID   string
	UserName string
	At       time.Time
}

// Merger turns an incoming edit into what the rest of the room receives.
// Returning false drops the edit.
type Merger interface {
	Merge(edit Edit) (Edit, bool)
}

// LastWriterWins relays every edit unchanged. The latest edit a client
// receives replaces whatever it had.
type LastWriterWins struct{}

// Merge implements Merger.
func (LastWriterWins) Merge(edit Edit) (Edit, bool) {
	return edit, true
}
