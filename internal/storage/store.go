package storage

import (
	"context"
	"errors"
	"time"

	"github.com/serroba/notesync/internal/model"
)

// Common errors.
var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrDocumentExists   = errors.New("document already exists")
	ErrRevisionConflict = errors.New("document revision conflict")
	ErrShareCodeTaken   = errors.New("share code already in use")
)

// Store defines the interface for persisting documents.
// A document is written as a whole, so a single save is atomic.
type Store interface {
	// CreateDocument inserts a new document and sets its revision to 1.
	// Returns ErrDocumentExists if the ID is taken.
	CreateDocument(ctx context.Context, doc *model.Document) error

	// GetDocument returns a copy of the stored document.
	// Returns ErrDocumentNotFound if it doesn't exist.
	GetDocument(ctx context.Context, docID string) (*model.Document, error)

	// SaveDocument replaces the stored document. doc.Revision must match the
	// stored revision, otherwise ErrRevisionConflict is returned. On success
	// doc.Revision is incremented. Returns ErrShareCodeTaken if the share
	// code belongs to another document.
	SaveDocument(ctx context.Context, doc *model.Document) error

	// DeleteDocument removes a document.
	// Returns ErrDocumentNotFound if it doesn't exist.
	DeleteDocument(ctx context.Context, docID string) error

	// FindByShareCode returns the document holding the share code, expired
	// or not. Returns ErrDocumentNotFound if no document holds it.
	FindByShareCode(ctx context.Context, code string) (*model.Document, error)

	// ShareCodeExists reports whether any document holds the share code.
	ShareCodeExists(ctx context.Context, code string) (bool, error)

	// ListDocuments returns documents owned by or shared with userID,
	// most recently edited first.
	ListDocuments(ctx context.Context, userID string) ([]*model.Document, error)

	// ListExpiredShares returns IDs of documents whose share code expired
	// at or before now.
	ListExpiredShares(ctx context.Context, now time.Time) ([]string, error)
}
