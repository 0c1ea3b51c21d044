package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/serroba/notesync/internal/model"
)

// MemoryStore is an in-memory implementation of the Store interface.
// Useful for testing and development.
type MemoryStore struct {
	mu         sync.RWMutex
	docs       map[string]*model.Document
	shareCodes map[string]string // share code -> document ID
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:       make(map[string]*model.Document),
		shareCodes: make(map[string]string),
	}
}

// CreateDocument inserts a new document.
func (m *MemoryStore) CreateDocument(_ context.Context, doc *model.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.docs[doc.ID]; exists {
		return ErrDocumentExists
	}

	if err := m.claimShareCode(doc); err != nil {
		return err
	}

	doc.Revision = 1
	m.docs[doc.ID] = doc.Clone()

	return nil
}

// GetDocument returns a copy of the stored document.
func (m *MemoryStore) GetDocument(_ context.Context, docID string) (*model.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, exists := m.docs[docID]
	if !exists {
		return nil, ErrDocumentNotFound
	}

	return doc.Clone(), nil
}

// SaveDocument replaces the stored document if the revision matches.
func (m *MemoryStore) SaveDocument(_ context.Context, doc *model.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, exists := m.docs[doc.ID]
	if !exists {
		return ErrDocumentNotFound
	}

	if stored.Revision != doc.Revision {
		return ErrRevisionConflict
	}

	if err := m.claimShareCode(doc); err != nil {
		return err
	}

	if stored.ShareCode != "" && stored.ShareCode != doc.ShareCode {
		delete(m.shareCodes, stored.ShareCode)
	}

	doc.Revision++
	m.docs[doc.ID] = doc.Clone()

	return nil
}

// claimShareCode indexes the document's share code. Callers hold m.mu.
func (m *MemoryStore) claimShareCode(doc *model.Document) error {
	if doc.ShareCode == "" {
		return nil
	}

	if owner, taken := m.shareCodes[doc.ShareCode]; taken && owner != doc.ID {
		return ErrShareCodeTaken
	}

	m.shareCodes[doc.ShareCode] = doc.ID

	return nil
}

// DeleteDocument removes a document.
func (m *MemoryStore) DeleteDocument(_ context.Context, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, exists := m.docs[docID]
	if !exists {
		return ErrDocumentNotFound
	}

	if doc.ShareCode != "" {
		delete(m.shareCodes, doc.ShareCode)
	}

	delete(m.docs, docID)

	return nil
}

// FindByShareCode returns the document holding the share code.
func (m *MemoryStore) FindByShareCode(_ context.Context, code string) (*model.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	docID, exists := m.shareCodes[code]
	if !exists {
		return nil, ErrDocumentNotFound
	}

	return m.docs[docID].Clone(), nil
}

// ShareCodeExists reports whether any document holds the share code.
func (m *MemoryStore) ShareCodeExists(_ context.Context, code string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.shareCodes[code]

	return exists, nil
}

// ListDocuments returns documents owned by or shared with userID.
func (m *MemoryStore) ListDocuments(_ context.Context, userID string) ([]*model.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*model.Document, 0)

	for _, doc := range m.docs {
		if doc.HasMember(userID) {
			result = append(result, doc.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].LastEditedAt.After(result[j].LastEditedAt)
	})

	return result, nil
}

// ListExpiredShares returns IDs of documents whose share code has expired.
func (m *MemoryStore) ListExpiredShares(_ context.Context, now time.Time) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []string

	for code, docID := range m.shareCodes {
		doc := m.docs[docID]
		if doc.ShareCode == code && doc.ShareCodeExpires != nil && !now.Before(*doc.ShareCodeExpires) {
			result = append(result, docID)
		}
	}

	sort.Strings(result)

	return result, nil
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
