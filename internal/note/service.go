// Package note applies mutations to the authoritative document record:
// CRUD, version history, favorites and share codes.
package note

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/serroba/notesync/internal/acl"
	"github.com/serroba/notesync/internal/history"
	"github.com/serroba/notesync/internal/model"
	"github.com/serroba/notesync/internal/storage"
)

// Defaults applied by NewService.
const (
	DefaultShareExpiryDays = 7
	DefaultShareAttempts   = 10
	MaxShareExpiryDays     = 365
	defaultSaveRetries     = 5
)

// Notifier is told about changes live editors need to see.
type Notifier interface {
	// Publish pushes authoritative content to the document's room.
	Publish(docID, title, content, userID string)
	// Revalidate re-checks access for the document's live connections.
	Revalidate(ctx context.Context, docID string)
}

// Archiver keeps a copy of a document before it is deleted.
type Archiver interface {
	Archive(ctx context.Context, doc *model.Document) error
}

// Renderer turns a body into HTML.
type Renderer interface {
	Render(body string, contentType model.ContentType) (string, error)
}

// Config holds the collaborators of a Service.
type Config struct {
	Store         storage.Store
	MaxVersions   int
	ShareAttempts int
	// ShareExpiryDays is used when a share request names no expiry.
	ShareExpiryDays int
	GenerateCode    CodeGenerator
	Cache           *ShareCache
	Notifier        Notifier
	Archiver        Archiver
	Renderer        Renderer
	Logger          *zap.Logger
	Now             func() time.Time
}

// Service is the document mutation service. Mutations of one document are
// serialized in-process, and stale writes from other processes are retried
// through the store's revision check.
type Service struct {
	store         storage.Store
	recorder      history.Recorder
	shareAttempts int
	shareDays     int
	generateCode  CodeGenerator
	cache         *ShareCache
	notifier      Notifier
	archiver      Archiver
	renderer      Renderer
	logger        *zap.Logger
	now           func() time.Time
	locks         *keyedLocker
}

// NewService creates a service from cfg.
func NewService(cfg Config) *Service {
	s := &Service{
		store:         cfg.Store,
		shareAttempts: cfg.ShareAttempts,
		shareDays:     cfg.ShareExpiryDays,
		generateCode:  cfg.GenerateCode,
		cache:         cfg.Cache,
		notifier:      cfg.Notifier,
		archiver:      cfg.Archiver,
		renderer:      cfg.Renderer,
		logger:        cfg.Logger,
		now:           cfg.Now,
		locks:         newKeyedLocker(),
	}

	if s.shareAttempts <= 0 {
		s.shareAttempts = DefaultShareAttempts
	}

	if s.shareDays <= 0 {
		s.shareDays = DefaultShareExpiryDays
	}

	if s.generateCode == nil {
		s.generateCode = RandomCode
	}

	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	if s.now == nil {
		s.now = time.Now
	}

	s.recorder = history.Recorder{
		Limit: cfg.MaxVersions,
		Now:   func() time.Time { return s.now().UTC() },
	}

	return s
}

// SetNotifier attaches the live-session notifier after construction.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// CreateInput is the payload of Create.
type CreateInput struct {
	Title       string
	Body        string
	Tags        []string
	ContentType model.ContentType
	Folder      string
}

// Fields is a partial update. Nil fields are left alone.
type Fields struct {
	Title       *string
	Body        *string
	Tags        []string
	SetTags     bool
	ContentType *model.ContentType
	Folder      *string
	IsPublic    *bool
}

func (f Fields) validate() error {
	if f.Title != nil && strings.TrimSpace(*f.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}

	if f.ContentType != nil && !f.ContentType.Valid() {
		return fmt.Errorf("%w: unknown content type %q", ErrValidation, *f.ContentType)
	}

	return nil
}

func (f Fields) apply(doc *model.Document) {
	if f.Title != nil {
		doc.Title = strings.TrimSpace(*f.Title)
	}

	if f.Body != nil {
		doc.Body = *f.Body
	}

	if f.SetTags {
		doc.Tags = normalizeTags(f.Tags)
	}

	if f.ContentType != nil {
		doc.ContentType = *f.ContentType
	}

	if f.Folder != nil {
		doc.Folder = *f.Folder
	}

	if f.IsPublic != nil {
		doc.IsPublic = *f.IsPublic
	}
}

// ShareGrant is a freshly generated share code.
type ShareGrant struct {
	Code      string    `json:"shareCode"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Create stores a new document owned by userID.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*model.Document, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}

	contentType := in.ContentType
	if contentType == "" {
		contentType = model.ContentPlain
	}

	if !contentType.Valid() {
		return nil, fmt.Errorf("%w: unknown content type %q", ErrValidation, contentType)
	}

	now := s.now().UTC()
	doc := &model.Document{
		ID:            uuid.NewString(),
		Title:         title,
		Body:          in.Body,
		Tags:          normalizeTags(in.Tags),
		ContentType:   contentType,
		Folder:        in.Folder,
		Owner:         userID,
		Collaborators: []acl.Collaborator{},
		History:       history.NewLedger(),
		LastEditedBy:  userID,
		LastEditedAt:  now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.store.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("create note: %w", err)
	}

	s.logger.Info("note created", zap.String("doc_id", doc.ID), zap.String("user_id", userID))

	return doc, nil
}

// Get returns the document to its owner or a collaborator.
func (s *Service) Get(ctx context.Context, docID, userID string) (*model.Document, error) {
	doc, err := s.load(ctx, docID)
	if err != nil {
		return nil, err
	}

	if err := authorize(doc, userID, acl.ActionRead); err != nil {
		return nil, err
	}

	return doc, nil
}

// List returns the documents owned by or shared with userID.
func (s *Service) List(ctx context.Context, userID string) ([]*model.Document, error) {
	docs, err := s.store.ListDocuments(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}

	return docs, nil
}

// Update applies a partial update. Owner only.
func (s *Service) Update(ctx context.Context, docID, userID string, f Fields) (*model.Document, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}

	return s.mutate(ctx, docID, func(doc *model.Document, now time.Time) error {
		if err := authorize(doc, userID, acl.ActionAdminister); err != nil {
			return err
		}

		f.apply(doc)
		doc.Touch(userID, now)

		return nil
	})
}

// SaveEdit records the current version and applies a partial update in
// one write. Any user who can edit may call it.
func (s *Service) SaveEdit(ctx context.Context, docID, userID string, f Fields) (*model.Document, history.State, error) {
	if err := f.validate(); err != nil {
		return nil, history.State{}, err
	}

	var state history.State

	doc, err := s.mutate(ctx, docID, func(doc *model.Document, now time.Time) error {
		if err := authorize(doc, userID, acl.ActionWrite); err != nil {
			return err
		}

		state = s.recorder.Record(doc, userID)
		f.apply(doc)
		doc.Touch(userID, now)

		return nil
	})
	if err != nil {
		return nil, history.State{}, err
	}

	return doc, state, nil
}

// RecordVersion captures the document's current title and body.
func (s *Service) RecordVersion(ctx context.Context, docID, userID string) (history.State, error) {
	var state history.State

	_, err := s.mutate(ctx, docID, func(doc *model.Document, _ time.Time) error {
		if err := authorize(doc, userID, acl.ActionWrite); err != nil {
			return err
		}

		state = s.recorder.Record(doc, userID)

		return nil
	})
	if err != nil {
		return history.State{}, err
	}

	return state, nil
}

// Undo restores the version under the cursor.
func (s *Service) Undo(ctx context.Context, docID, userID string) (history.State, error) {
	return s.restore(ctx, docID, userID, history.Undo)
}

// Redo restores the version after the cursor.
func (s *Service) Redo(ctx context.Context, docID, userID string) (history.State, error) {
	return s.restore(ctx, docID, userID, history.Redo)
}

func (s *Service) restore(
	ctx context.Context, docID, userID string, step func(history.Versioned) (history.State, error),
) (history.State, error) {
	var state history.State

	_, err := s.mutate(ctx, docID, func(doc *model.Document, now time.Time) error {
		if err := authorize(doc, userID, acl.ActionWrite); err != nil {
			return err
		}

		var err error

		state, err = step(doc)
		if err != nil {
			return err
		}

		doc.Touch(userID, now)

		return nil
	})
	if err != nil {
		return history.State{}, err
	}

	if s.notifier != nil {
		s.notifier.Publish(docID, state.Title, state.Body, userID)
	}

	return state, nil
}

// ToggleFavorite flips the favorite flag.
func (s *Service) ToggleFavorite(ctx context.Context, docID, userID string) (*model.Document, error) {
	return s.mutate(ctx, docID, func(doc *model.Document, _ time.Time) error {
		if err := authorize(doc, userID, acl.ActionRead); err != nil {
			return err
		}

		doc.IsFavorite = !doc.IsFavorite

		return nil
	})
}

// GenerateShareToken gives the document a new share code valid for
// expiresInDays days, or the default when zero. Owner only.
func (s *Service) GenerateShareToken(ctx context.Context, docID, userID string, expiresInDays int) (ShareGrant, error) {
	if expiresInDays == 0 {
		expiresInDays = s.shareDays
	}

	if expiresInDays < 0 || expiresInDays > MaxShareExpiryDays {
		return ShareGrant{}, fmt.Errorf("%w: expiresIn must be between 1 and %d days", ErrValidation, MaxShareExpiryDays)
	}

	doc, err := s.load(ctx, docID)
	if err != nil {
		return ShareGrant{}, err
	}

	if err := authorize(doc, userID, acl.ActionAdminister); err != nil {
		return ShareGrant{}, err
	}

	log := s.logger.With(zap.String("doc_id", docID))

	for attempt := 1; attempt <= s.shareAttempts; attempt++ {
		code, err := s.generateCode()
		if err != nil {
			return ShareGrant{}, fmt.Errorf("generate share code: %w", err)
		}

		taken, err := s.store.ShareCodeExists(ctx, code)
		if err != nil {
			return ShareGrant{}, fmt.Errorf("check share code: %w", err)
		}

		if taken {
			log.Debug("share code collision", zap.Int("attempt", attempt))

			continue
		}

		var (
			previous string
			grant    ShareGrant
		)

		_, err = s.mutate(ctx, docID, func(doc *model.Document, now time.Time) error {
			if err := authorize(doc, userID, acl.ActionAdminister); err != nil {
				return err
			}

			expires := now.AddDate(0, 0, expiresInDays)
			previous = doc.ShareCode
			doc.ShareCode = code
			doc.ShareCodeExpires = &expires
			doc.IsShared = true
			grant = ShareGrant{Code: code, ExpiresAt: expires}

			return nil
		})
		if errors.Is(err, storage.ErrShareCodeTaken) {
			log.Debug("share code collision on save", zap.Int("attempt", attempt))

			continue
		}

		if err != nil {
			return ShareGrant{}, err
		}

		s.cache.remove(previous)
		s.cache.put(code, docID)
		log.Info("share code generated", zap.Time("expires_at", grant.ExpiresAt))

		return grant, nil
	}

	log.Warn("share code attempts exhausted", zap.Int("attempts", s.shareAttempts))

	return ShareGrant{}, ErrShareCodeExhausted
}

// JoinByShareToken adds userID as a write collaborator of the document
// holding code. Joining again is a no-op. An expired code is cleared.
func (s *Service) JoinByShareToken(ctx context.Context, code, userID string) (*model.Document, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrInvalidOrExpired
	}

	docID, cached, err := s.resolveShareCode(ctx, code, true)
	if err != nil {
		return nil, err
	}

	doc, err := s.joinDocument(ctx, docID, code, userID)
	if cached && errors.Is(err, ErrInvalidOrExpired) {
		// The cached document no longer holds the code.
		s.cache.remove(code)

		if docID, _, err = s.resolveShareCode(ctx, code, false); err != nil {
			return nil, err
		}

		doc, err = s.joinDocument(ctx, docID, code, userID)
	}

	if err != nil {
		return nil, err
	}

	return doc, nil
}

func (s *Service) joinDocument(ctx context.Context, docID, code, userID string) (*model.Document, error) {
	expired := false

	doc, err := s.mutate(ctx, docID, func(doc *model.Document, now time.Time) error {
		if doc.ShareCode != code {
			return ErrInvalidOrExpired
		}

		if !doc.ShareActive(now) {
			expired = true
			doc.ClearShareCode()
			doc.IsShared = false

			return nil
		}

		if !doc.AddCollaborator(userID, acl.Write, now) {
			return errUnchanged
		}

		return nil
	})

	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidOrExpired):
		return nil, ErrInvalidOrExpired
	case err != nil:
		return nil, err
	case expired:
		s.cache.remove(code)
		s.logger.Info("expired share code cleared", zap.String("doc_id", docID))

		return nil, ErrInvalidOrExpired
	}

	s.logger.Debug("joined by share code", zap.String("doc_id", docID), zap.String("user_id", userID))

	return doc, nil
}

func (s *Service) resolveShareCode(ctx context.Context, code string, useCache bool) (string, bool, error) {
	if useCache {
		if docID, ok := s.cache.get(code); ok {
			return docID, true, nil
		}
	}

	doc, err := s.store.FindByShareCode(ctx, code)
	if errors.Is(err, storage.ErrDocumentNotFound) {
		return "", false, ErrInvalidOrExpired
	}

	if err != nil {
		return "", false, fmt.Errorf("find share code: %w", err)
	}

	s.cache.put(code, doc.ID)

	return doc.ID, false, nil
}

// StopSharing clears the share code and removes every collaborator. Owner
// only.
func (s *Service) StopSharing(ctx context.Context, docID, userID string) (*model.Document, error) {
	var previous string

	doc, err := s.mutate(ctx, docID, func(doc *model.Document, _ time.Time) error {
		if err := authorize(doc, userID, acl.ActionAdminister); err != nil {
			return err
		}

		previous = doc.ShareCode
		doc.ClearShareCode()
		doc.IsShared = false
		doc.Collaborators = []acl.Collaborator{}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.remove(previous)

	if s.notifier != nil {
		s.notifier.Revalidate(ctx, docID)
	}

	return doc, nil
}

// Delete archives and removes the document. Owner only.
func (s *Service) Delete(ctx context.Context, docID, userID string) error {
	unlock := s.locks.Lock(docID)
	defer unlock()

	doc, err := s.load(ctx, docID)
	if err != nil {
		return err
	}

	if err := authorize(doc, userID, acl.ActionAdminister); err != nil {
		return err
	}

	if s.archiver != nil {
		if err := s.archiver.Archive(ctx, doc); err != nil {
			return fmt.Errorf("archive note: %w", err)
		}
	}

	if err := s.store.DeleteDocument(ctx, docID); err != nil {
		if errors.Is(err, storage.ErrDocumentNotFound) {
			return ErrNotFound
		}

		return fmt.Errorf("delete note: %w", err)
	}

	s.cache.remove(doc.ShareCode)
	s.logger.Info("note deleted", zap.String("doc_id", docID), zap.String("user_id", userID))

	if s.notifier != nil {
		s.notifier.Revalidate(ctx, docID)
	}

	return nil
}

// Render returns the body as HTML.
func (s *Service) Render(ctx context.Context, docID, userID string) (string, error) {
	doc, err := s.Get(ctx, docID, userID)
	if err != nil {
		return "", err
	}

	if s.renderer == nil {
		return "", errors.New("no renderer configured")
	}

	html, err := s.renderer.Render(doc.Body, doc.ContentType)
	if err != nil {
		return "", fmt.Errorf("render note: %w", err)
	}

	return html, nil
}

// SweepExpiredShares clears every expired share code and returns how many
// documents changed.
func (s *Service) SweepExpiredShares(ctx context.Context) (int, error) {
	ids, err := s.store.ListExpiredShares(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("list expired shares: %w", err)
	}

	cleared := 0

	for _, id := range ids {
		var code string

		_, err := s.mutate(ctx, id, func(doc *model.Document, now time.Time) error {
			if doc.ShareCode == "" || doc.ShareActive(now) {
				return errUnchanged
			}

			code = doc.ShareCode
			doc.ClearShareCode()
			doc.IsShared = false

			return nil
		})
		if errors.Is(err, ErrNotFound) {
			continue
		}

		if err != nil {
			return cleared, err
		}

		if code != "" {
			s.cache.remove(code)
			cleared++
		}
	}

	return cleared, nil
}

func (s *Service) load(ctx context.Context, docID string) (*model.Document, error) {
	doc, err := s.store.GetDocument(ctx, docID)
	if errors.Is(err, storage.ErrDocumentNotFound) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("load note: %w", err)
	}

	return doc, nil
}

// mutate runs a read-modify-write of one document under its lock. fn may
// return errUnchanged to skip the write. Stale revisions are retried with
// a fresh read.
func (s *Service) mutate(
	ctx context.Context, docID string, fn func(doc *model.Document, now time.Time) error,
) (*model.Document, error) {
	unlock := s.locks.Lock(docID)
	defer unlock()

	for attempt := 0; ; attempt++ {
		doc, err := s.load(ctx, docID)
		if err != nil {
			return nil, err
		}

		now := s.now().UTC()

		if err := fn(doc, now); err != nil {
			if errors.Is(err, errUnchanged) {
				return doc, nil
			}

			return nil, err
		}

		doc.UpdatedAt = now

		err = s.store.SaveDocument(ctx, doc)
		if errors.Is(err, storage.ErrRevisionConflict) && attempt < defaultSaveRetries {
			s.logger.Debug("revision conflict, retrying", zap.String("doc_id", docID), zap.Int("attempt", attempt+1))

			continue
		}

		if errors.Is(err, storage.ErrDocumentNotFound) {
			return nil, ErrNotFound
		}

		if err != nil {
			return nil, fmt.Errorf("save note: %w", err)
		}

		return doc, nil
	}
}

// authorize maps a denied action to the error callers see. Reads and owner
// actions answer ErrNotFound so they do not reveal the note exists.
func authorize(doc *model.Document, userID string, action acl.Action) error {
	if err := acl.Require(doc, userID, action); err != nil {
		if action == acl.ActionWrite {
			return ErrForbidden
		}

		return ErrNotFound
	}

	return nil
}

func normalizeTags(tags []string) []string {
	result := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))

	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}

		if _, dup := seen[tag]; dup {
			continue
		}

		seen[tag] = struct{}{}
		result = append(result, tag)
	}

	return result
}
