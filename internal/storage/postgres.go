package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver

	"github.com/serroba/notesync/internal/acl"
	"github.com/serroba/notesync/internal/history"
	"github.com/serroba/notesync/internal/model"
)

const (
	documentsTable     = "documents"
	shareCodeIndexName = "documents_share_code_key"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var documentColumns = []string{
	"id", "title", "content", "tags", "content_type", "folder", "owner_id",
	"collaborators", "is_favorite", "is_public", "is_shared", "share_code",
	"share_code_expires", "history", "last_edited_by", "last_edited_at",
	"created_at", "updated_at", "revision",
}

// documentRow is the column layout of the documents table.
type documentRow struct {
	ID               string         `db:"id"`
	Title            string         `db:"title"`
	Content          string         `db:"content"`
	Tags             string         `db:"tags"`
	ContentType      string         `db:"content_type"`
	Folder           string         `db:"folder"`
	OwnerID          string         `db:"owner_id"`
	Collaborators    string         `db:"collaborators"`
	IsFavorite       bool           `db:"is_favorite"`
	IsPublic         bool           `db:"is_public"`
	IsShared         bool           `db:"is_shared"`
	ShareCode        sql.NullString `db:"share_code"`
	ShareCodeExpires sql.NullTime   `db:"share_code_expires"`
	History          string         `db:"history"`
	LastEditedBy     string         `db:"last_edited_by"`
	LastEditedAt     time.Time      `db:"last_edited_at"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
	Revision         int64          `db:"revision"`
}

// PostgresStore persists documents in a single postgres table. The
// collaborator set, tags and version ledger are stored as JSONB so a
// document is still written in one statement.
type PostgresStore struct {
	db *sqlx.DB
}

// OpenPostgres connects to postgres and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	return db, nil
}

// NewPostgresStore wraps an open database handle.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate applies the embedded schema files in name order. Statements that
// report an existing object are skipped.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return err
	}

	var files []string

	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}

	sort.Strings(files)

	for _, file := range files {
		content, err := fs.ReadFile(migrationsFS, "migrations/"+file)
		if err != nil {
			return err
		}

		for _, q := range strings.Split(string(content), ";") {
			q = strings.TrimSpace(q)
			if q == "" {
				continue
			}

			if _, err := db.ExecContext(ctx, q); err != nil {
				if strings.Contains(err.Error(), "already exists") {
					continue
				}

				return fmt.Errorf("execute query in %s: %w", file, err)
			}
		}
	}

	return nil
}

// CreateDocument inserts a new document.
func (p *PostgresStore) CreateDocument(ctx context.Context, doc *model.Document) error {
	data, err := toColumns(doc)
	if err != nil {
		return err
	}

	data["revision"] = int64(1)

	query, args, err := builder.BuildInsert(documentsTable, []map[string]interface{}{data})
	if err != nil {
		return err
	}

	query, args = finalize(query, args)

	if _, err := p.db.ExecContext(ctx, query, args...); err != nil {
		if constraint, ok := conflictConstraint(err); ok {
			if constraint == shareCodeIndexName {
				return ErrShareCodeTaken
			}

			return ErrDocumentExists
		}

		return fmt.Errorf("insert document: %w", err)
	}

	doc.Revision = 1

	return nil
}

// GetDocument loads a document by ID.
func (p *PostgresStore) GetDocument(ctx context.Context, docID string) (*model.Document, error) {
	return p.selectOne(ctx, map[string]interface{}{"id": docID})
}

// SaveDocument replaces a document if its revision still matches.
func (p *PostgresStore) SaveDocument(ctx context.Context, doc *model.Document) error {
	update, err := toColumns(doc)
	if err != nil {
		return err
	}

	delete(update, "id")
	delete(update, "created_at")
	update["revision"] = doc.Revision + 1

	where := map[string]interface{}{
		"id":       doc.ID,
		"revision": doc.Revision,
	}

	query, args, err := builder.BuildUpdate(documentsTable, where, update)
	if err != nil {
		return err
	}

	query, args = finalize(query, args)

	result, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		if _, ok := conflictConstraint(err); ok {
			return ErrShareCodeTaken
		}

		return fmt.Errorf("update document: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if affected == 0 {
		if _, err := p.GetDocument(ctx, doc.ID); err != nil {
			return err
		}

		return ErrRevisionConflict
	}

	doc.Revision++

	return nil
}

// DeleteDocument removes a document.
func (p *PostgresStore) DeleteDocument(ctx context.Context, docID string) error {
	query, args, err := builder.BuildDelete(documentsTable, map[string]interface{}{"id": docID})
	if err != nil {
		return err
	}

	query, args = finalize(query, args)

	result, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if affected == 0 {
		return ErrDocumentNotFound
	}

	return nil
}

// FindByShareCode loads the document holding a share code.
func (p *PostgresStore) FindByShareCode(ctx context.Context, code string) (*model.Document, error) {
	return p.selectOne(ctx, map[string]interface{}{"share_code": code})
}

// ShareCodeExists reports whether any document holds the share code.
func (p *PostgresStore) ShareCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool

	err := p.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM documents WHERE share_code = $1)`, code)
	if err != nil {
		return false, fmt.Errorf("check share code: %w", err)
	}

	return exists, nil
}

// ListDocuments returns documents owned by or shared with userID.
func (p *PostgresStore) ListDocuments(ctx context.Context, userID string) ([]*model.Document, error) {
	member, err := json.Marshal([]map[string]string{{"userId": userID}})
	if err != nil {
		return nil, err
	}

	query := sqlx.Rebind(sqlx.DOLLAR, `SELECT `+strings.Join(documentColumns, ", ")+`
		FROM documents
		WHERE owner_id = ? OR collaborators @> ?::jsonb
		ORDER BY last_edited_at DESC`)

	var rows []documentRow
	if err := p.db.SelectContext(ctx, &rows, query, userID, string(member)); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	docs := make([]*model.Document, 0, len(rows))

	for i := range rows {
		doc, err := rows[i].toDocument()
		if err != nil {
			return nil, err
		}

		docs = append(docs, doc)
	}

	return docs, nil
}

// ListExpiredShares returns IDs of documents whose share code has expired.
func (p *PostgresStore) ListExpiredShares(ctx context.Context, now time.Time) ([]string, error) {
	where := map[string]interface{}{
		"share_code_expires <=": now,
		"_orderby":              "id asc",
	}

	query, args, err := builder.BuildSelect(documentsTable, where, []string{"id"})
	if err != nil {
		return nil, err
	}

	query, args = finalize(query, args)

	var ids []string
	if err := p.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("list expired shares: %w", err)
	}

	return ids, nil
}

func (p *PostgresStore) selectOne(ctx context.Context, where map[string]interface{}) (*model.Document, error) {
	where["_limit"] = []uint{0, 1}

	query, args, err := builder.BuildSelect(documentsTable, where, documentColumns)
	if err != nil {
		return nil, err
	}

	query, args = finalize(query, args)

	var row documentRow
	if err := p.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}

		return nil, fmt.Errorf("select document: %w", err)
	}

	return row.toDocument()
}

func toColumns(doc *model.Document) (map[string]interface{}, error) {
	tags := doc.Tags
	if tags == nil {
		tags = []string{}
	}

	collaborators := doc.Collaborators
	if collaborators == nil {
		collaborators = []acl.Collaborator{}
	}

	ledger := doc.History
	if ledger.Entries == nil {
		ledger = history.NewLedger()
	}

	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}

	collabJSON, err := json.Marshal(collaborators)
	if err != nil {
		return nil, fmt.Errorf("encode collaborators: %w", err)
	}

	historyJSON, err := json.Marshal(ledger)
	if err != nil {
		return nil, fmt.Errorf("encode history: %w", err)
	}

	shareCode := sql.NullString{String: doc.ShareCode, Valid: doc.ShareCode != ""}

	var expires sql.NullTime
	if doc.ShareCodeExpires != nil {
		expires = sql.NullTime{Time: *doc.ShareCodeExpires, Valid: true}
	}

	return map[string]interface{}{
		"id":                 doc.ID,
		"title":              doc.Title,
		"content":            doc.Body,
		"tags":               string(tagsJSON),
		"content_type":       string(doc.ContentType),
		"folder":             doc.Folder,
		"owner_id":           doc.Owner,
		"collaborators":      string(collabJSON),
		"is_favorite":        doc.IsFavorite,
		"is_public":          doc.IsPublic,
		"is_shared":          doc.IsShared,
		"share_code":         shareCode,
		"share_code_expires": expires,
		"history":            string(historyJSON),
		"last_edited_by":     doc.LastEditedBy,
		"last_edited_at":     doc.LastEditedAt,
		"created_at":         doc.CreatedAt,
		"updated_at":         doc.UpdatedAt,
	}, nil
}

func (r *documentRow) toDocument() (*model.Document, error) {
	doc := &model.Document{
		ID:           r.ID,
		Title:        r.Title,
		Body:         r.Content,
		ContentType:  model.ContentType(r.ContentType),
		Folder:       r.Folder,
		Owner:        r.OwnerID,
		IsFavorite:   r.IsFavorite,
		IsPublic:     r.IsPublic,
		IsShared:     r.IsShared,
		ShareCode:    r.ShareCode.String,
		LastEditedBy: r.LastEditedBy,
		LastEditedAt: r.LastEditedAt,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		Revision:     r.Revision,
	}

	if r.ShareCodeExpires.Valid {
		expires := r.ShareCodeExpires.Time
		doc.ShareCodeExpires = &expires
	}

	if err := json.Unmarshal([]byte(r.Tags), &doc.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}

	if err := json.Unmarshal([]byte(r.Collaborators), &doc.Collaborators); err != nil {
		return nil, fmt.Errorf("decode collaborators: %w", err)
	}

	if err := json.Unmarshal([]byte(r.History), &doc.History); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}

	if doc.History.Entries == nil {
		doc.History = history.NewLedger()
	}

	return doc, nil
}

// Ensure PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
