// Package archive keeps a JSON copy of every note before it is deleted.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strconv"

	"github.com/serroba/notesync/internal/config"
	"github.com/serroba/notesync/internal/model"
)

// Sink stores archived notes.
type Sink interface {
	Archive(ctx context.Context, doc *model.Document) error
}

// New builds the sink selected by cfg. Type "none" yields a nil sink.
func New(ctx context.Context, cfg config.ArchiveConfig) (Sink, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "local":
		return NewLocal(cfg.Dir), nil
	case "s3":
		return NewS3(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown archive type %q", cfg.Type)
	}
}

// objectKey names the archived copy: prefix/owner/id-r<revision>.json.
func objectKey(prefix string, doc *model.Document) string {
	name := doc.ID + "-r" + strconv.FormatInt(doc.Revision, 10) + ".json"

	return path.Join(prefix, doc.Owner, name)
}

func encode(doc *model.Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode note %s: %w", doc.ID, err)
	}

	return data, nil
}
