package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/serroba/notesync/internal/model"
)

// Local writes archived notes below a directory.
type Local struct {
	dir string
}

// NewLocal returns a sink writing below dir.
func NewLocal(dir string) *Local {
	return &Local{dir: dir}
}

// Archive writes doc as JSON under its object key.
func (l *Local) Archive(_ context.Context, doc *model.Document) error {
	data, err := encode(doc)
	if err != nil {
		return err
	}

	target := filepath.Join(l.dir, filepath.FromSlash(objectKey("", doc)))
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}

	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return fmt.Errorf("write archive: %w", err)
	}

	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)

		return fmt.Errorf("write archive: %w", err)
	}

	return nil
}
