package collab

import (
	"context"
	"fmt"

	"github.com/serroba/notesync/internal/acl"
	"github.com/serroba/notesync/internal/storage"
)

// AccessChecker resolves the role a user holds on a document. It returns
// acl.ErrAccessDenied when the user holds none.
type AccessChecker interface {
	RoleFor(ctx context.Context, docID, userID string) (acl.Role, error)
}

// DocumentAccess resolves roles from stored documents.
type DocumentAccess struct {
	Store storage.Store
}

// RoleFor implements AccessChecker.
func (a DocumentAccess) RoleFor(ctx context.Context, docID, userID string) (acl.Role, error) {
	doc, err := a.Store.GetDocument(ctx, docID)
	if err != nil {
		return 0, fmt.Errorf("load document: %w", err)
	}

	role, ok := acl.RoleOf(doc, userID)
	if !ok {
		return 0, acl.ErrAccessDenied
	}

	return role, nil
}
