package repository

import (
	"context"

	"docvault/internal/model"
)

// RevisionRepository defines data access for revision rows.
type RevisionRepository interface {
	// Create inserts a new revision record and returns the stored row.
	Create(ctx context.Context, rev *model.Revision) (*model.Revision, error)

	// FindByID returns a revision by its ID.
	FindByID(ctx context.Context, id string) (*model.Revision, error)

	// FindByDocumentAndVersion returns the revision at the given version.
	FindByDocumentAndVersion(ctx context.Context, documentID string, version int) (*model.Revision, error)

	// FindPrevious returns the revision with the highest version strictly
	// less than version for the document, or sql.ErrNoRows.
	FindPrevious(ctx context.Context, documentID string, version int) (*model.Revision, error)

	// FindNext returns the revision with the lowest version strictly
	// greater than version for the document, or sql.ErrNoRows.
	FindNext(ctx context.Context, documentID string, version int) (*model.Revision, error)

	// ListByDocument returns all revisions for the document ordered by
	// creation time ascending. History order is creation order.
	ListByDocument(ctx context.Context, documentID string) ([]model.Revision, error)

	// MaxVersion returns the highest version number for the document,
	// or 0 when the document has no revisions.
	MaxVersion(ctx context.Context, documentID string) (int, error)

	// UpdateVersion rewrites a revision's version number.
	UpdateVersion(ctx context.Context, id string, version int) error

	// Delete removes a revision by ID. It returns nil if the row was
	// deleted or did not exist.
	Delete(ctx context.Context, id string) error
}
