package repository

import (
	"context"
	"time"

	"docvault/internal/model"
)

// DocumentRepository defines data access for documents using SQL queries only.
type DocumentRepository interface {
	// Create inserts a new document record and returns the stored row.
	Create(ctx context.Context, doc *model.Document) (*model.Document, error)

	// FindByID returns a document by its ID.
	FindByID(ctx context.Context, id string) (*model.Document, error)

	// Save persists the mutable fields of an existing document.
	Save(ctx context.Context, doc *model.Document) error

	// PathExists reports whether a document other than excludeID, owned by
	// author, already occupies the (name, path) pair. Path uniqueness is
	// scoped per author, not global.
	PathExists(ctx context.Context, author, name, path, excludeID string) (bool, error)

	// List returns a paginated list of documents and a total count.
	List(ctx context.Context, pq PageQuery) (*PageResult[model.Document], error)

	// ListArchivedBefore returns documents archived earlier than cutoff.
	ListArchivedBefore(ctx context.Context, cutoff time.Time) ([]model.Document, error)

	// Delete removes a document by ID. Revision rows cascade at the schema
	// level. It returns nil if the row was deleted or did not exist.
	Delete(ctx context.Context, id string) error
}
