package revision

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"docvault/internal/model"
	"docvault/internal/repository"
)

// Package revision maintains the ordered list of revisions per document:
// snapshot creation, adjacent-revision lookup, and renumbering after a
// deletion. The manager operates on one document at a time; callers
// serialize operations per document ID, so no cross-document locking is
// needed here.

// Chain is the revision chain manager for documents.
type Chain struct {
	revs repository.RevisionRepository
}

// NewChain constructs a Chain over the given revision repository.
func NewChain(revs repository.RevisionRepository) *Chain {
	return &Chain{revs: revs}
}

// NextVersion returns the version number the document's next revision will
// carry: the highest existing version plus one, or 1 for a fresh document.
func (c *Chain) NextVersion(ctx context.Context, documentID string) (int, error) {
	max, err := c.revs.MaxVersion(ctx, documentID)
	if err != nil {
		return 0, fmt.Errorf("max version for %s: %w", documentID, err)
	}
	return max + 1, nil
}

// Append records a revision snapshot mirroring the document's current fields,
// including its version. It runs after the document row itself is saved, so
// revision N always equals the document's state immediately after operation
// N; the pre-mutation state is never snapshotted.
func (c *Chain) Append(ctx context.Context, doc *model.Document) (*model.Revision, error) {
	rev := &model.Revision{
		ID:          uuid.New().String(),
		DocumentID:  doc.ID,
		Version:     doc.Version,
		Name:        doc.Name,
		ContentType: doc.ContentType,
		Digest:      doc.Digest,
		Size:        doc.Size,
		Author:      doc.Author,
		CreatedAt:   time.Now().UTC(),
	}
	stored, err := c.revs.Create(ctx, rev)
	if err != nil {
		return nil, fmt.Errorf("append revision v%d for %s: %w", doc.Version, doc.ID, err)
	}
	return stored, nil
}

// FindAdjacentReplacement returns the revision that becomes current when the
// revision at the given version is deleted: the nearest older revision,
// falling back to the nearest newer one. Returns nil when neither exists,
// meaning the document has no remaining history.
func (c *Chain) FindAdjacentReplacement(ctx context.Context, documentID string, version int) (*model.Revision, error) {
	prev, err := c.revs.FindPrevious(ctx, documentID, version)
	if err == nil {
		return prev, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find previous of v%d for %s: %w", version, documentID, err)
	}

	next, err := c.revs.FindNext(ctx, documentID, version)
	if err == nil {
		return next, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find next of v%d for %s: %w", version, documentID, err)
	}
	return nil, nil
}

// Renumber reassigns version numbers 1..N to the document's remaining
// revisions in ascending creation-time order, closing the numeric gap left
// by a deletion. History order is creation order; renumbering never reorders
// by any other key.
//
// The document's own version is decremented by one iff the deleted version
// was lower than it, because everything above the deletion point shifts down
// by one. The caller persists the document afterwards.
//
// Every remaining revision is rewritten even when only those above the gap
// moved. A shift-by-one starting at the deletion point would touch fewer
// rows; kept as-is for now since histories stay short in practice.
func (c *Chain) Renumber(ctx context.Context, doc *model.Document, deletedVersion int) error {
	revs, err := c.revs.ListByDocument(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("list revisions for %s: %w", doc.ID, err)
	}
	for i, rev := range revs {
		want := i + 1
		if rev.Version == want {
			continue
		}
		if err := c.revs.UpdateVersion(ctx, rev.ID, want); err != nil {
			return fmt.Errorf("renumber revision %s to v%d: %w", rev.ID, want, err)
		}
	}
	if deletedVersion < doc.Version {
		doc.Version--
	}
	return nil
}
