package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"docvault/internal/blob"
	"docvault/internal/lock"
	"docvault/internal/model"
	"docvault/internal/repository"
	"docvault/internal/revision"
)

var (
	ErrIDRequired       = errors.New("id is required")
	ErrReaderNil        = errors.New("reader is nil")
	ErrDocumentNotFound = errors.New("document not found")
	ErrRevisionNotFound = errors.New("revision not found")
	ErrDuplicatePath    = errors.New("a document with this name already exists at this path")
	ErrLastRevision     = errors.New("cannot delete the only remaining version")
)

// UploadMeta carries the caller-supplied metadata for a new document.
type UploadMeta struct {
	Name        string
	ContentType string
	Path        string
	Author      string
}

// DocumentListResult is the service-level DTO for paginated documents.
type DocumentListResult struct {
	Items []model.Document `json:"data"`
	Total int              `json:"total"`
}

// DocumentService defines the document lifecycle use cases. Every mutation is
// serialized per document ID; operations on distinct documents run in
// parallel. Blob writes are ordered before any row referencing their digest
// is committed, and blobs are released only after the referencing rows are
// gone.
type DocumentService interface {
	// Upload stores the content blob, creates the document at version 1 and
	// its matching first revision. Fails with ErrDuplicatePath when a
	// document of the same author already occupies the (name, path) pair.
	Upload(ctx context.Context, r io.Reader, meta UploadMeta) (*model.Document, error)

	// UpdateContent stores a new blob and advances the document to a new
	// version; the post-mutation state becomes the new revision. The old
	// content stays reachable through the superseded revision.
	UpdateContent(ctx context.Context, id string, r io.Reader, name, contentType string) (*model.Document, error)

	// Move changes the document's storage path and records the change as a
	// new revision even though content is unchanged.
	Move(ctx context.Context, id, newPath string) (*model.Document, error)

	// SwitchToRevision copies the target revision's state onto the document.
	// Switching replays history, so no new revision is appended. The
	// revision must belong to the document.
	SwitchToRevision(ctx context.Context, documentID, revisionID string) (*model.Document, error)

	// DeleteRevision removes a single revision. Deleting the current
	// revision moves the document onto the adjacent replacement (nearest
	// older, else nearest newer); deleting the only remaining revision is
	// rejected with ErrLastRevision. Surviving revisions are renumbered to
	// a contiguous 1..N and the freed digest is released if unreferenced.
	DeleteRevision(ctx context.Context, revisionID string) error

	// DeleteDocument removes the document and all its revisions, then
	// releases every digest they referenced that no other row still uses.
	DeleteDocument(ctx context.Context, id string) error

	// Archive sets or clears the administrative archived flag.
	Archive(ctx context.Context, id string, archived bool) (*model.Document, error)

	// Get returns a single document by its ID.
	Get(ctx context.Context, id string) (*model.Document, error)

	// List returns documents using limit/offset and a total count.
	List(ctx context.Context, limit, offset int) (*DocumentListResult, error)

	// ListRevisions returns the document's revisions in history order.
	ListRevisions(ctx context.Context, documentID string) ([]model.Revision, error)

	// Download returns the document's current content as a streaming reader.
	Download(ctx context.Context, id string) (io.ReadCloser, *model.Document, error)
}

// documentService is a concrete implementation of DocumentService.
type documentService struct {
	store blob.Store
	docs  repository.DocumentRepository
	revs  repository.RevisionRepository
	refs  repository.ReferenceChecker
	tx    repository.Transactor
	chain *revision.Chain
	locks *lock.Keyed
}

// NewDocumentService constructs a new DocumentService.
func NewDocumentService(
	store blob.Store,
	docs repository.DocumentRepository,
	revs repository.RevisionRepository,
	refs repository.ReferenceChecker,
	tx repository.Transactor,
) DocumentService {
	return &documentService{
		store: store,
		docs:  docs,
		revs:  revs,
		refs:  refs,
		tx:    tx,
		chain: revision.NewChain(revs),
		locks: lock.NewKeyed(),
	}
}

func (s *documentService) Upload(ctx context.Context, r io.Reader, meta UploadMeta) (*model.Document, error) {
	if r == nil {
		return nil, ErrReaderNil
	}
	if meta.Name == "" || meta.Author == "" {
		return nil, fmt.Errorf("name and author are required")
	}

	// Blob first: a row may only reference a digest that is already durable.
	info, err := s.store.Put(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("store blob: %w", err)
	}

	now := time.Now().UTC()
	doc := &model.Document{
		ID:          uuid.New().String(),
		Name:        meta.Name,
		ContentType: meta.ContentType,
		Path:        meta.Path,
		Digest:      info.Digest,
		Size:        info.Size,
		Version:     1,
		Author:      meta.Author,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		taken, err := s.docs.PathExists(ctx, meta.Author, meta.Name, meta.Path, "")
		if err != nil {
			return fmt.Errorf("check path uniqueness: %w", err)
		}
		if taken {
			return ErrDuplicatePath
		}
		stored, err := s.docs.Create(ctx, doc)
		if err != nil {
			return fmt.Errorf("create document: %w", err)
		}
		doc = stored
		if _, err := s.chain.Append(ctx, doc); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		s.releaseBlob(ctx, info.Digest)
		return nil, err
	}
	return doc, nil
}

func (s *documentService) UpdateContent(ctx context.Context, id string, r io.Reader, name, contentType string) (*model.Document, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	if r == nil {
		return nil, ErrReaderNil
	}

	s.locks.Lock(id)
	defer s.locks.Unlock(id)

	doc, err := s.findDocument(ctx, id)
	if err != nil {
		return nil, err
	}

	info, err := s.store.Put(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("store blob: %w", err)
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		next, err := s.chain.NextVersion(ctx, doc.ID)
		if err != nil {
			return err
		}
		if name != "" {
			doc.Name = name
		}
		if contentType != "" {
			doc.ContentType = contentType
		}
		doc.Digest = info.Digest
		doc.Size = info.Size
		doc.Version = next
		doc.UpdatedAt = time.Now().UTC()
		if err := s.docs.Save(ctx, doc); err != nil {
			return fmt.Errorf("save document: %w", err)
		}
		_, err = s.chain.Append(ctx, doc)
		return err
	})
	if err != nil {
		s.releaseBlob(ctx, info.Digest)
		return nil, err
	}
	return doc, nil
}

func (s *documentService) Move(ctx context.Context, id, newPath string) (*model.Document, error) {
	if id == "" {
		return nil, ErrIDRequired
	}

	s.locks.Lock(id)
	defer s.locks.Unlock(id)

	doc, err := s.findDocument(ctx, id)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		taken, err := s.docs.PathExists(ctx, doc.Author, doc.Name, newPath, doc.ID)
		if err != nil {
			return fmt.Errorf("check path uniqueness: %w", err)
		}
		if taken {
			return ErrDuplicatePath
		}
		next, err := s.chain.NextVersion(ctx, doc.ID)
		if err != nil {
			return err
		}
		doc.Path = newPath
		doc.Version = next
		doc.UpdatedAt = time.Now().UTC()
		if err := s.docs.Save(ctx, doc); err != nil {
			return fmt.Errorf("save document: %w", err)
		}
		// A move is recorded in history even though content is unchanged.
		_, err = s.chain.Append(ctx, doc)
		return err
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *documentService) SwitchToRevision(ctx context.Context, documentID, revisionID string) (*model.Document, error) {
	if documentID == "" || revisionID == "" {
		return nil, ErrIDRequired
	}

	s.locks.Lock(documentID)
	defer s.locks.Unlock(documentID)

	doc, err := s.findDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	rev, err := s.revs.FindByID(ctx, revisionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRevisionNotFound
		}
		return nil, err
	}
	// A revision ID belonging to another document is indistinguishable from
	// a missing one to the caller.
	if rev.DocumentID != doc.ID {
		return nil, ErrRevisionNotFound
	}

	doc.Name = rev.Name
	doc.ContentType = rev.ContentType
	doc.Digest = rev.Digest
	doc.Size = rev.Size
	doc.Version = rev.Version
	doc.UpdatedAt = time.Now().UTC()

	// Switching replays history; it does not extend it, so no revision is
	// appended here.
	if err := s.docs.Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}
	return doc, nil
}

func (s *documentService) DeleteRevision(ctx context.Context, revisionID string) error {
	if revisionID == "" {
		return ErrIDRequired
	}

	// The revision is fetched once to learn which document to lock, then
	// re-read under the lock.
	rev, err := s.revs.FindByID(ctx, revisionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrRevisionNotFound
		}
		return err
	}

	s.locks.Lock(rev.DocumentID)
	defer s.locks.Unlock(rev.DocumentID)

	rev, err = s.revs.FindByID(ctx, revisionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrRevisionNotFound
		}
		return err
	}
	doc, err := s.findDocument(ctx, rev.DocumentID)
	if err != nil {
		return err
	}

	if rev.Version == doc.Version {
		repl, err := s.chain.FindAdjacentReplacement(ctx, doc.ID, rev.Version)
		if err != nil {
			return err
		}
		if repl == nil {
			return ErrLastRevision
		}
		doc.Name = repl.Name
		doc.ContentType = repl.ContentType
		doc.Digest = repl.Digest
		doc.Size = repl.Size
		doc.Version = repl.Version
	}

	freed := rev.Digest
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.revs.Delete(ctx, rev.ID); err != nil {
			return fmt.Errorf("delete revision: %w", err)
		}
		if err := s.chain.Renumber(ctx, doc, rev.Version); err != nil {
			return err
		}
		doc.UpdatedAt = time.Now().UTC()
		if err := s.docs.Save(ctx, doc); err != nil {
			return fmt.Errorf("save document: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Release after commit: the blob may only disappear once the rows that
	// referenced it are durably gone.
	if _, err := s.store.DeleteIfUnreferenced(ctx, freed, s.refs.ExistsAnyReferenceToDigest); err != nil {
		return fmt.Errorf("release blob %s: %w", freed, err)
	}
	return nil
}

func (s *documentService) DeleteDocument(ctx context.Context, id string) error {
	if id == "" {
		return ErrIDRequired
	}

	s.locks.Lock(id)
	defer s.locks.Unlock(id)

	doc, err := s.findDocument(ctx, id)
	if err != nil {
		return err
	}
	revs, err := s.revs.ListByDocument(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("list revisions: %w", err)
	}

	// Oldest revision first, the document's own digest last; order is not
	// load-bearing but must be deterministic.
	seen := make(map[string]struct{})
	var digests []string
	for _, rev := range revs {
		if _, ok := seen[rev.Digest]; ok {
			continue
		}
		seen[rev.Digest] = struct{}{}
		digests = append(digests, rev.Digest)
	}
	if _, ok := seen[doc.Digest]; !ok {
		digests = append(digests, doc.Digest)
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		// Revision rows cascade with the document row.
		if err := s.docs.Delete(ctx, doc.ID); err != nil {
			return fmt.Errorf("delete document: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, digest := range digests {
		if _, err := s.store.DeleteIfUnreferenced(ctx, digest, s.refs.ExistsAnyReferenceToDigest); err != nil {
			return fmt.Errorf("release blob %s: %w", digest, err)
		}
	}
	return nil
}

func (s *documentService) Archive(ctx context.Context, id string, archived bool) (*model.Document, error) {
	if id == "" {
		return nil, ErrIDRequired
	}

	s.locks.Lock(id)
	defer s.locks.Unlock(id)

	doc, err := s.findDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Archived == archived {
		return doc, nil
	}

	doc.Archived = archived
	if archived {
		now := time.Now().UTC()
		doc.ArchivedAt = &now
	} else {
		doc.ArchivedAt = nil
	}
	doc.UpdatedAt = time.Now().UTC()

	if err := s.docs.Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}
	return doc, nil
}

func (s *documentService) Get(ctx context.Context, id string) (*model.Document, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	return s.findDocument(ctx, id)
}

func (s *documentService) List(ctx context.Context, limit, offset int) (*DocumentListResult, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	res, err := s.docs.List(ctx, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	return &DocumentListResult{Items: res.Items, Total: res.Total}, nil
}

func (s *documentService) ListRevisions(ctx context.Context, documentID string) ([]model.Revision, error) {
	if documentID == "" {
		return nil, ErrIDRequired
	}
	if _, err := s.findDocument(ctx, documentID); err != nil {
		return nil, err
	}
	return s.revs.ListByDocument(ctx, documentID)
}

func (s *documentService) Download(ctx context.Context, id string) (io.ReadCloser, *model.Document, error) {
	if id == "" {
		return nil, nil, ErrIDRequired
	}
	doc, err := s.findDocument(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	rc, _, err := s.store.Get(ctx, doc.Digest)
	if err != nil {
		// A document row pointing at a missing blob is an integrity
		// violation, not an expected outcome; surface it loudly.
		return nil, nil, fmt.Errorf("content for document %s (digest %s): %w", doc.ID, doc.Digest, err)
	}
	return rc, doc, nil
}

func (s *documentService) findDocument(ctx context.Context, id string) (*model.Document, error) {
	doc, err := s.docs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	return doc, nil
}

// releaseBlob is the best-effort rollback for a blob written ahead of a row
// mutation that then failed. The reference check keeps content shared with
// other documents intact.
func (s *documentService) releaseBlob(ctx context.Context, digest string) {
	_, _ = s.store.DeleteIfUnreferenced(ctx, digest, s.refs.ExistsAnyReferenceToDigest)
}
