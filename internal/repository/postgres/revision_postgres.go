package postgres

import (
	"context"
	"database/sql"

	"docvault/internal/model"
	"docvault/internal/repository"
)

const revisionColumns = `id, document_id, version, name, content_type, digest, size, author, created_at`

// RevisionPostgres is a PostgreSQL implementation of repository.RevisionRepository.
type RevisionPostgres struct {
	db *sql.DB
}

// NewRevisionPostgres creates a new RevisionPostgres repository.
func NewRevisionPostgres(db *sql.DB) *RevisionPostgres {
	return &RevisionPostgres{db: db}
}

var _ repository.RevisionRepository = (*RevisionPostgres)(nil)

func scanRevision(row interface{ Scan(dest ...any) error }) (*model.Revision, error) {
	var rev model.Revision
	if err := row.Scan(
		&rev.ID,
		&rev.DocumentID,
		&rev.Version,
		&rev.Name,
		&rev.ContentType,
		&rev.Digest,
		&rev.Size,
		&rev.Author,
		&rev.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &rev, nil
}

// Create inserts a new revision row and returns the stored record.
func (r *RevisionPostgres) Create(ctx context.Context, rev *model.Revision) (*model.Revision, error) {
	const query = `
		INSERT INTO revisions (id, document_id, version, name, content_type, digest, size, author, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + revisionColumns
	row := q(ctx, r.db).QueryRowContext(ctx, query,
		rev.ID,
		rev.DocumentID,
		rev.Version,
		rev.Name,
		rev.ContentType,
		rev.Digest,
		rev.Size,
		rev.Author,
		rev.CreatedAt,
	)
	return scanRevision(row)
}

// FindByID fetches a single revision by its ID.
func (r *RevisionPostgres) FindByID(ctx context.Context, id string) (*model.Revision, error) {
	const query = `SELECT ` + revisionColumns + ` FROM revisions WHERE id = $1`
	return scanRevision(q(ctx, r.db).QueryRowContext(ctx, query, id))
}

// FindByDocumentAndVersion fetches the revision at the given version.
func (r *RevisionPostgres) FindByDocumentAndVersion(ctx context.Context, documentID string, version int) (*model.Revision, error) {
	const query = `SELECT ` + revisionColumns + ` FROM revisions WHERE document_id = $1 AND version = $2`
	return scanRevision(q(ctx, r.db).QueryRowContext(ctx, query, documentID, version))
}

// FindPrevious returns the revision with the highest version strictly below
// the given one.
func (r *RevisionPostgres) FindPrevious(ctx context.Context, documentID string, version int) (*model.Revision, error) {
	const query = `
		SELECT ` + revisionColumns + `
		FROM revisions
		WHERE document_id = $1 AND version < $2
		ORDER BY version DESC
		LIMIT 1
	`
	return scanRevision(q(ctx, r.db).QueryRowContext(ctx, query, documentID, version))
}

// FindNext returns the revision with the lowest version strictly above the
// given one.
func (r *RevisionPostgres) FindNext(ctx context.Context, documentID string, version int) (*model.Revision, error) {
	const query = `
		SELECT ` + revisionColumns + `
		FROM revisions
		WHERE document_id = $1 AND version > $2
		ORDER BY version ASC
		LIMIT 1
	`
	return scanRevision(q(ctx, r.db).QueryRowContext(ctx, query, documentID, version))
}

// ListByDocument returns the document's revisions in creation order.
func (r *RevisionPostgres) ListByDocument(ctx context.Context, documentID string) ([]model.Revision, error) {
	const query = `
		SELECT ` + revisionColumns + `
		FROM revisions
		WHERE document_id = $1
		ORDER BY created_at ASC, version ASC
	`
	rows, err := q(ctx, r.db).QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Revision, 0)
	for rows.Next() {
		rev, err := scanRevision(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *rev)
	}
	return items, rows.Err()
}

// MaxVersion returns the highest version for the document, 0 when none exist.
func (r *RevisionPostgres) MaxVersion(ctx context.Context, documentID string) (int, error) {
	const query = `SELECT COALESCE(MAX(version), 0) FROM revisions WHERE document_id = $1`
	var max int
	if err := q(ctx, r.db).QueryRowContext(ctx, query, documentID).Scan(&max); err != nil {
		return 0, err
	}
	return max, nil
}

// UpdateVersion rewrites a revision's version number.
func (r *RevisionPostgres) UpdateVersion(ctx context.Context, id string, version int) error {
	const query = `UPDATE revisions SET version = $2 WHERE id = $1`
	res, err := q(ctx, r.db).ExecContext(ctx, query, id, version)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a revision by ID. It does not return an error if the row
// does not exist.
func (r *RevisionPostgres) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM revisions WHERE id = $1`
	_, err := q(ctx, r.db).ExecContext(ctx, query, id)
	return err
}
