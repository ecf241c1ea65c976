package postgres

import (
	"context"
	"database/sql"
	"time"

	"docvault/internal/model"
	"docvault/internal/repository"
)

const documentColumns = `id, name, content_type, path, digest, size, version, author, archived, archived_at, created_at, updated_at`

// DocumentPostgres is a PostgreSQL implementation of repository.DocumentRepository.
type DocumentPostgres struct {
	db *sql.DB
}

// NewDocumentPostgres creates a new DocumentPostgres repository.
func NewDocumentPostgres(db *sql.DB) *DocumentPostgres {
	return &DocumentPostgres{db: db}
}

var _ repository.DocumentRepository = (*DocumentPostgres)(nil)

func scanDocument(row interface{ Scan(dest ...any) error }) (*model.Document, error) {
	var d model.Document
	if err := row.Scan(
		&d.ID,
		&d.Name,
		&d.ContentType,
		&d.Path,
		&d.Digest,
		&d.Size,
		&d.Version,
		&d.Author,
		&d.Archived,
		&d.ArchivedAt,
		&d.CreatedAt,
		&d.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &d, nil
}

// Create inserts a new document row and returns the stored record.
func (r *DocumentPostgres) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	const query = `
		INSERT INTO documents (id, name, content_type, path, digest, size, version, author, archived, archived_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING ` + documentColumns
	row := q(ctx, r.db).QueryRowContext(ctx, query,
		doc.ID,
		doc.Name,
		doc.ContentType,
		doc.Path,
		doc.Digest,
		doc.Size,
		doc.Version,
		doc.Author,
		doc.Archived,
		doc.ArchivedAt,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	return scanDocument(row)
}

// FindByID fetches a single document by its ID.
func (r *DocumentPostgres) FindByID(ctx context.Context, id string) (*model.Document, error) {
	const query = `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	return scanDocument(q(ctx, r.db).QueryRowContext(ctx, query, id))
}

// Save persists the mutable fields of an existing document.
func (r *DocumentPostgres) Save(ctx context.Context, doc *model.Document) error {
	const query = `
		UPDATE documents
		SET name = $2, content_type = $3, path = $4, digest = $5, size = $6,
		    version = $7, archived = $8, archived_at = $9, updated_at = $10
		WHERE id = $1
	`
	res, err := q(ctx, r.db).ExecContext(ctx, query,
		doc.ID,
		doc.Name,
		doc.ContentType,
		doc.Path,
		doc.Digest,
		doc.Size,
		doc.Version,
		doc.Archived,
		doc.ArchivedAt,
		doc.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// PathExists reports whether another document of the same author occupies the
// (name, path) pair.
func (r *DocumentPostgres) PathExists(ctx context.Context, author, name, path, excludeID string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM documents
			WHERE author = $1 AND name = $2 AND path = $3 AND ($4 = '' OR id <> $4::uuid)
		)
	`
	var exists bool
	if err := q(ctx, r.db).QueryRowContext(ctx, query, author, name, path, excludeID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// List returns documents using LIMIT/OFFSET pagination and a total count.
func (r *DocumentPostgres) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	const qCount = `SELECT COUNT(*) FROM documents`
	var total int
	if err := q(ctx, r.db).QueryRowContext(ctx, qCount).Scan(&total); err != nil {
		return nil, err
	}

	const qList = `
		SELECT ` + documentColumns + `
		FROM documents
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := q(ctx, r.db).QueryContext(ctx, qList, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Document]{
		Items: items,
		Total: total,
	}, nil
}

// ListArchivedBefore returns documents archived earlier than cutoff,
// oldest archive first.
func (r *DocumentPostgres) ListArchivedBefore(ctx context.Context, cutoff time.Time) ([]model.Document, error) {
	const query = `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE archived AND archived_at < $1
		ORDER BY archived_at ASC
	`
	rows, err := q(ctx, r.db).QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *d)
	}
	return items, rows.Err()
}

// Delete removes a document by ID; revision rows cascade at the schema level.
// It does not return an error if the row does not exist.
func (r *DocumentPostgres) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM documents WHERE id = $1`
	_, err := q(ctx, r.db).ExecContext(ctx, query, id)
	return err
}
