package postgres

import (
	"context"
	"database/sql"

	"docvault/internal/repository"
)

// ReferencePostgres answers digest reachability queries for blob deletion.
type ReferencePostgres struct {
	db *sql.DB
}

// NewReferencePostgres creates a new ReferencePostgres checker.
func NewReferencePostgres(db *sql.DB) *ReferencePostgres {
	return &ReferencePostgres{db: db}
}

var _ repository.ReferenceChecker = (*ReferencePostgres)(nil)

// ExistsAnyReferenceToDigest reports whether any document or revision row
// still carries the digest. Computed fresh on every call; both digest columns
// are indexed.
func (r *ReferencePostgres) ExistsAnyReferenceToDigest(ctx context.Context, digest string) (bool, error) {
	const query = `
		SELECT EXISTS (SELECT 1 FROM documents WHERE digest = $1)
		    OR EXISTS (SELECT 1 FROM revisions WHERE digest = $1)
	`
	var exists bool
	if err := q(ctx, r.db).QueryRowContext(ctx, query, digest).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
