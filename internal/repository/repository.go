package repository

import "context"

// Package repository defines the persistence contracts consumed by the core.
// No business logic here; strictly data access operations.

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
// T is typically a model type.
type PageResult[T any] struct {
	Items []T
	Total int
}

// Transactor supplies the transactional boundary for multi-row mutations.
// Row mutations performed inside fn through repositories that honor the
// passed context commit or roll back together. Blob writes are deliberately
// outside this boundary: a blob must be durably written before any row
// references its digest, and removed only after the referencing rows are gone.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReferenceChecker answers whether any document or revision row still
// references a content digest. Reference counting is computed by query,
// not stored, so there is no second source of truth to keep consistent.
type ReferenceChecker interface {
	ExistsAnyReferenceToDigest(ctx context.Context, digest string) (bool, error)
}
