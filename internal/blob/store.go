package blob

import (
	"context"
	"errors"
	"io"
)

// Package blob contains the content-addressed blob store. Blobs are keyed by
// their content digest, so identical uploads across unrelated documents and
// revisions collapse into one physical copy. Deletion is a reachability
// problem: a blob may only be removed once no document or revision row
// references its digest.

var (
	// ErrBlobNotFound is returned when no blob exists for a digest.
	ErrBlobNotFound = errors.New("blob not found")
	// ErrInvalidDigest is returned for malformed digest keys.
	ErrInvalidDigest = errors.New("invalid digest")
)

// Info describes a stored blob.
type Info struct {
	Digest string
	Size   int64
}

// RefChecker reports whether any document or revision row still references
// the digest. It is supplied by the persistence layer and evaluated at
// deletion time; the answer is computed by query, never cached.
type RefChecker func(ctx context.Context, digest string) (bool, error)

// Store is a deduplicating content-addressed blob store.
// Implementations must write a blob durably before returning from Put, so a
// caller can safely record a row referencing the digest afterwards.
type Store interface {
	// Put stores the reader's content under its digest and returns the
	// digest and byte count. Storing content that already exists is a
	// no-op write returning the same digest; this is the dedup mechanism.
	Put(ctx context.Context, r io.Reader) (Info, error)

	// Get returns the blob content as a streaming reader.
	// Returns ErrBlobNotFound if no blob exists for the digest.
	Get(ctx context.Context, digest string) (io.ReadCloser, Info, error)

	// Exists reports whether a blob is present for the digest.
	Exists(ctx context.Context, digest string) (bool, error)

	// DeleteIfUnreferenced removes the physical blob only if ref reports no
	// remaining references at the time of the call. A blob that is already
	// gone is a no-op, not an error: an orphaned blob is always preferable
	// to deleting referenced data. Reports whether a blob was removed.
	DeleteIfUnreferenced(ctx context.Context, digest string, ref RefChecker) (bool, error)
}

// validDigest guards path derivation against malformed keys. Digests are
// lowercase hex and must be longer than any configured prefix.
func validDigest(digest string, prefixLen int) bool {
	if len(digest) <= prefixLen || len(digest) < 32 {
		return false
	}
	for _, c := range digest {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
