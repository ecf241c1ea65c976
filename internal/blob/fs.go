package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/spf13/afero"

	"docvault/internal/hash"
)

// FSStore stores blobs on a filesystem at root/<prefix>/<digest>, where
// <prefix> is a short leading substring of the digest bounding per-directory
// fan-out. Existence is determined purely by path presence; there is no
// manifest or index file. Safe for concurrent use across digests.
type FSStore struct {
	fs        afero.Fs
	root      string
	prefixLen int
	hasher    *hash.Hasher
	metrics   *Metrics
}

// NewFS creates a filesystem blob store rooted at root.
// prefixLen is the number of leading digest characters used as the shard
// directory name (default 2 when <= 0). metrics may be nil.
func NewFS(fs afero.Fs, root string, prefixLen int, hasher *hash.Hasher, metrics *Metrics) (*FSStore, error) {
	if root == "" {
		return nil, fmt.Errorf("blob root directory is required")
	}
	if hasher == nil {
		return nil, fmt.Errorf("hasher is required")
	}
	if prefixLen <= 0 {
		prefixLen = 2
	}
	if err := fs.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &FSStore{fs: fs, root: root, prefixLen: prefixLen, hasher: hasher, metrics: metrics}, nil
}

var _ Store = (*FSStore)(nil)

// blobPath derives the storage path for a digest.
func (s *FSStore) blobPath(digest string) string {
	return path.Join(s.root, digest[:s.prefixLen], digest)
}

// Put writes the content to a temporary file while hashing it, then either
// renames it into place or discards it when a blob with the same digest is
// already present. The rename makes the write atomic: a partially written
// blob is never visible under its final path.
func (s *FSStore) Put(ctx context.Context, r io.Reader) (Info, error) {
	if r == nil {
		return Info{}, fmt.Errorf("put blob: reader is nil")
	}
	tmp, err := afero.TempFile(s.fs, s.root, ".upload-*")
	if err != nil {
		return Info{}, fmt.Errorf("create temp blob: %w", err)
	}
	tmpName := tmp.Name()

	digest, size, err := s.hasher.Sum(io.TeeReader(r, tmp))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = s.fs.Remove(tmpName)
		return Info{}, fmt.Errorf("write blob: %w", err)
	}

	target := s.blobPath(digest)
	exists, err := afero.Exists(s.fs, target)
	if err != nil {
		_ = s.fs.Remove(tmpName)
		return Info{}, fmt.Errorf("stat blob %s: %w", digest, err)
	}
	if exists {
		// Identical content already stored; the temp copy is redundant.
		_ = s.fs.Remove(tmpName)
		s.metrics.dedupHit()
		return Info{Digest: digest, Size: size}, nil
	}

	if err := s.fs.MkdirAll(path.Dir(target), 0o755); err != nil {
		_ = s.fs.Remove(tmpName)
		return Info{}, fmt.Errorf("create blob shard dir: %w", err)
	}
	if err := s.fs.Rename(tmpName, target); err != nil {
		_ = s.fs.Remove(tmpName)
		return Info{}, fmt.Errorf("publish blob %s: %w", digest, err)
	}
	s.metrics.put(size)
	return Info{Digest: digest, Size: size}, nil
}

// Get opens the blob for reading. The read is side-effect free.
func (s *FSStore) Get(ctx context.Context, digest string) (io.ReadCloser, Info, error) {
	if !validDigest(digest, s.prefixLen) {
		return nil, Info{}, fmt.Errorf("%w: %q", ErrInvalidDigest, digest)
	}
	f, err := s.fs.Open(s.blobPath(digest))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, Info{}, fmt.Errorf("%w: %s", ErrBlobNotFound, digest)
		}
		return nil, Info{}, fmt.Errorf("open blob %s: %w", digest, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, Info{}, fmt.Errorf("stat blob %s: %w", digest, err)
	}
	return f, Info{Digest: digest, Size: st.Size()}, nil
}

// Exists reports blob presence by path presence alone.
func (s *FSStore) Exists(ctx context.Context, digest string) (bool, error) {
	if !validDigest(digest, s.prefixLen) {
		return false, fmt.Errorf("%w: %q", ErrInvalidDigest, digest)
	}
	ok, err := afero.Exists(s.fs, s.blobPath(digest))
	if err != nil {
		return false, fmt.Errorf("stat blob %s: %w", digest, err)
	}
	return ok, nil
}

// DeleteIfUnreferenced removes the blob only when ref reports no remaining
// rows for the digest. The check-then-delete is not atomic against a
// concurrent new reference in a multi-process deployment; the acceptable
// failure mode is an orphaned blob, never a speculative delete.
func (s *FSStore) DeleteIfUnreferenced(ctx context.Context, digest string, ref RefChecker) (bool, error) {
	if !validDigest(digest, s.prefixLen) {
		return false, fmt.Errorf("%w: %q", ErrInvalidDigest, digest)
	}
	referenced, err := ref(ctx, digest)
	if err != nil {
		return false, fmt.Errorf("check references for %s: %w", digest, err)
	}
	if referenced {
		return false, nil
	}
	if err := s.fs.Remove(s.blobPath(digest)); err != nil {
		if os.IsNotExist(err) {
			// Another deletion already collected it.
			return false, nil
		}
		return false, fmt.Errorf("delete blob %s: %w", digest, err)
	}
	s.metrics.deleted()
	return true, nil
}
