package model

import "time"

// Document represents the current, addressable state of a logical file.
// This is a pure domain model with no database-specific dependencies or tags.
// It can be used across layers (HTTP, service, storage) without coupling to persistence.
//
// Version always equals the version number of exactly one revision in the
// document's chain, the current revision. There is no separate pointer to
// the active revision; version equality is the marker.
type Document struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	ContentType string     `json:"content_type"`
	Path        string     `json:"path"`
	Digest      string     `json:"digest"`
	Size        int64      `json:"size"`
	Version     int        `json:"version"`
	Author      string     `json:"author"`
	Archived    bool       `json:"archived"`
	ArchivedAt  *time.Time `json:"archived_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Revision is an immutable snapshot of a document's state at a point in time.
// Version numbers are unique per document and assigned sequentially starting
// at 1; after a renumbering pass they are contiguous again.
type Revision struct {
	ID          string    `json:"id"`
	DocumentID  string    `json:"document_id"`
	Version     int       `json:"version"`
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	Digest      string    `json:"digest"`
	Size        int64     `json:"size"`
	Author      string    `json:"author"`
	CreatedAt   time.Time `json:"created_at"`
}

// IsCurrent reports whether the revision is the document's current one.
func (r *Revision) IsCurrent(doc *Document) bool {
	return r.DocumentID == doc.ID && r.Version == doc.Version
}
