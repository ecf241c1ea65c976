package cleanup

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"docvault/internal/repository"
	"docvault/internal/service"
)

// Sweeper periodically purges documents that have stayed archived past the
// retention window. Each purge goes through the document service so blob
// reference checks apply.
type Sweeper struct {
	docs      repository.DocumentRepository
	svc       service.DocumentService
	interval  time.Duration
	retention time.Duration
	enc       *json.Encoder
}

func NewSweeper(docs repository.DocumentRepository, svc service.DocumentService, interval, retention time.Duration) *Sweeper {
	return &Sweeper{
		docs:      docs,
		svc:       svc,
		interval:  interval,
		retention: retention,
		enc:       json.NewEncoder(os.Stdout),
	}
}

// SetOutput redirects the sweeper's JSON log lines. Used in tests.
func (s *Sweeper) SetOutput(w io.Writer) {
	s.enc = json.NewEncoder(w)
}

// Run blocks until ctx is canceled, sweeping once per interval.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep deletes every document archived before now minus retention. Failures
// on individual documents are logged and do not stop the pass.
func (s *Sweeper) Sweep(ctx context.Context) (purged int) {
	cutoff := time.Now().UTC().Add(-s.retention)

	docs, err := s.docs.ListArchivedBefore(ctx, cutoff)
	if err != nil {
		s.log("cleanup_list_failed", "", err)
		return 0
	}

	for _, doc := range docs {
		if err := s.svc.DeleteDocument(ctx, doc.ID); err != nil {
			s.log("cleanup_delete_failed", doc.ID, err)
			continue
		}
		s.log("cleanup_purged", doc.ID, nil)
		purged++
	}
	return purged
}

func (s *Sweeper) log(event, documentID string, err error) {
	entry := map[string]any{
		"event": event,
		"time":  time.Now().UTC().Format(time.RFC3339),
	}
	if documentID != "" {
		entry["document_id"] = documentID
	}
	if err != nil {
		entry["error"] = err.Error()
	}
	_ = s.enc.Encode(entry)
}
