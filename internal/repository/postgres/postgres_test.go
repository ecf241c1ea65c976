package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docvault/internal/model"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func documentRows(doc *model.Document) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "content_type", "path", "digest", "size", "version",
		"author", "archived", "archived_at", "created_at", "updated_at",
	}).AddRow(
		doc.ID, doc.Name, doc.ContentType, doc.Path, doc.Digest, doc.Size,
		doc.Version, doc.Author, doc.Archived, doc.ArchivedAt, doc.CreatedAt, doc.UpdatedAt,
	)
}

func revisionRows(revs ...model.Revision) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "document_id", "version", "name", "content_type", "digest", "size", "author", "created_at",
	})
	for _, r := range revs {
		rows.AddRow(r.ID, r.DocumentID, r.Version, r.Name, r.ContentType, r.Digest, r.Size, r.Author, r.CreatedAt)
	}
	return rows
}

func TestDocumentPostgres_Create(t *testing.T) {
	db, mock := newMock(t)
	repo := NewDocumentPostgres(db)
	ctx := context.Background()

	now := time.Now().UTC()
	doc := &model.Document{
		ID: "doc-1", Name: "a.txt", ContentType: "text/plain", Path: "/reports",
		Digest: "abc", Size: 5, Version: 1, Author: "alice", CreatedAt: now, UpdatedAt: now,
	}

	mock.ExpectQuery("INSERT INTO documents").
		WithArgs(doc.ID, doc.Name, doc.ContentType, doc.Path, doc.Digest, doc.Size,
			doc.Version, doc.Author, doc.Archived, doc.ArchivedAt, doc.CreatedAt, doc.UpdatedAt).
		WillReturnRows(documentRows(doc))

	result, err := repo.Create(ctx, doc)

	assert.NoError(t, err)
	assert.Equal(t, doc.ID, result.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_FindByID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewDocumentPostgres(db)
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		doc := &model.Document{ID: "doc-1", Name: "a.txt", Version: 2, CreatedAt: time.Now(), UpdatedAt: time.Now()}
		mock.ExpectQuery("SELECT (.+) FROM documents WHERE id =").
			WithArgs("doc-1").
			WillReturnRows(documentRows(doc))

		got, err := repo.FindByID(ctx, "doc-1")
		assert.NoError(t, err)
		assert.Equal(t, 2, got.Version)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM documents WHERE id =").
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		got, err := repo.FindByID(ctx, "missing")
		assert.ErrorIs(t, err, sql.ErrNoRows)
		assert.Nil(t, got)
	})
}

func TestDocumentPostgres_Save(t *testing.T) {
	db, mock := newMock(t)
	repo := NewDocumentPostgres(db)
	ctx := context.Background()

	doc := &model.Document{ID: "doc-1", Name: "a.txt", Version: 3, UpdatedAt: time.Now()}

	t.Run("updated", func(t *testing.T) {
		mock.ExpectExec("UPDATE documents").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.Save(ctx, doc))
	})

	t.Run("missing row", func(t *testing.T) {
		mock.ExpectExec("UPDATE documents").
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.Save(ctx, doc), sql.ErrNoRows)
	})
}

func TestDocumentPostgres_PathExists(t *testing.T) {
	db, mock := newMock(t)
	repo := NewDocumentPostgres(db)
	ctx := context.Background()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("alice", "a.txt", "/reports", "").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	taken, err := repo.PathExists(ctx, "alice", "a.txt", "/reports", "")
	assert.NoError(t, err)
	assert.True(t, taken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRevisionPostgres_FindAdjacent(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRevisionPostgres(db)
	ctx := context.Background()

	t.Run("previous picks highest below", func(t *testing.T) {
		rev := model.Revision{ID: "rev-1", DocumentID: "doc-1", Version: 2, CreatedAt: time.Now()}
		mock.ExpectQuery("SELECT (.+) FROM revisions WHERE document_id = .+ AND version <").
			WithArgs("doc-1", 3).
			WillReturnRows(revisionRows(rev))

		got, err := repo.FindPrevious(ctx, "doc-1", 3)
		assert.NoError(t, err)
		assert.Equal(t, 2, got.Version)
	})

	t.Run("next picks lowest above", func(t *testing.T) {
		rev := model.Revision{ID: "rev-4", DocumentID: "doc-1", Version: 4, CreatedAt: time.Now()}
		mock.ExpectQuery("SELECT (.+) FROM revisions WHERE document_id = .+ AND version >").
			WithArgs("doc-1", 3).
			WillReturnRows(revisionRows(rev))

		got, err := repo.FindNext(ctx, "doc-1", 3)
		assert.NoError(t, err)
		assert.Equal(t, 4, got.Version)
	})

	t.Run("no rows surfaces as sql.ErrNoRows", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM revisions WHERE document_id = .+ AND version <").
			WithArgs("doc-1", 1).
			WillReturnError(sql.ErrNoRows)

		_, err := repo.FindPrevious(ctx, "doc-1", 1)
		assert.ErrorIs(t, err, sql.ErrNoRows)
	})
}

func TestRevisionPostgres_MaxVersion(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRevisionPostgres(db)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT COALESCE\(MAX\(version\), 0\) FROM revisions`).
		WithArgs("doc-1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(5))

	max, err := repo.MaxVersion(ctx, "doc-1")
	assert.NoError(t, err)
	assert.Equal(t, 5, max)
}

func TestRevisionPostgres_UpdateVersion(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRevisionPostgres(db)
	ctx := context.Background()

	t.Run("updated", func(t *testing.T) {
		mock.ExpectExec("UPDATE revisions SET version =").
			WithArgs("rev-1", 2).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.UpdateVersion(ctx, "rev-1", 2))
	})

	t.Run("missing row", func(t *testing.T) {
		mock.ExpectExec("UPDATE revisions SET version =").
			WithArgs("rev-x", 2).
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.UpdateVersion(ctx, "rev-x", 2), sql.ErrNoRows)
	})
}

func TestRevisionPostgres_ListByDocument(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRevisionPostgres(db)
	ctx := context.Background()

	base := time.Now().UTC()
	mock.ExpectQuery("SELECT (.+) FROM revisions WHERE document_id = .+ ORDER BY created_at ASC").
		WithArgs("doc-1").
		WillReturnRows(revisionRows(
			model.Revision{ID: "rev-1", DocumentID: "doc-1", Version: 1, CreatedAt: base},
			model.Revision{ID: "rev-2", DocumentID: "doc-1", Version: 2, CreatedAt: base.Add(time.Hour)},
		))

	revs, err := repo.ListByDocument(ctx, "doc-1")
	assert.NoError(t, err)
	require.Len(t, revs, 2)
	assert.Equal(t, 1, revs[0].Version)
}

func TestReferencePostgres_ExistsAnyReferenceToDigest(t *testing.T) {
	db, mock := newMock(t)
	repo := NewReferencePostgres(db)
	ctx := context.Background()

	t.Run("referenced", func(t *testing.T) {
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("abc").
			WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(true))

		ok, err := repo.ExistsAnyReferenceToDigest(ctx, "abc")
		assert.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("unreferenced", func(t *testing.T) {
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("def").
			WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(false))

		ok, err := repo.ExistsAnyReferenceToDigest(ctx, "def")
		assert.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestTransactor_WithinTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commits on success", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE revisions").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		repo := NewRevisionPostgres(db)
		err := NewTransactor(db).WithinTx(ctx, func(ctx context.Context) error {
			return repo.UpdateVersion(ctx, "rev-1", 2)
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		wantErr := errors.New("boom")
		err := NewTransactor(db).WithinTx(ctx, func(ctx context.Context) error {
			return wantErr
		})
		assert.ErrorIs(t, err, wantErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nested call joins the outer transaction", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectCommit()

		tr := NewTransactor(db)
		err := tr.WithinTx(ctx, func(ctx context.Context) error {
			return tr.WithinTx(ctx, func(ctx context.Context) error { return nil })
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
