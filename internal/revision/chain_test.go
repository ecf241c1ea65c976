package revision

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docvault/internal/model"
	repoMocks "docvault/internal/repository/mocks"
)

func TestChain_NextVersion(t *testing.T) {
	ctx := context.Background()

	t.Run("fresh document starts at 1", func(t *testing.T) {
		mRevs := new(repoMocks.MockRevisionRepository)
		mRevs.On("MaxVersion", ctx, "doc-1").Return(0, nil)

		v, err := NewChain(mRevs).NextVersion(ctx, "doc-1")
		require.NoError(t, err)
		assert.Equal(t, 1, v)
		mRevs.AssertExpectations(t)
	})

	t.Run("advances past highest existing version", func(t *testing.T) {
		mRevs := new(repoMocks.MockRevisionRepository)
		mRevs.On("MaxVersion", ctx, "doc-1").Return(4, nil)

		v, err := NewChain(mRevs).NextVersion(ctx, "doc-1")
		require.NoError(t, err)
		assert.Equal(t, 5, v)
	})

	t.Run("repository error", func(t *testing.T) {
		mRevs := new(repoMocks.MockRevisionRepository)
		mRevs.On("MaxVersion", ctx, "doc-1").Return(0, errors.New("db fail"))

		_, err := NewChain(mRevs).NextVersion(ctx, "doc-1")
		assert.Error(t, err)
	})
}

func TestChain_Append(t *testing.T) {
	ctx := context.Background()

	doc := &model.Document{
		ID:          "doc-1",
		Name:        "a.txt",
		ContentType: "text/plain",
		Digest:      "abc123",
		Size:        5,
		Version:     2,
		Author:      "alice",
	}

	t.Run("snapshot mirrors the document state", func(t *testing.T) {
		mRevs := new(repoMocks.MockRevisionRepository)
		mRevs.On("Create", ctx, mock.MatchedBy(func(rev *model.Revision) bool {
			return rev.ID != "" &&
				rev.DocumentID == "doc-1" &&
				rev.Version == 2 &&
				rev.Name == "a.txt" &&
				rev.Digest == "abc123" &&
				rev.Size == 5 &&
				rev.Author == "alice"
		})).Return(&model.Revision{ID: "rev-1", Version: 2}, nil)

		rev, err := NewChain(mRevs).Append(ctx, doc)
		require.NoError(t, err)
		assert.Equal(t, "rev-1", rev.ID)
		mRevs.AssertExpectations(t)
	})

	t.Run("repository error", func(t *testing.T) {
		mRevs := new(repoMocks.MockRevisionRepository)
		mRevs.On("Create", ctx, mock.Anything).Return(nil, errors.New("db fail"))

		_, err := NewChain(mRevs).Append(ctx, doc)
		assert.Error(t, err)
	})
}

func TestChain_FindAdjacentReplacement(t *testing.T) {
	ctx := context.Background()

	t.Run("prefers the nearest older revision", func(t *testing.T) {
		mRevs := new(repoMocks.MockRevisionRepository)
		mRevs.On("FindPrevious", ctx, "doc-1", 3).Return(&model.Revision{ID: "rev-1", Version: 1}, nil)

		rev, err := NewChain(mRevs).FindAdjacentReplacement(ctx, "doc-1", 3)
		require.NoError(t, err)
		assert.Equal(t, 1, rev.Version)
		mRevs.AssertNotCalled(t, "FindNext", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("falls back to the nearest newer revision", func(t *testing.T) {
		mRevs := new(repoMocks.MockRevisionRepository)
		mRevs.On("FindPrevious", ctx, "doc-1", 1).Return(nil, sql.ErrNoRows)
		mRevs.On("FindNext", ctx, "doc-1", 1).Return(&model.Revision{ID: "rev-3", Version: 3}, nil)

		rev, err := NewChain(mRevs).FindAdjacentReplacement(ctx, "doc-1", 1)
		require.NoError(t, err)
		assert.Equal(t, 3, rev.Version)
	})

	t.Run("no remaining history yields nil", func(t *testing.T) {
		mRevs := new(repoMocks.MockRevisionRepository)
		mRevs.On("FindPrevious", ctx, "doc-1", 1).Return(nil, sql.ErrNoRows)
		mRevs.On("FindNext", ctx, "doc-1", 1).Return(nil, sql.ErrNoRows)

		rev, err := NewChain(mRevs).FindAdjacentReplacement(ctx, "doc-1", 1)
		require.NoError(t, err)
		assert.Nil(t, rev)
	})

	t.Run("lookup error surfaces", func(t *testing.T) {
		mRevs := new(repoMocks.MockRevisionRepository)
		mRevs.On("FindPrevious", ctx, "doc-1", 2).Return(nil, errors.New("db fail"))

		_, err := NewChain(mRevs).FindAdjacentReplacement(ctx, "doc-1", 2)
		assert.Error(t, err)
	})
}

func TestChain_Renumber(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	// Survivors of deleting v2 out of {1,2,3,4}: versions 1,3,4 in creation order.
	survivors := []model.Revision{
		{ID: "rev-1", Version: 1, CreatedAt: base},
		{ID: "rev-3", Version: 3, CreatedAt: base.Add(2 * time.Hour)},
		{ID: "rev-4", Version: 4, CreatedAt: base.Add(3 * time.Hour)},
	}

	t.Run("closes the gap, only moved rows rewritten", func(t *testing.T) {
		mRevs := new(repoMocks.MockRevisionRepository)
		mRevs.On("ListByDocument", ctx, "doc-1").Return(survivors, nil)
		mRevs.On("UpdateVersion", ctx, "rev-3", 2).Return(nil)
		mRevs.On("UpdateVersion", ctx, "rev-4", 3).Return(nil)

		doc := &model.Document{ID: "doc-1", Version: 4}
		err := NewChain(mRevs).Renumber(ctx, doc, 2)
		require.NoError(t, err)
		mRevs.AssertExpectations(t)
		mRevs.AssertNotCalled(t, "UpdateVersion", ctx, "rev-1", mock.Anything)
	})

	t.Run("document version shifts down when deletion was below it", func(t *testing.T) {
		mRevs := new(repoMocks.MockRevisionRepository)
		mRevs.On("ListByDocument", ctx, "doc-1").Return(survivors, nil)
		mRevs.On("UpdateVersion", ctx, mock.Anything, mock.Anything).Return(nil)

		doc := &model.Document{ID: "doc-1", Version: 4}
		err := NewChain(mRevs).Renumber(ctx, doc, 2)
		require.NoError(t, err)
		assert.Equal(t, 3, doc.Version)
	})

	t.Run("document version untouched when deletion was above it", func(t *testing.T) {
		mRevs := new(repoMocks.MockRevisionRepository)
		mRevs.On("ListByDocument", ctx, "doc-1").Return([]model.Revision{
			{ID: "rev-1", Version: 1, CreatedAt: base},
			{ID: "rev-2", Version: 2, CreatedAt: base.Add(time.Hour)},
		}, nil)

		doc := &model.Document{ID: "doc-1", Version: 2}
		err := NewChain(mRevs).Renumber(ctx, doc, 3)
		require.NoError(t, err)
		assert.Equal(t, 2, doc.Version)
	})

	t.Run("update error surfaces", func(t *testing.T) {
		mRevs := new(repoMocks.MockRevisionRepository)
		mRevs.On("ListByDocument", ctx, "doc-1").Return(survivors, nil)
		mRevs.On("UpdateVersion", ctx, "rev-3", 2).Return(errors.New("db fail"))

		doc := &model.Document{ID: "doc-1", Version: 4}
		err := NewChain(mRevs).Renumber(ctx, doc, 2)
		assert.Error(t, err)
	})
}
