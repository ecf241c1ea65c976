package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"docvault/internal/model"
)

type MockRevisionRepository struct {
	mock.Mock
}

func (m *MockRevisionRepository) Create(ctx context.Context, rev *model.Revision) (*model.Revision, error) {
	args := m.Called(ctx, rev)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Revision), args.Error(1)
}

func (m *MockRevisionRepository) FindByID(ctx context.Context, id string) (*model.Revision, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Revision), args.Error(1)
}

func (m *MockRevisionRepository) FindByDocumentAndVersion(ctx context.Context, documentID string, version int) (*model.Revision, error) {
	args := m.Called(ctx, documentID, version)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Revision), args.Error(1)
}

func (m *MockRevisionRepository) FindPrevious(ctx context.Context, documentID string, version int) (*model.Revision, error) {
	args := m.Called(ctx, documentID, version)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Revision), args.Error(1)
}

func (m *MockRevisionRepository) FindNext(ctx context.Context, documentID string, version int) (*model.Revision, error) {
	args := m.Called(ctx, documentID, version)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Revision), args.Error(1)
}

func (m *MockRevisionRepository) ListByDocument(ctx context.Context, documentID string) ([]model.Revision, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Revision), args.Error(1)
}

func (m *MockRevisionRepository) MaxVersion(ctx context.Context, documentID string) (int, error) {
	args := m.Called(ctx, documentID)
	return args.Int(0), args.Error(1)
}

func (m *MockRevisionRepository) UpdateVersion(ctx context.Context, id string, version int) error {
	args := m.Called(ctx, id, version)
	return args.Error(0)
}

func (m *MockRevisionRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
