package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"docvault/internal/blob"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Put(ctx context.Context, r io.Reader) (blob.Info, error) {
	args := m.Called(ctx, r)
	return args.Get(0).(blob.Info), args.Error(1)
}

func (m *MockStore) Get(ctx context.Context, digest string) (io.ReadCloser, blob.Info, error) {
	args := m.Called(ctx, digest)
	if args.Get(0) == nil {
		return nil, args.Get(1).(blob.Info), args.Error(2)
	}
	return args.Get(0).(io.ReadCloser), args.Get(1).(blob.Info), args.Error(2)
}

func (m *MockStore) Exists(ctx context.Context, digest string) (bool, error) {
	args := m.Called(ctx, digest)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) DeleteIfUnreferenced(ctx context.Context, digest string, ref blob.RefChecker) (bool, error) {
	args := m.Called(ctx, digest, ref)
	return args.Bool(0), args.Error(1)
}
