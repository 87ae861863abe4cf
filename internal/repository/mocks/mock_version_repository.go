package mocks

import (
	"context"
	"time"

	"docvault/internal/model"
	"docvault/internal/repository"
	"github.com/stretchr/testify/mock"
)

type MockVersionRepository struct {
	mock.Mock
}

func (m *MockVersionRepository) CreateWithNextNumber(ctx context.Context, v repository.NewVersion) (*model.DocumentVersion, error) {
	args := m.Called(ctx, v)
	if f, ok := args.Get(0).(func(context.Context, repository.NewVersion) *model.DocumentVersion); ok {
		return f(ctx, v), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DocumentVersion), args.Error(1)
}

func (m *MockVersionRepository) FindByID(ctx context.Context, documentID, versionID string) (*model.DocumentVersion, error) {
	args := m.Called(ctx, documentID, versionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DocumentVersion), args.Error(1)
}

func (m *MockVersionRepository) ListByDocument(ctx context.Context, documentID string) ([]model.DocumentVersion, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.DocumentVersion), args.Error(1)
}

func (m *MockVersionRepository) Activate(ctx context.Context, documentID, versionID string, activatedAt time.Time, archivePrevious bool) (*model.DocumentVersion, error) {
	args := m.Called(ctx, documentID, versionID, activatedAt, archivePrevious)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DocumentVersion), args.Error(1)
}

func (m *MockVersionRepository) DeleteAndRestore(ctx context.Context, documentID, versionID string, prevCurrentVersionID *string, prevStatus model.DocumentStatus) error {
	args := m.Called(ctx, documentID, versionID, prevCurrentVersionID, prevStatus)
	return args.Error(0)
}
