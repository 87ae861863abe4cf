package mocks

import (
	"context"

	"docvault/internal/model"
	"github.com/stretchr/testify/mock"
)

type MockEstablishmentRepository struct {
	mock.Mock
}

func (m *MockEstablishmentRepository) FindByID(ctx context.Context, id string) (*model.Establishment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Establishment), args.Error(1)
}
