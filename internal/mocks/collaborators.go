package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/segyhp/lease-billing/internal/domain"
	"github.com/segyhp/lease-billing/internal/processor"
)

type MockProcessor struct {
	mock.Mock
}

func (m *MockProcessor) Charge(ctx context.Context, req processor.ChargeRequest) (*processor.ChargeResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*processor.ChargeResult), args.Error(1)
}

type MockPusher struct {
	mock.Mock
}

func (m *MockPusher) Push(ctx context.Context, customer *domain.Customer, title, body string) error {
	args := m.Called(ctx, customer, title, body)
	return args.Error(0)
}
