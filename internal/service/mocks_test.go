package service

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"

	"github.com/dealersight/credential-server-go/internal/model"
	"github.com/dealersight/credential-server-go/internal/repository"
)

// Mock repositories

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) FindContext(ctx context.Context, userID string) (*model.UserContext, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UserContext), args.Error(1)
}

func (m *mockUserRepo) Exists(ctx context.Context, userID string) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func (m *mockUserRepo) WithTx(tx *sqlx.Tx) repository.UserRepository {
	return m
}

type mockDealershipRepo struct {
	mock.Mock
}

func (m *mockDealershipRepo) FindByID(ctx context.Context, id string) (*model.Dealership, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Dealership), args.Error(1)
}

func (m *mockDealershipRepo) FindEarliestByAgency(ctx context.Context, agencyID string) (*model.Dealership, error) {
	args := m.Called(ctx, agencyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Dealership), args.Error(1)
}

func (m *mockDealershipRepo) HasGrant(ctx context.Context, userID, dealershipID string) (bool, error) {
	args := m.Called(ctx, userID, dealershipID)
	return args.Bool(0), args.Error(1)
}

func (m *mockDealershipRepo) WithTx(tx *sqlx.Tx) repository.DealershipRepository {
	return m
}

type mockConnectionRepo struct {
	mock.Mock
}

func (m *mockConnectionRepo) FindByID(ctx context.Context, provider model.Provider, id string) (*model.Connection, error) {
	args := m.Called(ctx, provider, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Connection), args.Error(1)
}

func (m *mockConnectionRepo) FindByUserAndDealership(ctx context.Context, provider model.Provider, userID string, dealershipID *string) (*model.Connection, error) {
	args := m.Called(ctx, provider, userID, dealershipID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Connection), args.Error(1)
}

func (m *mockConnectionRepo) Upsert(ctx context.Context, provider model.Provider, params model.UpsertConnectionParams) (*model.Connection, error) {
	args := m.Called(ctx, provider, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Connection), args.Error(1)
}

func (m *mockConnectionRepo) Delete(ctx context.Context, provider model.Provider, id string) error {
	args := m.Called(ctx, provider, id)
	return args.Error(0)
}

func (m *mockConnectionRepo) DeleteByIDs(ctx context.Context, provider model.Provider, ids []string) (int64, error) {
	args := m.Called(ctx, provider, ids)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockConnectionRepo) ListAll(ctx context.Context, provider model.Provider) ([]model.Connection, error) {
	args := m.Called(ctx, provider)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Connection), args.Error(1)
}

func (m *mockConnectionRepo) ListByUser(ctx context.Context, provider model.Provider, userID string) ([]model.Connection, error) {
	args := m.Called(ctx, provider, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Connection), args.Error(1)
}

func (m *mockConnectionRepo) ListGroupedByUserDealership(ctx context.Context, provider model.Provider) ([]model.ConnectionGroup, error) {
	args := m.Called(ctx, provider)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ConnectionGroup), args.Error(1)
}

func (m *mockConnectionRepo) WithTx(tx *sqlx.Tx) repository.ConnectionRepository {
	return m
}

func strPtr(s string) *string {
	return &s
}
