package mocks

import (
	"context"

	"github.com/rpggio/loreweave/internal/domain/generation"
	"github.com/rpggio/loreweave/internal/domain/session"
	"github.com/stretchr/testify/mock"
)

// DocumentStore is a mock for session.DocumentStore.
type DocumentStore struct {
	mock.Mock
}

func (m *DocumentStore) Load(ctx context.Context, sessionID string) (*session.Document, error) {
	args := m.Called(ctx, sessionID)
	if doc, ok := args.Get(0).(*session.Document); ok {
		return doc, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *DocumentStore) Save(ctx context.Context, sessionID string, doc *session.Document) error {
	args := m.Called(ctx, sessionID, doc)
	return args.Error(0)
}

func (m *DocumentStore) List(ctx context.Context) ([]session.Info, error) {
	args := m.Called(ctx)
	if infos, ok := args.Get(0).([]session.Info); ok {
		return infos, args.Error(1)
	}
	return nil, args.Error(1)
}

// Provider is a mock for generation.Provider.
type Provider struct {
	mock.Mock
}

func (m *Provider) Name() string {
	return "mock"
}

func (m *Provider) Generate(ctx context.Context, req generation.Request) (*generation.Result, error) {
	args := m.Called(ctx, req)
	if result, ok := args.Get(0).(*generation.Result); ok {
		return result, args.Error(1)
	}
	return nil, args.Error(1)
}
