package handler

import (
	"context"

	loadapp "github.com/loadengine/backend/internal/application/load"
	"github.com/loadengine/backend/internal/domain/load"
	"github.com/stretchr/testify/mock"
)

type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Dispatch(ctx context.Context, req load.LoadRequest, user string) (*loadapp.DispatchResult, error) {
	args := m.Called(ctx, req, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*loadapp.DispatchResult), args.Error(1)
}

func (m *MockDispatcher) FindByReference(ctx context.Context, code string) (*load.LedgerEntry, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*load.LedgerEntry), args.Error(1)
}

type MockQueryProcessor struct {
	mock.Mock
}

func (m *MockQueryProcessor) Process(ctx context.Context, query, user string, source load.BotSource) (*loadapp.DispatchResult, error) {
	args := m.Called(ctx, query, user, source)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*loadapp.DispatchResult), args.Error(1)
}

type MockOrphanLister struct {
	mock.Mock
}

func (m *MockOrphanLister) List(ctx context.Context, limit int) ([]load.OrphanRecord, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]load.OrphanRecord), args.Error(1)
}

type MockCallbackAcceptor struct {
	mock.Mock
}

func (m *MockCallbackAcceptor) Accept(ctx context.Context, payload load.CallbackPayload) {
	m.Called(ctx, payload)
}

func (m *MockCallbackAcceptor) AcceptMalformed(ctx context.Context, kind load.CallbackKind, raw []byte, cause error) {
	m.Called(ctx, kind, raw, cause)
}
