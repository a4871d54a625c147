package service

import (
	"context"
	"meshgate/internal/models"
	carriertypes "meshgate/pkg/carrier/types"

	"github.com/stretchr/testify/mock"
)

// Mock carrier client
type mockCarrierClient struct {
	mock.Mock
}

func (m *mockCarrierClient) Send(ctx context.Context, req carriertypes.SendMessageRequest) (*carriertypes.SendMessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*carriertypes.SendMessageResponse), args.Error(1)
}

// Mock mesh client
type mockMeshClient struct {
	mock.Mock
}

func (m *mockMeshClient) SendToNode(ctx context.Context, nodeID, message string) error {
	args := m.Called(ctx, nodeID, message)
	return args.Error(0)
}

func (m *mockMeshClient) SendToPubKey(ctx context.Context, pubkeyPrefix, message string) error {
	args := m.Called(ctx, pubkeyPrefix, message)
	return args.Error(0)
}

func (m *mockMeshClient) SendToChannel(ctx context.Context, channelIndex int, message string) error {
	args := m.Called(ctx, channelIndex, message)
	return args.Error(0)
}

// Mock state store
type mockStateStore struct {
	mock.Mock
}

func (m *mockStateStore) SaveState(ctx context.Context, state *models.GatewayState) error {
	args := m.Called(ctx, state)
	return args.Error(0)
}

func (m *mockStateStore) LoadState(ctx context.Context) (*models.GatewayState, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GatewayState), args.Error(1)
}

// Mock usage resetter for the scheduler
type mockUsageResetter struct {
	mock.Mock
}

func (m *mockUsageResetter) ResetIfNewDay(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}
