package mocks

import (
	"context"
	"math/big"

	"github.com/stretchr/testify/mock"

	"github.com/eleven-am/poanet/internal/ports"
)

type MockChainDialer struct {
	mock.Mock
}

func NewMockChainDialer(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockChainDialer {
	m := &MockChainDialer{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockChainDialer) Dial(ctx context.Context, url string) (ports.ChainClient, error) {
	args := m.Called(ctx, url)
	if v := args.Get(0); v != nil {
		return v.(ports.ChainClient), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockChainClient struct {
	mock.Mock
}

func NewMockChainClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockChainClient {
	m := &MockChainClient{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockChainClient) BlockNumber(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockChainClient) Transfer(ctx context.Context, privateKey, to string, wei *big.Int) (string, error) {
	args := m.Called(ctx, privateKey, to, wei)
	return args.String(0), args.Error(1)
}

func (m *MockChainClient) Close() {
	m.Called()
}
