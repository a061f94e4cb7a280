package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// PublisherMock stands in for the AMQP publisher.
type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

func (m *PublisherMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

// OracleMock stands in for a scam classifier.
type OracleMock struct {
	mock.Mock
}

func (m *OracleMock) Classify(ctx context.Context, text string) (bool, error) {
	args := m.Called(ctx, text)
	return args.Bool(0), args.Error(1)
}

// OnlineMock reports a fixed set of connected users.
type OnlineMock []string

func (m OnlineMock) ListOnline() []string { return m }
