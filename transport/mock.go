package transport

import (
	"time"

	"github.com/stretchr/testify/mock"
)

// MockTransport is a testify mock implementation of Transport for use in tests.
type MockTransport struct {
	mock.Mock
}

var _ Transport = (*MockTransport)(nil)

func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

func (m *MockTransport) Open() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockTransport) Write(p []byte) (int, error) {
	args := m.Called(p)
	return args.Int(0), args.Error(1)
}

func (m *MockTransport) Read(p []byte) (int, error) {
	args := m.Called(p)
	return args.Int(0), args.Error(1)
}

func (m *MockTransport) SetReadTimeout(d time.Duration) error {
	args := m.Called(d)
	return args.Error(0)
}

func (m *MockTransport) IsOpen() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockTransport) Close() error {
	args := m.Called()
	return args.Error(0)
}
