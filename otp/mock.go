package otp

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/chainballot/voter-oracle/interfaces"
)

// MockCodeProvider mocks the interfaces.CodeProvider interface.
type MockCodeProvider struct {
	mock.Mock
}

// Issue mocks the Issue method.
func (m *MockCodeProvider) Issue(ctx context.Context, channel string) (interfaces.ChallengeHandle, error) {
	args := m.Called(ctx, channel)
	return args.Get(0).(interfaces.ChallengeHandle), args.Error(1)
}

// Check mocks the Check method.
func (m *MockCodeProvider) Check(ctx context.Context, channel, code string) (interfaces.CodeCheckResult, error) {
	args := m.Called(ctx, channel, code)
	return args.Get(0).(interfaces.CodeCheckResult), args.Error(1)
}
