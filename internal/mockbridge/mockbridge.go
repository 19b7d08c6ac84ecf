// Package mockbridge provides a testify mock of the bridge facade consumed by
// the router package. It lets handler tests drive failure paths the real
// bridge never produces.
package mockbridge

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/patric-chuzhbe/nativebridge/internal/handles"
	"github.com/patric-chuzhbe/nativebridge/internal/models"
	"github.com/patric-chuzhbe/nativebridge/internal/user"
)

// BridgeMock implements every bridge method the router calls.
type BridgeMock struct {
	mock.Mock

	// OnOutstanding, when set, answers Outstanding instead of the generic
	// mock handler. Left nil, Outstanding reports 0.
	OnOutstanding func() int
}

func (m *BridgeMock) Add(x, y int32) int32 {
	args := m.Called(x, y)
	return args.Get(0).(int32)
}

func (m *BridgeMock) AddString(x, y int32) string {
	args := m.Called(x, y)
	return args.String(0)
}

func (m *BridgeMock) AddJSON(x, y int32) ([]byte, error) {
	args := m.Called(x, y)
	body, _ := args.Get(0).([]byte)
	return body, args.Error(1)
}

func (m *BridgeMock) CalculateJSON(x, y int32, operation string) ([]byte, error) {
	args := m.Called(x, y, operation)
	body, _ := args.Get(0).([]byte)
	return body, args.Error(1)
}

func (m *BridgeMock) CalculateBatchJSON(ctx context.Context, request []byte) ([]byte, error) {
	args := m.Called(ctx, request)
	body, _ := args.Get(0).([]byte)
	return body, args.Error(1)
}

func (m *BridgeMock) EvaluateExpression(expression string) ([]byte, error) {
	args := m.Called(expression)
	body, _ := args.Get(0).([]byte)
	return body, args.Error(1)
}

func (m *BridgeMock) IsOperationSupported(operation string) bool {
	args := m.Called(operation)
	return args.Bool(0)
}

func (m *BridgeMock) ModuleInfo() models.ModuleInfo {
	args := m.Called()
	return args.Get(0).(models.ModuleInfo)
}

func (m *BridgeMock) FetchPayload(ctx context.Context) string {
	args := m.Called(ctx)
	return args.String(0)
}

func (m *BridgeMock) CreateUserBoxed(id int32, name []byte) handles.Handle {
	args := m.Called(id, name)
	return args.Get(0).(handles.Handle)
}

func (m *BridgeMock) User(h handles.Handle) (*user.User, error) {
	args := m.Called(h)
	usr, _ := args.Get(0).(*user.User)
	return usr, args.Error(1)
}

func (m *BridgeMock) ReleaseUser(h handles.Handle) error {
	args := m.Called(h)
	return args.Error(0)
}

func (m *BridgeMock) Outstanding() int {
	if m.OnOutstanding != nil {
		return m.OnOutstanding()
	}
	return 0
}
