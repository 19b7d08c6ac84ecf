// Package bridge is the Go-side facade of the native boundary.
//
// It combines the calculator, user records and the network GET, and keeps
// every value handed to a host under an explicit handle until the host
// releases it. The cgo exports and the HTTP host are both thin adapters over Bridge.
package bridge

import (
	"context"

	"github.com/patric-chuzhbe/nativebridge/internal/calc"
	"github.com/patric-chuzhbe/nativebridge/internal/handles"
	"github.com/patric-chuzhbe/nativebridge/internal/logger"
	"github.com/patric-chuzhbe/nativebridge/internal/models"
	"github.com/patric-chuzhbe/nativebridge/internal/user"
)

type fetcher interface {
	Payload(ctx context.Context) string
}

type Bridge struct {
	calc    *calc.Calculator
	fetcher fetcher
	users   *handles.Registry[*user.User]
}

func New(calculator *calc.Calculator, f fetcher) *Bridge {
	return &Bridge{
		calc:    calculator,
		fetcher: f,
		users:   handles.NewRegistry[*user.User](),
	}
}

func (b *Bridge) Add(x, y int32) int32 {
	return calc.Add(x, y)
}

func (b *Bridge) AddString(x, y int32) string {
	return calc.AddString(x, y)
}

func (b *Bridge) AddJSON(x, y int32) ([]byte, error) {
	return b.calc.AddJSON(x, y)
}

func (b *Bridge) CalculateJSON(x, y int32, operation string) ([]byte, error) {
	return b.calc.CalculateJSON(x, y, operation)
}

func (b *Bridge) CalculateBatchJSON(ctx context.Context, request []byte) ([]byte, error) {
	return b.calc.CalculateBatchJSON(ctx, request)
}

func (b *Bridge) EvaluateExpression(expression string) ([]byte, error) {
	return b.calc.EvaluateExpression(expression)
}

func (b *Bridge) IsOperationSupported(operation string) bool {
	return calc.IsSupported(operation)
}

func (b *Bridge) ModuleInfo() models.ModuleInfo {
	return calc.ModuleInfo()
}

// FetchPayload performs the network GET. Failures are reported inside the payload.
func (b *Bridge) FetchPayload(ctx context.Context) string {
	return b.fetcher.Payload(ctx)
}

// CreateUser returns a record owning a copy of name. The caller owns the result outright.
func (b *Bridge) CreateUser(id int32, name []byte) *user.User {
	return user.New(id, name)
}

// CreateUserBoxed creates a record kept alive by the bridge until ReleaseUser.
func (b *Bridge) CreateUserBoxed(id int32, name []byte) handles.Handle {
	h := b.users.Acquire(user.New(id, name))
	logger.Log.Debugln("user acquired", "handle", h, "id", id)

	return h
}

// User returns the record owned under h.
func (b *Bridge) User(h handles.Handle) (*user.User, error) {
	return b.users.Get(h)
}

// ReleaseUser ends the ownership of the record under h.
// Releasing twice fails with models.ErrAlreadyReleased.
func (b *Bridge) ReleaseUser(h handles.Handle) error {
	if _, err := b.users.Release(h); err != nil {
		logger.Log.Warnln("user release rejected", "handle", h, "error", err)
		return err
	}
	logger.Log.Debugln("user released", "handle", h)

	return nil
}

// Outstanding reports the number of boxed users not yet released.
func (b *Bridge) Outstanding() int {
	return b.users.Len()
}
