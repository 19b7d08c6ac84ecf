package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/nativebridge/internal/calc"
	"github.com/patric-chuzhbe/nativebridge/internal/handles"
	"github.com/patric-chuzhbe/nativebridge/internal/models"
	"github.com/patric-chuzhbe/nativebridge/internal/netfetch"
)

type stubFetcher struct {
	payload string
}

func (s stubFetcher) Payload(ctx context.Context) string {
	return s.payload
}

func newTestBridge() *Bridge {
	return New(calc.New(), stubFetcher{payload: `[]`})
}

func TestArithmetic(t *testing.T) {
	b := newTestBridge()

	assert.Equal(t, int32(5), b.Add(2, 3))
	assert.Equal(t, "5", b.AddString(2, 3))

	payload, err := b.AddJSON(2, 3)
	require.NoError(t, err)
	var result models.CalculationResult
	require.NoError(t, json.Unmarshal(payload, &result))
	assert.Equal(t, int32(5), result.Result)

	payload, err = b.CalculateJSON(6, 3, "divide")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(payload, &result))
	assert.Equal(t, int32(2), result.Result)

	assert.True(t, b.IsOperationSupported("MUL"))
	assert.False(t, b.IsOperationSupported("pow"))
	assert.Equal(t, calc.ModuleName, b.ModuleInfo().Name)
}

func TestCreateUser(t *testing.T) {
	b := newTestBridge()
	name := []byte("ab")

	usr := b.CreateUser(7, name)
	name[1] = 'x'

	assert.Equal(t, int32(7), usr.ID)
	assert.Equal(t, 2, usr.Name().Len())
	assert.Equal(t, "ab", usr.Name().String())
	assert.Equal(t, 0, b.Outstanding())
}

func TestBoxedUserLifecycle(t *testing.T) {
	b := newTestBridge()

	h := b.CreateUserBoxed(7, []byte("ab"))
	assert.Equal(t, 1, b.Outstanding())

	usr, err := b.User(h)
	require.NoError(t, err)
	assert.Equal(t, "ab", usr.Name().String())

	require.NoError(t, b.ReleaseUser(h))
	assert.Equal(t, 0, b.Outstanding())

	_, err = b.User(h)
	assert.ErrorIs(t, err, models.ErrAlreadyReleased)

	err = b.ReleaseUser(h)
	assert.ErrorIs(t, err, models.ErrAlreadyReleased)

	err = b.ReleaseUser(handles.Handle(99))
	assert.ErrorIs(t, err, models.ErrUnknownHandle)

	err = b.ReleaseUser(0)
	assert.ErrorIs(t, err, models.ErrNullHandle)
}

func TestFetchPayloadAgainstTestServer(t *testing.T) {
	const body = `{"id":1,"title":"hello"}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	b := New(calc.New(), netfetch.New(srv.URL, time.Second))

	first := b.FetchPayload(context.Background())
	second := b.FetchPayload(context.Background())
	assert.Equal(t, body, first)
	assert.Equal(t, body, second)
}
