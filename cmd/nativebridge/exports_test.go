//go:build cgo

package main

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/nativebridge/internal/config"
	"github.com/patric-chuzhbe/nativebridge/internal/models"
)

// useLibrary replaces the lazily configured library for the duration of a test.
func useLibrary(t *testing.T, mutate func(cfg *config.Config)) {
	t.Helper()
	initOnce.Do(func() {})

	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	previous := current
	current = newLibrary(cfg)
	t.Cleanup(func() { current = previous })
}

func TestAddExports(t *testing.T) {
	useLibrary(t, nil)
	before := outstanding()

	assert.EqualValues(t, 5, native_add(2, 3))
	assert.EqualValues(t, math.MinInt32, native_add(math.MaxInt32, 1))

	s := native_add_string(2, 3)
	require.NotNil(t, s)
	assert.Equal(t, "5", goString(s))
	native_free_string(s)

	j := native_add_json(2, 3)
	require.NotNil(t, j)
	var result models.CalculationResult
	require.NoError(t, json.Unmarshal([]byte(goString(j)), &result))
	assert.EqualValues(t, 5, result.Result)
	native_free_string(j)

	assert.Equal(t, before, outstanding())
}

func TestFreeStringNullIsNoop(t *testing.T) {
	useLibrary(t, nil)
	before := outstanding()

	native_free_string(nil)

	assert.Equal(t, before, outstanding())
}

func TestCalculateExport(t *testing.T) {
	useLibrary(t, nil)
	before := outstanding()

	divide := ownedString("divide")
	defer native_free_string(divide)

	out := native_calculate_json(6, 3, divide)
	var result models.CalculationResult
	require.NoError(t, json.Unmarshal([]byte(goString(out)), &result))
	assert.EqualValues(t, 2, result.Result)
	native_free_string(out)

	out = native_calculate_json(6, 0, divide)
	assert.JSONEq(t, `{"error":"Division by zero","operands":{"left":6,"right":0},"success":false}`, goString(out))
	native_free_string(out)

	assert.Nil(t, native_calculate_json(6, 3, nil))
	assert.EqualValues(t, 1, native_is_operation_supported(divide))
	assert.EqualValues(t, 0, native_is_operation_supported(nil))

	assert.Equal(t, before+1, outstanding())
}

func TestBatchAndExpressionExports(t *testing.T) {
	useLibrary(t, nil)
	before := outstanding()

	request := ownedString(`[{"a":1,"b":2,"operation":"add"},{"a":6,"b":0,"operation":"div"}]`)
	out := native_calculate_batch_json(request)
	var batch []map[string]any
	require.NoError(t, json.Unmarshal([]byte(goString(out)), &batch))
	require.Len(t, batch, 2)
	assert.Equal(t, float64(3), batch[0]["result"])
	assert.Equal(t, "Division by zero", batch[1]["error"])
	native_free_string(out)
	native_free_string(request)

	expression := ownedString("3 + 5")
	out = native_evaluate_expression_json(expression)
	var result models.CalculationResult
	require.NoError(t, json.Unmarshal([]byte(goString(out)), &result))
	assert.EqualValues(t, 8, result.Result)
	native_free_string(out)
	native_free_string(expression)

	garbage := ownedString("three plus five")
	out = native_evaluate_expression_json(garbage)
	assert.Contains(t, goString(out), "Invalid expression")
	native_free_string(out)
	native_free_string(garbage)

	info := native_module_info_json()
	assert.Contains(t, goString(info), `"name":"nativebridge"`)
	native_free_string(info)

	assert.Equal(t, before, outstanding())
}

func TestCreateUserExport(t *testing.T) {
	useLibrary(t, nil)
	before := outstanding()

	name := []byte("ab")
	u := createUser(7, unsafe.Pointer(&name[0]), uintptr(len(name)))
	name[0] = 'z'

	assert.EqualValues(t, 7, u.id)
	assert.EqualValues(t, 2, u.name_len)
	assert.Equal(t, "ab", goString(u.name))
	assert.Equal(t, before+1, outstanding())

	free_user(&u)
	assert.Nil(t, u.name)
	assert.EqualValues(t, 0, u.name_len)
	assert.Equal(t, before, outstanding())

	free_user(&u)
	free_user(nil)
	assert.Equal(t, before, outstanding())
}

func TestCreateUserWithoutName(t *testing.T) {
	useLibrary(t, nil)

	u := createUser(1, nil, 5)

	assert.EqualValues(t, 0, u.name_len)
	assert.Equal(t, "", goString(u.name))
	free_user(&u)
}

func TestDoubleReleaseIsRejected(t *testing.T) {
	useLibrary(t, nil)
	before := outstanding()

	name := []byte("ab")
	u := createUser(7, unsafe.Pointer(&name[0]), uintptr(len(name)))
	stale := u

	free_user(&u)
	free_user(&stale)

	assert.Equal(t, before, outstanding())
}

func TestDoubleReleasePanicsInStrictMode(t *testing.T) {
	useLibrary(t, func(cfg *config.Config) {
		cfg.StrictOwnership = true
	})

	s := native_add_string(1, 1)
	native_free_string(s)

	assert.Panics(t, func() {
		native_free_string(s)
	})
}

func TestConcurrentFreeStringReleasesOnce(t *testing.T) {
	useLibrary(t, nil)
	before := outstanding()

	s := native_add_string(20, 22)
	require.NotNil(t, s)
	assert.Equal(t, before+1, outstanding())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			native_free_string(s)
		}()
	}
	wg.Wait()

	assert.Equal(t, before, outstanding())
	assert.False(t, releaseBuffer(unsafe.Pointer(s), "string"))
}

func TestStaleReleaseKeepsNewAllocation(t *testing.T) {
	useLibrary(t, nil)
	before := outstanding()

	first := native_add_string(1, 2)
	native_free_string(first)

	second := native_add_string(3, 4)
	require.NotNil(t, second)
	assert.NotEqual(t, unsafe.Pointer(first), unsafe.Pointer(second))

	native_free_string(first)

	assert.Equal(t, before+1, outstanding())
	assert.Equal(t, "7", goString(second))

	native_free_string(second)
	assert.Equal(t, before, outstanding())
}

func TestBoxedUserExport(t *testing.T) {
	useLibrary(t, nil)
	before := outstanding()

	name := []byte("alice")
	u := createUserBoxed(3, unsafe.Pointer(&name[0]), uintptr(len(name)))
	require.NotNil(t, u)

	assert.EqualValues(t, 3, u.id)
	assert.EqualValues(t, 5, u.name_len)
	assert.Equal(t, "alice", goString(u.name))
	assert.Equal(t, before+2, outstanding())

	// A boxed record is not a string buffer.
	assert.False(t, releaseBuffer(unsafe.Pointer(u), "string"))
	assert.Equal(t, before+2, outstanding())

	free_user_boxed(u)
	assert.Equal(t, before, outstanding())
}

func TestPerformGetRequestExport(t *testing.T) {
	const body = `[{"id":1}]`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	useLibrary(t, func(cfg *config.Config) {
		cfg.NetworkGetURL = srv.URL
	})
	before := outstanding()

	first := perform_get_request()
	second := perform_get_request()
	assert.Equal(t, body, goString(first))
	assert.Equal(t, body, goString(second))
	assert.NotEqual(t, unsafe.Pointer(first), unsafe.Pointer(second))

	native_free_string(first)
	assert.Equal(t, body, goString(second))
	native_free_string(second)

	assert.Equal(t, before, outstanding())
	assert.EqualValues(t, before, native_outstanding_allocations())
}
