//go:build cgo

package main

/*
#include "nativebridge.h"
*/
import "C"

import (
	"context"
	"encoding/json"
	"unsafe"

	"github.com/patric-chuzhbe/nativebridge/internal/logger"
	"github.com/patric-chuzhbe/nativebridge/internal/models"
)

// payload hands a JSON document to the host. A marshalling failure yields NULL.
func payload(b []byte, err error, what string) *C.char {
	if err != nil {
		logger.Log.Errorln("building payload failed", "what", what, "error", err)
		return nil
	}
	return ownedBytes(b)
}

func errorPayload(message string, err error) *C.char {
	out, marshalErr := json.Marshal(models.CalculationError{
		Error:   message,
		Details: err.Error(),
	})
	return payload(out, marshalErr, message)
}

//export native_add
func native_add(a, b C.int32_t) C.int32_t {
	return C.int32_t(lib().bridge.Add(int32(a), int32(b)))
}

//export native_add_string
func native_add_string(a, b C.int32_t) *C.char {
	return ownedString(lib().bridge.AddString(int32(a), int32(b)))
}

//export native_add_json
func native_add_json(a, b C.int32_t) *C.char {
	out, err := lib().bridge.AddJSON(int32(a), int32(b))
	return payload(out, err, "add")
}

//export native_free_string
func native_free_string(s *C.char) {
	if s == nil {
		return
	}
	releaseBuffer(unsafe.Pointer(s), "string")
}

//export native_calculate_json
func native_calculate_json(a, b C.int32_t, operation *C.char) *C.char {
	if operation == nil {
		return nil
	}
	op := goString(operation)
	out, err := lib().bridge.CalculateJSON(int32(a), int32(b), op)

	return payload(out, err, op)
}

//export native_is_operation_supported
func native_is_operation_supported(operation *C.char) C.int {
	if operation == nil || !lib().bridge.IsOperationSupported(goString(operation)) {
		return 0
	}
	return 1
}

//export native_calculate_batch_json
func native_calculate_batch_json(request *C.char) *C.char {
	if request == nil {
		return nil
	}
	out, err := lib().bridge.CalculateBatchJSON(context.Background(), []byte(goString(request)))
	if err != nil {
		return errorPayload("Invalid batch request", err)
	}

	return ownedBytes(out)
}

//export native_evaluate_expression_json
func native_evaluate_expression_json(expression *C.char) *C.char {
	if expression == nil {
		return nil
	}
	out, err := lib().bridge.EvaluateExpression(goString(expression))
	if err != nil {
		return errorPayload("Invalid expression", err)
	}

	return ownedBytes(out)
}

//export native_module_info_json
func native_module_info_json() *C.char {
	out, err := json.Marshal(lib().bridge.ModuleInfo())
	return payload(out, err, "module info")
}

//export create_user
func create_user(id C.int32_t, name *C.uint8_t, nameLen C.uintptr_t) C.User {
	return createUser(int32(id), unsafe.Pointer(name), uintptr(nameLen))
}

func createUser(id int32, name unsafe.Pointer, nameLen uintptr) C.User {
	usr := lib().bridge.CreateUser(id, borrowedBytes(name, nameLen))
	return newUser(usr.ID, usr.Name().Bytes())
}

//export free_user
func free_user(u *C.User) {
	if u == nil {
		return
	}
	releaseUserName(u)
}

//export create_user_boxed
func create_user_boxed(id C.int32_t, name *C.uint8_t, nameLen C.uintptr_t) *C.User {
	return createUserBoxed(int32(id), unsafe.Pointer(name), uintptr(nameLen))
}

func createUserBoxed(id int32, name unsafe.Pointer, nameLen uintptr) *C.User {
	usr := lib().bridge.CreateUser(id, borrowedBytes(name, nameLen))
	return newRecord(usr.ID, usr.Name().Bytes())
}

//export free_user_boxed
func free_user_boxed(u *C.User) {
	if u == nil {
		return
	}
	releaseRecord(u)
}

//export perform_get_request
func perform_get_request() *C.char {
	return ownedString(lib().bridge.FetchPayload(context.Background()))
}

//export native_outstanding_allocations
func native_outstanding_allocations() C.uintptr_t {
	return C.uintptr_t(outstanding())
}
