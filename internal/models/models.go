package models

import "errors"

type Operands struct {
	Left  int32 `json:"left"`
	Right int32 `json:"right"`
}

// CalculationResult is the payload produced for a successful arithmetic operation.
type CalculationResult struct {
	Operation string   `json:"operation"`
	Operands  Operands `json:"operands"`
	Result    int32    `json:"result"`
	Success   bool     `json:"success"`
	Timestamp string   `json:"timestamp"`
}

// CalculationError is the payload produced when an operation cannot be performed.
// Only the fields relevant to the failure are populated.
type CalculationError struct {
	Error               string    `json:"error"`
	Operation           string    `json:"operation,omitempty"`
	Operands            *Operands `json:"operands,omitempty"`
	SupportedOperations []string  `json:"supported_operations,omitempty"`
	Details             string    `json:"details,omitempty"`
	Success             bool      `json:"success"`
}

type CalculateRequest struct {
	A         *int32 `json:"a" validate:"required"`
	B         *int32 `json:"b" validate:"required"`
	Operation string `json:"operation" validate:"required"`
}

type BatchCalculateRequest []CalculateRequest

type EvaluateRequest struct {
	Expression string `json:"expression" validate:"required"`
}

type AddResponse struct {
	Result int32 `json:"result"`
}

type OperationSupportResponse struct {
	Operation string `json:"operation"`
	Supported bool   `json:"supported"`
}

type Limits struct {
	MaxInt int32 `json:"maxInt"`
	MinInt int32 `json:"minInt"`
}

type ModuleInfo struct {
	Name                string   `json:"name"`
	Version             string   `json:"version"`
	SupportedOperations []string `json:"supportedOperations"`
	Capabilities        []string `json:"capabilities"`
	Limits              Limits   `json:"limits"`
}

type CreateUserRequest struct {
	ID   int32  `json:"id"`
	Name string `json:"name" validate:"max=4096"`
}

type UserResponse struct {
	Handle  uint64 `json:"handle"`
	ID      int32  `json:"id"`
	Name    string `json:"name"`
	NameLen int    `json:"name_len"`
	Token   string `json:"token,omitempty"`
}

// InternalStats reports live resources held by the HTTP host.
type InternalStats struct {
	OutstandingUsers int `json:"outstanding_users"`
}

// FetchError is the payload returned by the network GET when no body could be obtained.
type FetchError struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

var ErrDivisionByZero = errors.New("division by zero")

var ErrUnknownOperation = errors.New("unknown operation")

var ErrInvalidExpression = errors.New("invalid expression")

var ErrMalformedRequest = errors.New("malformed request")

var ErrNullHandle = errors.New("null handle")

var ErrUnknownHandle = errors.New("handle was not issued by this library")

var ErrAlreadyReleased = errors.New("handle already released")
