// Package calc implements the arithmetic exposed across the native boundary
// and builds the JSON payloads returned to the host.
//
// All arithmetic is performed on int32 with two's-complement wrapping, so every
// operation is total except division by zero.
package calc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/thoas/go-funk"
	"golang.org/x/sync/errgroup"

	"github.com/patric-chuzhbe/nativebridge/internal/models"
)

const (
	ModuleName    = "nativebridge"
	ModuleVersion = "1.0.0"

	defaultConcurrency = 4
)

const (
	errTextDivisionByZero   = "Division by zero"
	errTextUnknownOperation = "Unknown operation"
	errTextInvalidFormat    = "Invalid operation format"
)

type operator struct {
	key     string
	name    string
	aliases []string
	apply   func(a, b int32) (int32, error)
}

// operatorTable is ordered: supported_operations lists keys in this order.
var operatorTable = []operator{
	{"add", "addition", []string{"add", "addition", "+"}, func(a, b int32) (int32, error) { return a + b, nil }},
	{"sub", "subtraction", []string{"sub", "subtract", "subtraction", "-"}, func(a, b int32) (int32, error) { return a - b, nil }},
	{"mul", "multiplication", []string{"mul", "multiply", "multiplication", "*"}, func(a, b int32) (int32, error) { return a * b, nil }},
	{"div", "division", []string{"div", "divide", "division", "/"}, divide},
}

var supportedOperations = funk.Map(operatorTable, func(o operator) string { return o.key }).([]string)

// lookup finds the operator whose aliases contain op after normalization.
func lookup(op string) (operator, bool) {
	name := normalize(op)
	found := funk.Find(operatorTable, func(o operator) bool {
		return funk.ContainsString(o.aliases, name)
	})
	if found == nil {
		return operator{}, false
	}

	return found.(operator), true
}

var expressionPattern = regexp.MustCompile(`^\s*(-?\d+)\s*([-+*/])\s*(-?\d+)\s*$`)

// divide truncates toward zero. math.MinInt32 / -1 wraps to math.MinInt32.
func divide(a, b int32) (int32, error) {
	if b == 0 {
		return 0, models.ErrDivisionByZero
	}
	return a / b, nil
}

type Option func(*Calculator)

// WithClock overrides the source of payload timestamps.
func WithClock(clock func() time.Time) Option {
	return func(c *Calculator) {
		c.clock = clock
	}
}

// WithConcurrency bounds the number of batch items evaluated at once.
func WithConcurrency(n int) Option {
	return func(c *Calculator) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

type Calculator struct {
	clock       func() time.Time
	concurrency int
}

func New(opts ...Option) *Calculator {
	c := &Calculator{
		clock:       time.Now,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Add returns a+b.
func Add(a, b int32) int32 {
	return a + b
}

// AddString returns the decimal text of a+b.
func AddString(a, b int32) string {
	return strconv.FormatInt(int64(Add(a, b)), 10)
}

// SupportedOperations returns the canonical names of the supported operators.
func SupportedOperations() []string {
	out := make([]string, len(supportedOperations))
	copy(out, supportedOperations)

	return out
}

// IsSupported reports whether op names a supported operator.
// Names are matched case-insensitively, and symbols and long forms are accepted.
func IsSupported(op string) bool {
	_, ok := lookup(op)

	return ok
}

func normalize(op string) string {
	return strings.ToLower(strings.TrimSpace(op))
}

// Calculate applies op to a and b.
// It fails with models.ErrUnknownOperation or models.ErrDivisionByZero.
func (c *Calculator) Calculate(a, b int32, op string) (models.CalculationResult, error) {
	o, ok := lookup(op)
	if !ok {
		return models.CalculationResult{}, fmt.Errorf("%q: %w", op, models.ErrUnknownOperation)
	}

	result, err := o.apply(a, b)
	if err != nil {
		return models.CalculationResult{}, err
	}

	return models.CalculationResult{
		Operation: o.name,
		Operands:  models.Operands{Left: a, Right: b},
		Result:    result,
		Success:   true,
		Timestamp: c.clock().UTC().Format(time.RFC3339),
	}, nil
}

// payload returns either a models.CalculationResult or a models.CalculationError.
func (c *Calculator) payload(a, b int32, op string) any {
	result, err := c.Calculate(a, b, op)
	switch {
	case err == nil:
		return result
	case errors.Is(err, models.ErrDivisionByZero):
		return models.CalculationError{
			Error:    errTextDivisionByZero,
			Operands: &models.Operands{Left: a, Right: b},
		}
	default:
		return models.CalculationError{
			Error:               errTextUnknownOperation,
			Operation:           op,
			SupportedOperations: SupportedOperations(),
		}
	}
}

// CalculateJSON applies op and serializes the outcome. Division by zero and unknown
// operators are reported inside the returned payload, not as an error.
func (c *Calculator) CalculateJSON(a, b int32, op string) ([]byte, error) {
	return json.Marshal(c.payload(a, b, op))
}

// AddJSON is CalculateJSON for the add operator.
func (c *Calculator) AddJSON(a, b int32) ([]byte, error) {
	return c.CalculateJSON(a, b, "add")
}

type batchSuccess struct {
	models.CalculationResult
	BatchIndex int `json:"batchIndex"`
}

type batchFailure struct {
	models.CalculationError
	BatchIndex int `json:"batchIndex"`
}

// CalculateBatch evaluates every item and returns one payload per item in input order.
func (c *Calculator) CalculateBatch(ctx context.Context, items models.BatchCalculateRequest) ([]any, error) {
	results := make([]any, len(items))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for i, item := range items {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = c.batchItem(i, item)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

func (c *Calculator) batchItem(index int, item models.CalculateRequest) any {
	if item.A == nil || item.B == nil || item.Operation == "" {
		return batchFailure{
			CalculationError: models.CalculationError{
				Error:   errTextInvalidFormat,
				Details: `expected { "a": number, "b": number, "operation": string }`,
			},
			BatchIndex: index,
		}
	}

	switch p := c.payload(*item.A, *item.B, item.Operation).(type) {
	case models.CalculationResult:
		return batchSuccess{CalculationResult: p, BatchIndex: index}
	case models.CalculationError:
		return batchFailure{CalculationError: p, BatchIndex: index}
	default:
		panic(fmt.Sprintf("unexpected payload type %T", p))
	}
}

// CalculateBatchJSON decodes a JSON array of {a, b, operation} objects and returns
// the JSON array of their payloads.
func (c *Calculator) CalculateBatchJSON(ctx context.Context, request []byte) ([]byte, error) {
	var items models.BatchCalculateRequest
	if err := json.Unmarshal(request, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMalformedRequest, err)
	}

	results, err := c.CalculateBatch(ctx, items)
	if err != nil {
		return nil, err
	}

	return json.Marshal(results)
}

// EvaluateExpression evaluates "<int> <op> <int>" where op is one of + - * /.
func (c *Calculator) EvaluateExpression(expression string) ([]byte, error) {
	match := expressionPattern.FindStringSubmatch(expression)
	if match == nil {
		return nil, fmt.Errorf("%q: %w", expression, models.ErrInvalidExpression)
	}

	a, err := strconv.ParseInt(match[1], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("%q: %w: %v", expression, models.ErrInvalidExpression, err)
	}
	b, err := strconv.ParseInt(match[3], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("%q: %w: %v", expression, models.ErrInvalidExpression, err)
	}

	return c.CalculateJSON(int32(a), int32(b), match[2])
}

// ModuleInfo describes the library to the host.
func ModuleInfo() models.ModuleInfo {
	return models.ModuleInfo{
		Name:                ModuleName,
		Version:             ModuleVersion,
		SupportedOperations: SupportedOperations(),
		Capabilities: []string{
			"basicArithmetic",
			"stringResults",
			"jsonResults",
			"batchCalculations",
			"expressionEvaluation",
			"userRecords",
			"networkGet",
		},
		Limits: models.Limits{
			MaxInt: math.MaxInt32,
			MinInt: math.MinInt32,
		},
	}
}
