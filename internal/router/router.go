// Package router exposes the bridge operations over HTTP.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/patric-chuzhbe/nativebridge/internal/compress"
	"github.com/patric-chuzhbe/nativebridge/internal/handles"
	"github.com/patric-chuzhbe/nativebridge/internal/logger"
	"github.com/patric-chuzhbe/nativebridge/internal/models"
	"github.com/patric-chuzhbe/nativebridge/internal/ownership"
	"github.com/patric-chuzhbe/nativebridge/internal/user"
)

const maxRequestBody = 1 << 20

type calculator interface {
	Add(x, y int32) int32
	AddString(x, y int32) string
	AddJSON(x, y int32) ([]byte, error)
	CalculateJSON(x, y int32, operation string) ([]byte, error)
	CalculateBatchJSON(ctx context.Context, request []byte) ([]byte, error)
	EvaluateExpression(expression string) ([]byte, error)
	IsOperationSupported(operation string) bool
	ModuleInfo() models.ModuleInfo
}

type userKeeper interface {
	CreateUserBoxed(id int32, name []byte) handles.Handle
	User(h handles.Handle) (*user.User, error)
	ReleaseUser(h handles.Handle) error
	Outstanding() int
}

type fetcher interface {
	FetchPayload(ctx context.Context) string
}

type bridgeService interface {
	calculator
	userKeeper
	fetcher
}

type tokenIssuer interface {
	Issue(h handles.Handle) (string, error)
	Verify(tokenString string, h handles.Handle) error
}

type ipChecker interface {
	Trusted(request *http.Request) bool
}

// Router serves the bridge over HTTP. Handlers are named after their method and path.
type Router struct {
	*chi.Mux
	bridge    bridgeService
	tokens    tokenIssuer
	ipChecker ipChecker
	validate  *validator.Validate
}

func New(
	bridge bridgeService,
	tokens tokenIssuer,
	ipChecker ipChecker,
) *Router {
	router := &Router{
		Mux:       chi.NewRouter(),
		bridge:    bridge,
		tokens:    tokens,
		ipChecker: ipChecker,
		validate:  validator.New(),
	}

	router.Use(logger.WithLoggingHTTPMiddleware)
	router.Use(compress.DecodeRequest)
	router.Use(compress.EncodeResponse)

	router.Get(`/ping`, router.GetPing)
	router.Route(`/api`, func(r chi.Router) {
		r.Get(`/add`, router.GetApiadd)
		r.Get(`/add/string`, router.GetApiaddstring)
		r.Get(`/add/json`, router.GetApiaddjson)
		r.Post(`/calculate`, router.PostApicalculate)
		r.Post(`/calculate/batch`, router.PostApicalculatebatch)
		r.Post(`/evaluate`, router.PostApievaluate)
		r.Get(`/operations/{operation}`, router.GetApioperation)
		r.Get(`/info`, router.GetApiinfo)
		r.Post(`/users`, router.PostApiusers)
		r.Get(`/users/{handle}`, router.GetApiuser)
		r.Delete(`/users/{handle}`, router.DeleteApiuser)
		r.Get(`/fetch`, router.GetApifetch)
		r.Get(`/internal/stats`, router.GetApiinternalstats)
	})

	return router
}

func writeJSON(response http.ResponseWriter, status int, body []byte) {
	response.Header().Set("Content-Type", "application/json")
	response.WriteHeader(status)
	if _, err := response.Write(body); err != nil {
		logger.Log.Debugln("writing response failed", zap.Error(err))
	}
}

func writeValue(response http.ResponseWriter, status int, value any) {
	body, err := json.Marshal(value)
	if err != nil {
		logger.Log.Errorln("encoding response failed", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(response, status, body)
}

func writeCalculationError(response http.ResponseWriter, status int, message string, err error) {
	writeValue(response, status, models.CalculationError{
		Error:   message,
		Details: err.Error(),
	})
}

func parseInt32(raw string) (int32, error) {
	n, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, err
	}
	return int32(n), nil
}

func operands(request *http.Request) (int32, int32, error) {
	query := request.URL.Query()

	a, err := parseInt32(query.Get("a"))
	if err != nil {
		return 0, 0, fmt.Errorf("operand a: %w", err)
	}
	b, err := parseInt32(query.Get("b"))
	if err != nil {
		return 0, 0, fmt.Errorf("operand b: %w", err)
	}

	return a, b, nil
}

func (router *Router) decode(request *http.Request, target any) error {
	decoder := json.NewDecoder(io.LimitReader(request.Body, maxRequestBody))
	if err := decoder.Decode(target); err != nil {
		return err
	}

	return router.validate.Struct(target)
}

func handleFromPath(request *http.Request) (handles.Handle, error) {
	raw := chi.URLParam(request, "handle")
	h, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", models.ErrUnknownHandle, raw)
	}

	return handles.Handle(h), nil
}

func userErrorStatus(err error) int {
	switch {
	case errors.Is(err, models.ErrAlreadyReleased):
		return http.StatusGone
	case errors.Is(err, models.ErrUnknownHandle), errors.Is(err, models.ErrNullHandle):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func userResponse(h handles.Handle, usr *user.User) models.UserResponse {
	name := usr.Name()
	return models.UserResponse{
		Handle:  uint64(h),
		ID:      usr.ID,
		Name:    name.String(),
		NameLen: name.Len(),
	}
}

func (router *Router) GetPing(response http.ResponseWriter, request *http.Request) {
	response.WriteHeader(http.StatusOK)
}

func (router *Router) GetApiadd(response http.ResponseWriter, request *http.Request) {
	a, b, err := operands(request)
	if err != nil {
		http.Error(response, err.Error(), http.StatusBadRequest)
		return
	}

	writeValue(response, http.StatusOK, models.AddResponse{Result: router.bridge.Add(a, b)})
}

func (router *Router) GetApiaddstring(response http.ResponseWriter, request *http.Request) {
	a, b, err := operands(request)
	if err != nil {
		http.Error(response, err.Error(), http.StatusBadRequest)
		return
	}

	response.Header().Set("Content-Type", "text/plain; charset=utf-8")
	response.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(response, router.bridge.AddString(a, b)); err != nil {
		logger.Log.Debugln("writing response failed", zap.Error(err))
	}
}

func (router *Router) GetApiaddjson(response http.ResponseWriter, request *http.Request) {
	a, b, err := operands(request)
	if err != nil {
		http.Error(response, err.Error(), http.StatusBadRequest)
		return
	}

	body, err := router.bridge.AddJSON(a, b)
	if err != nil {
		logger.Log.Errorln("add payload", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(response, http.StatusOK, body)
}

// PostApicalculate answers 200 for every well-formed request; division by zero
// and unknown operations are reported inside the payload.
func (router *Router) PostApicalculate(response http.ResponseWriter, request *http.Request) {
	var input models.CalculateRequest
	if err := router.decode(request, &input); err != nil {
		http.Error(response, err.Error(), http.StatusBadRequest)
		return
	}

	body, err := router.bridge.CalculateJSON(*input.A, *input.B, input.Operation)
	if err != nil {
		logger.Log.Errorln("calculation payload", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(response, http.StatusOK, body)
}

func (router *Router) PostApicalculatebatch(response http.ResponseWriter, request *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(request.Body, maxRequestBody))
	if err != nil {
		http.Error(response, err.Error(), http.StatusBadRequest)
		return
	}

	body, err := router.bridge.CalculateBatchJSON(request.Context(), raw)
	if errors.Is(err, models.ErrMalformedRequest) {
		writeCalculationError(response, http.StatusBadRequest, "Invalid batch request", err)
		return
	}
	if err != nil {
		logger.Log.Errorln("batch payload", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(response, http.StatusOK, body)
}

func (router *Router) PostApievaluate(response http.ResponseWriter, request *http.Request) {
	var input models.EvaluateRequest
	if err := router.decode(request, &input); err != nil {
		http.Error(response, err.Error(), http.StatusBadRequest)
		return
	}

	body, err := router.bridge.EvaluateExpression(input.Expression)
	if errors.Is(err, models.ErrInvalidExpression) {
		writeCalculationError(response, http.StatusBadRequest, "Invalid expression", err)
		return
	}
	if err != nil {
		logger.Log.Errorln("expression payload", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(response, http.StatusOK, body)
}

func (router *Router) GetApioperation(response http.ResponseWriter, request *http.Request) {
	operation := chi.URLParam(request, "operation")

	writeValue(response, http.StatusOK, models.OperationSupportResponse{
		Operation: operation,
		Supported: router.bridge.IsOperationSupported(operation),
	})
}

func (router *Router) GetApiinfo(response http.ResponseWriter, request *http.Request) {
	writeValue(response, http.StatusOK, router.bridge.ModuleInfo())
}

// PostApiusers creates a boxed user and returns its handle together with the
// token required to release it.
func (router *Router) PostApiusers(response http.ResponseWriter, request *http.Request) {
	var input models.CreateUserRequest
	if err := router.decode(request, &input); err != nil {
		http.Error(response, err.Error(), http.StatusBadRequest)
		return
	}

	h := router.bridge.CreateUserBoxed(input.ID, []byte(input.Name))
	usr, err := router.bridge.User(h)
	if err != nil {
		logger.Log.Errorln("reading freshly created user", "handle", h, zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)
		return
	}

	token, err := router.tokens.Issue(h)
	if err != nil {
		logger.Log.Errorln("issuing ownership token", "handle", h, zap.Error(err))
		if releaseErr := router.bridge.ReleaseUser(h); releaseErr != nil {
			logger.Log.Errorln("releasing orphaned user", "handle", h, zap.Error(releaseErr))
		}
		response.WriteHeader(http.StatusInternalServerError)
		return
	}

	result := userResponse(h, usr)
	result.Token = token
	writeValue(response, http.StatusCreated, result)
}

func (router *Router) GetApiuser(response http.ResponseWriter, request *http.Request) {
	h, err := handleFromPath(request)
	if err != nil {
		response.WriteHeader(http.StatusNotFound)
		return
	}

	usr, err := router.bridge.User(h)
	if err != nil {
		response.WriteHeader(userErrorStatus(err))
		return
	}

	writeValue(response, http.StatusOK, userResponse(h, usr))
}

// DeleteApiuser releases a boxed user. The request must carry the token issued
// on creation in the Authorization header.
func (router *Router) DeleteApiuser(response http.ResponseWriter, request *http.Request) {
	h, err := handleFromPath(request)
	if err != nil {
		response.WriteHeader(http.StatusNotFound)
		return
	}

	token, err := ownership.FromRequest(request)
	if err != nil {
		response.WriteHeader(http.StatusUnauthorized)
		return
	}
	if err := router.tokens.Verify(token, h); err != nil {
		logger.Log.Warnln("release by non-owner rejected", "handle", h, zap.Error(err))
		response.WriteHeader(http.StatusForbidden)
		return
	}

	if err := router.bridge.ReleaseUser(h); err != nil {
		response.WriteHeader(userErrorStatus(err))
		return
	}

	response.WriteHeader(http.StatusNoContent)
}

// GetApifetch relays the network GET. Failures are reported inside the payload.
func (router *Router) GetApifetch(response http.ResponseWriter, request *http.Request) {
	writeJSON(response, http.StatusOK, []byte(router.bridge.FetchPayload(request.Context())))
}

// GetApiinternalstats is only served to clients from the trusted subnet.
func (router *Router) GetApiinternalstats(response http.ResponseWriter, request *http.Request) {
	if !router.ipChecker.Trusted(request) {
		response.WriteHeader(http.StatusForbidden)
		return
	}

	writeValue(response, http.StatusOK, models.InternalStats{
		OutstandingUsers: router.bridge.Outstanding(),
	})
}
