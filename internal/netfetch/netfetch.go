// Package netfetch performs the single outbound HTTP GET exposed by the library.
package netfetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/patric-chuzhbe/nativebridge/internal/logger"
	"github.com/patric-chuzhbe/nativebridge/internal/models"
)

const (
	errTextRequestFailed = "Request failed"
	errTextReadBody      = "Failed to read response body"
)

// Fetcher issues GET requests against a fixed endpoint.
type Fetcher struct {
	client *resty.Client
	url    string
}

// New returns a Fetcher for url. A non-positive timeout disables the client timeout.
func New(url string, timeout time.Duration) *Fetcher {
	client := resty.New().
		SetHeader("Accept", "application/json")
	if timeout > 0 {
		client.SetTimeout(timeout)
	}

	return &Fetcher{
		client: client,
		url:    url,
	}
}

// ReadBodyError is returned when the endpoint responded but its body could not be read.
type ReadBodyError struct {
	Err error
}

func (e *ReadBodyError) Error() string {
	return "reading response body: " + e.Err.Error()
}

func (e *ReadBodyError) Unwrap() error {
	return e.Err
}

// Get performs the request and returns the response body verbatim.
// Any HTTP response, whatever its status, counts as a success.
func (f *Fetcher) Get(ctx context.Context) (string, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(f.url)
	if err != nil {
		return "", fmt.Errorf("GET %s: %w", f.url, err)
	}
	rawBody := resp.RawBody()
	defer rawBody.Close()

	body, err := io.ReadAll(rawBody)
	if err != nil {
		return "", &ReadBodyError{Err: err}
	}

	logger.Log.Debugln(
		"network GET done",
		"url", f.url,
		"status", resp.StatusCode(),
		"size", len(body),
	)

	return string(body), nil
}

// Payload is Get that never fails: on error it returns a JSON object with an
// "error" key describing the failure.
func (f *Fetcher) Payload(ctx context.Context) string {
	body, err := f.Get(ctx)
	if err == nil {
		return body
	}

	logger.Log.Errorln("network GET failed", "url", f.url, "error", err)

	failure := models.FetchError{
		Error:   errTextRequestFailed,
		Details: err.Error(),
	}
	var readErr *ReadBodyError
	if errors.As(err, &readErr) {
		failure.Error = errTextReadBody
	}

	payload, err := json.Marshal(failure)
	if err != nil {
		return `{"error":"` + errTextRequestFailed + `"}`
	}

	return string(payload)
}
