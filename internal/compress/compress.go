// Package compress provides gzip middleware for the HTTP host: transparent
// decoding of gzip request bodies and gzip encoding of responses for clients
// that accept it.
package compress

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"
)

var writers = sync.Pool{
	New: func() interface{} {
		w, _ := gzip.NewWriterLevel(nil, gzip.BestSpeed)
		return w
	},
}

// gzipReadCloser decompresses a request body and closes both layers.
type gzipReadCloser struct {
	body io.ReadCloser
	zr   *gzip.Reader
}

func newGzipReadCloser(body io.ReadCloser) (*gzipReadCloser, error) {
	zr, err := gzip.NewReader(body)
	if err != nil {
		return nil, err
	}

	return &gzipReadCloser{body: body, zr: zr}, nil
}

func (g *gzipReadCloser) Read(p []byte) (int, error) {
	return g.zr.Read(p)
}

func (g *gzipReadCloser) Close() error {
	if err := g.zr.Close(); err != nil {
		_ = g.body.Close()
		return err
	}
	return g.body.Close()
}

// gzipResponseWriter compresses everything written through it.
// Only successful responses with a body are compressed.
type gzipResponseWriter struct {
	http.ResponseWriter
	zw          *gzip.Writer
	wroteHeader bool
	compressing bool
}

func (g *gzipResponseWriter) WriteHeader(statusCode int) {
	if g.wroteHeader {
		return
	}
	g.wroteHeader = true
	g.compressing = statusCode < http.StatusMultipleChoices && statusCode != http.StatusNoContent
	if g.compressing {
		g.Header().Set("Content-Encoding", "gzip")
		g.Header().Del("Content-Length")
	}
	g.ResponseWriter.WriteHeader(statusCode)
}

func (g *gzipResponseWriter) Write(p []byte) (int, error) {
	if !g.wroteHeader {
		g.WriteHeader(http.StatusOK)
	}
	if !g.compressing {
		return g.ResponseWriter.Write(p)
	}
	return g.zw.Write(p)
}

// finish flushes the gzip stream and returns the writer to the pool.
func (g *gzipResponseWriter) finish() error {
	defer writers.Put(g.zw)
	if !g.compressing {
		g.zw.Reset(io.Discard)
		return nil
	}
	return g.zw.Close()
}

// DecodeRequest replaces a gzip-encoded request body with a decompressing reader.
// A body that is not valid gzip is rejected with 400 Bad Request.
func DecodeRequest(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Content-Encoding"), "gzip") {
			h.ServeHTTP(w, r)
			return
		}

		body, err := newGzipReadCloser(r.Body)
		if err != nil {
			http.Error(w, "malformed gzip body", http.StatusBadRequest)
			return
		}
		defer body.Close()

		r.Body = body
		r.Header.Del("Content-Encoding")
		h.ServeHTTP(w, r)
	})
}

// EncodeResponse gzips the response when the request's Accept-Encoding allows it.
func EncodeResponse(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Accept-Encoding")
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			h.ServeHTTP(w, r)
			return
		}

		zw := writers.Get().(*gzip.Writer)
		zw.Reset(w)
		gw := &gzipResponseWriter{ResponseWriter: w, zw: zw}
		defer func() {
			_ = gw.finish()
		}()

		h.ServeHTTP(gw, r)
	})
}
