/*
	Copyright NetFoundry Inc.

	Licensed under the Apache License, Version 2.0 (the "License");
	you may not use this file except in compliance with the License.
	You may obtain a copy of the License at

	https://www.apache.org/licenses/LICENSE-2.0

	Unless required by applicable law or agreed to in writing, software
	distributed under the License is distributed on an "AS IS" BASIS,
	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
	See the License for the specific language governing permissions and
	limitations under the License.
*/

// Package middleware holds http.Handler wrappers shared by xengine servers.
package middleware

import (
	"io"
	"net/http"

	"github.com/andybalholm/brotli"
	"github.com/michaelquigley/pfxlog"
)

// NewCompressionHandler compresses responses with brotli or gzip when the client accepts either. The encoding is
// negotiated by brotli.HTTPCompressor when the first byte or the status is written.
func NewCompressionHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.Header.Get("Accept-Encoding") == "" || request.Method == http.MethodHead {
			next.ServeHTTP(writer, request)
			return
		}

		compressingWriter := &compressionResponseWriter{
			ResponseWriter: writer,
			request:        request,
		}
		defer compressingWriter.Close()

		next.ServeHTTP(compressingWriter, request)
	})
}

type compressionResponseWriter struct {
	http.ResponseWriter
	request     *http.Request
	compressor  io.WriteCloser
	wroteHeader bool
}

func (w *compressionResponseWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true

	if bodyAllowed(status) && w.Header().Get("Content-Encoding") == "" {
		w.Header().Del("Content-Length")
		w.compressor = brotli.HTTPCompressor(w.ResponseWriter, w.request)
	}

	w.ResponseWriter.WriteHeader(status)
}

func (w *compressionResponseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	if w.compressor == nil {
		return w.ResponseWriter.Write(b)
	}
	return w.compressor.Write(b)
}

// Flush pushes buffered compressed output to the client.
func (w *compressionResponseWriter) Flush() {
	if flusher, ok := w.compressor.(interface{ Flush() error }); ok {
		if err := flusher.Flush(); err != nil {
			pfxlog.Logger().Debugf("error flushing compressed response: %v", err)
		}
	}
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (w *compressionResponseWriter) Close() {
	if w.compressor == nil {
		return
	}
	if err := w.compressor.Close(); err != nil {
		pfxlog.Logger().Debugf("error closing compressed response: %v", err)
	}
}

func (w *compressionResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func bodyAllowed(status int) bool {
	switch {
	case status >= 100 && status <= 199:
		return false
	case status == http.StatusNoContent, status == http.StatusNotModified:
		return false
	}
	return true
}
