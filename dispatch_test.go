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

package xengine

import (
	"bytes"
	"crypto/rand"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type recordingEngine struct {
	requests []*Request
	bodies   [][]byte
	response *Response
	err      error
}

func (engine *recordingEngine) Handle(request *Request) (*Response, error) {
	body, err := io.ReadAll(request.Body)
	if err != nil {
		return nil, err
	}
	engine.requests = append(engine.requests, request)
	engine.bodies = append(engine.bodies, body)
	return engine.response, engine.err
}

func Test_Dispatcher(t *testing.T) {

	t.Run("the engine sees the URI relative to the base path", func(t *testing.T) {
		req := require.New(t)
		engine := &recordingEngine{response: &Response{Status: http.StatusOK}}
		dispatcher := NewDispatcher(testConfig("a"), engine)

		recorder := httptest.NewRecorder()
		dispatcher.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "http://example.com/svc/items?limit=5", nil))

		req.Equal(http.StatusOK, recorder.Code)
		req.Len(engine.requests, 1)
		request := engine.requests[0]
		req.Equal(http.MethodGet, request.Method)
		req.Equal("/items", request.URI.Path)
		req.Equal("limit=5", request.URI.RawQuery)
		req.Equal("http://example.com/svc/", request.BaseURI.String())
	})

	t.Run("the base path itself maps to the root URI", func(t *testing.T) {
		req := require.New(t)
		dispatcher := NewDispatcher(testConfig("a"), EngineFunc(func(*Request) (*Response, error) { return &Response{}, nil }))

		relative := dispatcher.RelativeURI(&url.URL{Path: "/svc/"})

		req.Equal("/", relative.Path)
	})

	t.Run("the request body reaches the engine unchanged", func(t *testing.T) {
		req := require.New(t)
		payload := make([]byte, 256*1024)
		_, err := rand.Read(payload)
		req.NoError(err)

		for _, bufferSize := range []int{0, 1, 4096, 1 << 20} {
			config := testConfig("a")
			config.ReceiveBufferSize = bufferSize
			engine := &recordingEngine{response: &Response{}}
			dispatcher := NewDispatcher(config, engine)

			recorder := httptest.NewRecorder()
			dispatcher.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/svc/upload", bytes.NewReader(payload)))

			req.Equal(http.StatusOK, recorder.Code, "buffer size %d", bufferSize)
			req.Equal(payload, engine.bodies[0], "buffer size %d", bufferSize)
		}
	})

	t.Run("a body over the configured maximum cannot be read", func(t *testing.T) {
		req := require.New(t)
		config := testConfig("a")
		config.MaxBodySize = 4
		engine := &recordingEngine{response: &Response{}}
		dispatcher := NewDispatcher(config, engine)

		recorder := httptest.NewRecorder()
		dispatcher.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/svc/upload", strings.NewReader("too large")))

		req.Equal(http.StatusInternalServerError, recorder.Code)
		req.Empty(engine.requests)
	})

	t.Run("the engine response is written back", func(t *testing.T) {
		req := require.New(t)
		header := http.Header{}
		header.Set("Content-Type", "text/plain")
		engine := &recordingEngine{response: &Response{
			Status: http.StatusCreated,
			Header: header,
			Body:   io.NopCloser(strings.NewReader("created")),
		}}
		dispatcher := NewDispatcher(testConfig("a"), engine)

		recorder := httptest.NewRecorder()
		dispatcher.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/svc/items", nil))

		req.Equal(http.StatusCreated, recorder.Code)
		req.Equal("text/plain", recorder.Header().Get("Content-Type"))
		req.Equal("created", recorder.Body.String())
	})

	t.Run("a zero status is sent as 200", func(t *testing.T) {
		engine := &recordingEngine{response: &Response{Body: strings.NewReader("ok")}}
		recorder := httptest.NewRecorder()

		NewDispatcher(testConfig("a"), engine).ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/svc/", nil))

		require.Equal(t, http.StatusOK, recorder.Code)
		require.Equal(t, "ok", recorder.Body.String())
	})

	t.Run("an engine error is a 500", func(t *testing.T) {
		engine := &recordingEngine{err: errors.New("engine broke")}
		recorder := httptest.NewRecorder()

		NewDispatcher(testConfig("a"), engine).ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/svc/x", nil))

		require.Equal(t, http.StatusInternalServerError, recorder.Code)
		require.NotContains(t, recorder.Body.String(), "engine broke")
	})

	t.Run("a missing response is a 500", func(t *testing.T) {
		engine := &recordingEngine{}
		recorder := httptest.NewRecorder()

		NewDispatcher(testConfig("a"), engine).ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/svc/x", nil))

		require.Equal(t, http.StatusInternalServerError, recorder.Code)
	})

	t.Run("the request id on the context is passed to the engine", func(t *testing.T) {
		req := require.New(t)
		engine := &recordingEngine{response: &Response{}}
		server := &Server{}
		dispatcher := NewDispatcher(testConfig("a"), engine)

		recorder := httptest.NewRecorder()
		request := httptest.NewRequest(http.MethodGet, "/svc/x", nil)
		request.Header.Set(RequestIdHeader, "req-1")
		server.wrapRequestId(dispatcher).ServeHTTP(recorder, request)

		req.Equal("req-1", engine.requests[0].RequestId)
		req.Equal("req-1", recorder.Header().Get(RequestIdHeader))
	})
}

func Test_DispatcherTracing(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	newDispatcher := func(engine Engine) *Dispatcher {
		dispatcher := NewDispatcher(testConfig("a"), engine)
		dispatcher.tracer = provider.Tracer(tracerName)
		return dispatcher
	}

	t.Run("a dispatch records a server span", func(t *testing.T) {
		req := require.New(t)
		dispatcher := newDispatcher(&recordingEngine{response: &Response{Status: http.StatusAccepted}})

		dispatcher.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPut, "/svc/items/1", nil))

		spans := recorder.Ended()
		req.NotEmpty(spans)
		span := spans[len(spans)-1]
		req.Equal("xengine.dispatch", span.Name())

		attrs := map[string]string{}
		for _, kv := range span.Attributes() {
			attrs[string(kv.Key)] = kv.Value.Emit()
		}
		req.Equal(http.MethodPut, attrs["http.request.method"])
		req.Equal("/items/1", attrs["xengine.relative_path"])
		req.Equal("202", attrs["http.response.status_code"])
	})

	t.Run("an engine failure marks the span as an error", func(t *testing.T) {
		req := require.New(t)
		dispatcher := newDispatcher(&recordingEngine{err: errors.New("boom")})

		dispatcher.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/svc/x", nil))

		spans := recorder.Ended()
		span := spans[len(spans)-1]
		req.Equal(codes.Error, span.Status().Code)
		req.NotEmpty(span.Events())
	})
}
