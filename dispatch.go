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
	"bufio"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/michaelquigley/pfxlog"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/openziti/xengine"

// Request is the protocol neutral form of an inbound request handed to an Engine. URI is relative to BaseURI and
// always starts with "/".
type Request struct {
	Context    context.Context
	Method     string
	BaseURI    *url.URL
	URI        *url.URL
	Header     http.Header
	Body       io.Reader
	RemoteAddr string
	RequestId  string
}

// Response is what an Engine produces for a Request. A zero Status is sent as 200. Body may be nil; if it
// implements io.Closer it is closed once written.
type Response struct {
	Status int
	Header http.Header
	Body   io.Reader
}

// Engine is the external request processing engine. Handle is called concurrently.
type Engine interface {
	Handle(request *Request) (*Response, error)
}

// EngineFunc adapts a function to Engine.
type EngineFunc func(request *Request) (*Response, error)

func (f EngineFunc) Handle(request *Request) (*Response, error) {
	return f(request)
}

// EngineFactory builds an Engine from a HandlingContext once per start.
type EngineFactory func(hc *HandlingContext) (Engine, error)

// Dispatcher translates claimed http.Requests into Requests, invokes the Engine and writes the Response back.
type Dispatcher struct {
	basePath          string
	engine            Engine
	receiveBufferSize int
	maxBodySize       int64
	tracer            trace.Tracer
}

var _ http.Handler = &Dispatcher{}

func NewDispatcher(config *Config, engine Engine) *Dispatcher {
	return &Dispatcher{
		basePath:          config.BasePath,
		engine:            engine,
		receiveBufferSize: config.ReceiveBufferSize,
		maxBodySize:       config.MaxBodySize,
		tracer:            otel.Tracer(tracerName),
	}
}

func (dispatcher *Dispatcher) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	relative := dispatcher.RelativeURI(request.URL)

	ctx, span := dispatcher.tracer.Start(request.Context(), "xengine.dispatch",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.request.method", request.Method),
			attribute.String("url.path", request.URL.Path),
			attribute.String("xengine.relative_path", relative.Path),
		),
	)
	defer span.End()

	engineRequest := &Request{
		Context:    ctx,
		Method:     request.Method,
		BaseURI:    dispatcher.baseURI(request),
		URI:        relative,
		Header:     request.Header,
		Body:       dispatcher.body(writer, request),
		RemoteAddr: request.RemoteAddr,
		RequestId:  RequestIdFromContext(ctx),
	}

	response, err := dispatcher.engine.Handle(engineRequest)
	if err == nil && response == nil {
		err = errors.New("engine returned no response")
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		pfxlog.Logger().WithField("requestId", engineRequest.RequestId).
			Errorf("engine failed handling %s %s: %v", request.Method, request.URL.Path, err)
		span.SetAttributes(attribute.Int("http.response.status_code", http.StatusInternalServerError))
		http.Error(writer, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	status := response.Status
	if status == 0 {
		status = http.StatusOK
	}
	span.SetAttributes(attribute.Int("http.response.status_code", status))

	dispatcher.write(writer, status, response)
}

func (dispatcher *Dispatcher) write(writer http.ResponseWriter, status int, response *Response) {
	if closer, ok := response.Body.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	header := writer.Header()
	for name, values := range response.Header {
		header[name] = append([]string(nil), values...)
	}

	writer.WriteHeader(status)

	if response.Body == nil {
		return
	}

	if _, err := io.Copy(writer, response.Body); err != nil {
		pfxlog.Logger().Debugf("error writing response body: %v", err)
	}
}

func (dispatcher *Dispatcher) body(writer http.ResponseWriter, request *http.Request) io.Reader {
	var body io.ReadCloser = request.Body
	if body == nil {
		body = http.NoBody
	}

	if dispatcher.maxBodySize > 0 {
		body = http.MaxBytesReader(writer, body, dispatcher.maxBodySize)
	}

	// advisory only, the engine sees the same bytes in the same order either way
	if dispatcher.receiveBufferSize > 0 {
		return bufio.NewReaderSize(body, dispatcher.receiveBufferSize)
	}

	return body
}

// RelativeURI strips the base path from u, leaving a path that starts with "/". The query is kept. Paths outside
// the base path are returned unchanged.
func (dispatcher *Dispatcher) RelativeURI(u *url.URL) *url.URL {
	relative := &url.URL{
		Path:     u.Path,
		RawPath:  u.RawPath,
		RawQuery: u.RawQuery,
		Fragment: u.Fragment,
	}

	if strings.HasPrefix(u.Path, dispatcher.basePath) {
		relative.Path = "/" + strings.TrimPrefix(u.Path, dispatcher.basePath)
	}

	if u.RawPath != "" && strings.HasPrefix(u.RawPath, dispatcher.basePath) {
		relative.RawPath = "/" + strings.TrimPrefix(u.RawPath, dispatcher.basePath)
	} else {
		relative.RawPath = ""
	}

	return relative
}

func (dispatcher *Dispatcher) baseURI(request *http.Request) *url.URL {
	scheme := "http"
	if request.TLS != nil {
		scheme = "https"
	}
	return &url.URL{
		Scheme: scheme,
		Host:   request.Host,
		Path:   dispatcher.basePath,
	}
}
