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
	"context"
	"io"
	"log"
	"net"
	"net/http"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/michaelquigley/pfxlog"
	"github.com/openziti/foundation/v2/debugz"
	"github.com/openziti/xengine/middleware"
	"github.com/pkg/errors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

const (
	RequestIdHeader = "X-Request-Id"
)

// Server owns the http.Server, its handler chain and the BindPoint it listens on.
type Server struct {
	DefaultHttpHandlerProviderImpl
	OnHandlerPanic func(writer http.ResponseWriter, request *http.Request, panicVal interface{})

	httpServer *http.Server
	router     *Router
	bindPoint  BindPoint
	config     *Config
	metrics    *Metrics
	logWriter  *io.PipeWriter
	address    atomic.Value
}

// NewServer wires router behind the standard middleware. Nothing is bound until Listen is called.
func NewServer(config *Config, router *Router, bindPoint BindPoint, metrics *Metrics) *Server {
	logWriter := pfxlog.Logger().Writer()

	server := &Server{
		router:    router,
		bindPoint: bindPoint,
		config:    config,
		metrics:   metrics,
		logWriter: logWriter,
	}
	server.address.Store(bindPoint.Address())

	router.SetParent(server)

	server.httpServer = &http.Server{
		WriteTimeout: config.Options.WriteTimeout,
		ReadTimeout:  config.Options.ReadTimeout,
		IdleTimeout:  config.Options.IdleTimeout,
		Handler:      server.wrapHandler(router),
		ErrorLog:     log.New(logWriter, "", 0),
		BaseContext:  server.newBaseContext,
	}

	return server
}

func (server *Server) newBaseContext(listener net.Listener) context.Context {
	serverContext := &ServerContext{
		Config:  server.config,
		Address: listener.Addr().String(),
	}
	return context.WithValue(context.Background(), ServerContextKey, serverContext)
}

func (server *Server) wrapHandler(router *Router) http.Handler {
	//innermost/bottom -> outermost/top
	var handler http.Handler = router
	if server.config.Compression {
		handler = middleware.NewCompressionHandler(handler)
	}
	handler = server.wrapRequestId(handler)
	handler = server.wrapPanicRecovery(handler)
	if server.metrics != nil {
		handler = server.metrics.wrapHandler(router, handler)
	}
	if server.config.H2C && !server.bindPoint.TLS() {
		handler = h2c.NewHandler(handler, &http2.Server{IdleTimeout: server.config.Options.IdleTimeout})
	}
	return handler
}

// wrapPanicRecovery wraps a http.Handler with another http.Handler that provides recovery. Unless OnHandlerPanic
// takes over, a 500 is sent so the connection still sees a complete response.
func (server *Server) wrapPanicRecovery(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		defer func() {
			if panicVal := recover(); panicVal != nil {
				if panicVal == http.ErrAbortHandler {
					panic(panicVal)
				}
				if server.OnHandlerPanic != nil {
					server.OnHandlerPanic(writer, request, panicVal)
					return
				}
				pfxlog.Logger().Errorf("panic caught by server handler: %v\n%v", panicVal, debugz.GenerateLocalStack())
				http.Error(writer, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
		}()

		handler.ServeHTTP(writer, request)
	})
}

// wrapRequestId assigns a request id when the client did not send one and echoes it on the response.
func (server *Server) wrapRequestId(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		requestId := request.Header.Get(RequestIdHeader)
		if requestId == "" {
			requestId = uuid.NewString()
		}
		writer.Header().Set(RequestIdHeader, requestId)

		ctx := context.WithValue(request.Context(), RequestIdContextKey, requestId)
		handler.ServeHTTP(writer, request.WithContext(ctx))
	})
}

// Handler returns the complete handler chain, useful for serving on a listener not created by Listen.
func (server *Server) Handler() http.Handler {
	return server.httpServer.Handler
}

// Listen binds the BindPoint. Failures are returned as *BindError.
func (server *Server) Listen(ctx context.Context) (net.Listener, error) {
	listener, err := server.bindPoint.Listen(ctx)
	if err != nil {
		return nil, &BindError{Address: server.bindPoint.Address(), Err: err}
	}
	server.address.Store(listener.Addr().String())
	return listener, nil
}

// Serve accepts connections on listener until Shutdown is called.
func (server *Server) Serve(listener net.Listener) error {
	pfxlog.Logger().Infof("http server listening for %s://%s%s", server.scheme(), server.Address(), server.config.BasePath)

	if err := server.httpServer.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrapf(err, "error serving on %s", server.Address())
	}
	return nil
}

// Address is the bound address once Listen succeeded, the configured one before.
func (server *Server) Address() string {
	return server.address.Load().(string)
}

func (server *Server) scheme() string {
	if server.bindPoint.TLS() {
		return "https"
	}
	return "http"
}

// Shutdown stops the server gracefully, waiting for in-flight requests until ctx is done.
func (server *Server) Shutdown(ctx context.Context) error {
	defer func() {
		server.bindPoint.Close()
		_ = server.logWriter.Close()
	}()
	return server.httpServer.Shutdown(ctx)
}
