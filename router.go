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
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// RouteEntry is a single path prefix rule and the handler it forwards claimed requests to. Any HTTP method matches.
type RouteEntry struct {
	PathPrefix string
	Handler    http.Handler
}

// Claims reports whether path is under the entry's prefix. PathPrefix is always normalized, so "/svc/" claims
// "/svc/" and "/svc/a/b" but not "/svc" or "/svcx".
func (entry *RouteEntry) Claims(path string) bool {
	return strings.HasPrefix(path, entry.PathPrefix)
}

// Router routes requests to its single RouteEntry by path prefix. Requests the entry does not claim are passed to
// the default handler so other handlers in the same process can observe them. Without one an empty 404 is sent.
type Router struct {
	DefaultHttpHandlerProviderImpl
	route *RouteEntry
}

var _ http.Handler = &Router{}

// NewRouter creates a Router with one entry. prefix is normalized.
func NewRouter(prefix string, handler http.Handler) (*Router, error) {
	if handler == nil {
		return nil, errors.New("a route handler is required")
	}

	return &Router{
		route: &RouteEntry{
			PathPrefix: NormalizeBasePath(prefix),
			Handler:    handler,
		},
	}, nil
}

// Route returns the registered entry.
func (router *Router) Route() *RouteEntry {
	return router.route
}

// Claims reports whether a request path would be forwarded to the route.
func (router *Router) Claims(path string) bool {
	return router.route.Claims(path)
}

func (router *Router) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	if router.route.Claims(request.URL.Path) {
		//store the route on the request context, useful for logging by downstream http handlers
		ctx := context.WithValue(request.Context(), RouteContextKey, router.route)
		router.route.Handler.ServeHTTP(writer, request.WithContext(ctx))
		return
	}

	if defaultHttpHandler := router.GetDefaultHttpHandler(); defaultHttpHandler != nil {
		defaultHttpHandler.ServeHTTP(writer, request)
		return
	}

	handler404(writer, request)
}

// DefaultHttpHandlerProvider lets the Controller, Server and Router share the handler used for unclaimed requests.
// Lookups walk up the parent chain: Router > Server > Controller.
type DefaultHttpHandlerProvider interface {
	GetDefaultHttpHandler() http.Handler
	SetDefaultHttpHandler(handler http.Handler)
	SetParent(parent DefaultHttpHandlerProvider)
}

type DefaultHttpHandlerProviderImpl struct {
	Parent      DefaultHttpHandlerProvider
	HttpHandler http.Handler
}

var _ DefaultHttpHandlerProvider = &DefaultHttpHandlerProviderImpl{}

func handler404(rw http.ResponseWriter, _ *http.Request) {
	rw.WriteHeader(http.StatusNotFound)
	_, _ = rw.Write([]byte{})
}

func (d *DefaultHttpHandlerProviderImpl) GetDefaultHttpHandler() http.Handler {
	if d.HttpHandler == nil && d.Parent != nil {
		return d.Parent.GetDefaultHttpHandler()
	}

	return d.HttpHandler
}

func (d *DefaultHttpHandlerProviderImpl) SetDefaultHttpHandler(handler http.Handler) {
	d.HttpHandler = handler
}

func (d *DefaultHttpHandlerProviderImpl) SetParent(parent DefaultHttpHandlerProvider) {
	d.Parent = parent
}
