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

import "context"

type ContextKey string

const (
	RouteContextKey     = ContextKey("xengine.RouteEntry.ContextKey")
	ServerContextKey    = ContextKey("xengine.Server.ContextKey")
	RequestIdContextKey = ContextKey("xengine.RequestId.ContextKey")
)

// ServerContext is attached to every request accepted by a Server and provides access to the listener's
// configuration and bound address.
type ServerContext struct {
	Config  *Config
	Address string
}

// RouteFromRequestContext is a utility function to retrieve the RouteEntry that claimed a request during downstream
// http.Handler processing.
func RouteFromRequestContext(ctx context.Context) *RouteEntry {
	if val := ctx.Value(RouteContextKey); val != nil {
		if route, ok := val.(*RouteEntry); ok {
			return route
		}
	}
	return nil
}

// ServerContextFromRequestContext is a utility function to retrieve a *ServerContext reference from the http.Request
func ServerContextFromRequestContext(ctx context.Context) *ServerContext {
	if val := ctx.Value(ServerContextKey); val != nil {
		if serverContext, ok := val.(*ServerContext); ok {
			return serverContext
		}
	}
	return nil
}

// RequestIdFromContext returns the request id assigned by the Server, or "".
func RequestIdFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIdContextKey).(string); ok {
		return id
	}
	return ""
}
