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

package resource

import (
	"net/http"
	"slices"
	"sort"
	"strings"

	"github.com/michaelquigley/pfxlog"
	"github.com/openziti/xengine"
	"github.com/pkg/errors"
)

// Filter is the contract for feature types. A Filter may short circuit by not calling next.
type Filter interface {
	Filter(call *Call, next Handler) (*xengine.Response, error)
}

// Call is one matched request.
type Call struct {
	*xengine.Request
	Params   map[string]string
	Bindings *xengine.Bindings
	Resource *Resource
}

// Param returns a path parameter by name.
func (call *Call) Param(name string) string {
	return call.Params[name]
}

// Service returns a binding by name.
func (call *Call) Service(name string) (interface{}, bool) {
	return call.Bindings.Lookup(name)
}

type route struct {
	resource Resource
	template *template
}

// Engine dispatches Requests to resources of the HandlingContext's packages.
type Engine struct {
	routes   []*route
	filters  []Filter
	bindings *xengine.Bindings
	handler  Handler
}

var _ xengine.Engine = &Engine{}

// EngineFactory adapts NewEngine to xengine.EngineFactory.
func EngineFactory(hc *xengine.HandlingContext) (xengine.Engine, error) {
	engine, err := NewEngine(hc)
	if err != nil {
		return nil, err
	}
	return engine, nil
}

var _ xengine.EngineFactory = EngineFactory

// NewEngine collects the resources of every package named by hc, instantiates its feature types and applies its
// binders. Packages without registered resources are logged and skipped.
func NewEngine(hc *xengine.HandlingContext) (*Engine, error) {
	engine := &Engine{
		bindings: hc.Bindings(),
	}

	seen := map[string]string{}
	for _, pkg := range hc.ResourcePackages() {
		resources, ok := LookupPackage(pkg)
		if !ok {
			pfxlog.Logger().Warnf("resource package [%s] has no registered resources", pkg)
			continue
		}

		for _, r := range resources {
			t, err := compile(r.Path)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid resource in package [%s]", pkg)
			}

			key := strings.ToUpper(r.Method) + " " + r.Path
			if existing, ok := seen[key]; ok {
				return nil, errors.Errorf("resource [%s] in package [%s] already declared by package [%s]", key, pkg, existing)
			}
			seen[key] = pkg

			engine.routes = append(engine.routes, &route{resource: r, template: t})
		}
	}

	// literal segments win over parameters when both match
	sort.SliceStable(engine.routes, func(i, j int) bool {
		return engine.routes[i].template.literals() > engine.routes[j].template.literals()
	})

	for _, featureType := range hc.Features() {
		instance, err := featureType.Instantiate()
		if err != nil {
			return nil, errors.Wrapf(err, "could not instantiate feature [%s]", featureType.Name)
		}
		filter, ok := instance.(Filter)
		if !ok {
			return nil, errors.Errorf("feature [%s] of type %T is not a resource.Filter", featureType.Name, instance)
		}
		engine.filters = append(engine.filters, filter)
	}

	engine.handler = engine.chain(0)

	return engine, nil
}

// Handle matches the request to a resource and runs it through the filters.
func (engine *Engine) Handle(request *xengine.Request) (*xengine.Response, error) {
	r, params, allowed := engine.match(request.Method, request.URI.Path)
	if r == nil {
		if len(allowed) > 0 {
			response := Text(http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
			response.Header.Set("Allow", strings.Join(allowed, ", "))
			return response, nil
		}
		return Text(http.StatusNotFound, http.StatusText(http.StatusNotFound)), nil
	}

	call := &Call{
		Request:  request,
		Params:   params,
		Bindings: engine.bindings,
		Resource: r,
	}

	return engine.handler(call)
}

func (engine *Engine) chain(i int) Handler {
	if i == len(engine.filters) {
		return func(call *Call) (*xengine.Response, error) {
			return call.Resource.Handle(call)
		}
	}
	filter := engine.filters[i]
	next := engine.chain(i + 1)
	return func(call *Call) (*xengine.Response, error) {
		return filter.Filter(call, next)
	}
}

func (engine *Engine) match(method, path string) (*Resource, map[string]string, []string) {
	var allowed []string
	for _, rt := range engine.routes {
		params, ok := rt.template.match(path)
		if !ok {
			continue
		}
		if rt.resource.Method == "" || strings.EqualFold(rt.resource.Method, method) {
			resource := rt.resource
			return &resource, params, nil
		}
		if other := strings.ToUpper(rt.resource.Method); !slices.Contains(allowed, other) {
			allowed = append(allowed, other)
		}
	}
	return nil, nil, allowed
}

// Routes lists "METHOD /path" for every resource, for logging.
func (engine *Engine) Routes() []string {
	var result []string
	for _, rt := range engine.routes {
		method := rt.resource.Method
		if method == "" {
			method = "*"
		}
		result = append(result, strings.ToUpper(method)+" "+rt.template.raw)
	}
	return result
}
