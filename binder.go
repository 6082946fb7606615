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
	"sort"

	"github.com/michaelquigley/pfxlog"
	"github.com/sirupsen/logrus"
)

const (
	ConfigService = "xengine.config"
	LoggerService = "xengine.logger"
)

// Binder is a dependency wiring unit. Engines apply every binder of a HandlingContext, in order, to one Bindings
// before serving requests.
type Binder interface {
	Bind(bindings *Bindings)
}

// Bindings is a name to service table filled by Binders. It is written while an Engine is constructed and only
// read afterwards.
type Bindings struct {
	services map[string]interface{}
}

func NewBindings() *Bindings {
	return &Bindings{services: map[string]interface{}{}}
}

// Provide binds service under name, replacing any earlier binding.
func (bindings *Bindings) Provide(name string, service interface{}) {
	if _, ok := bindings.services[name]; ok {
		pfxlog.Logger().Debugf("binding [%s] replaced", name)
	}
	bindings.services[name] = service
}

func (bindings *Bindings) Lookup(name string) (interface{}, bool) {
	service, ok := bindings.services[name]
	return service, ok
}

func (bindings *Bindings) Names() []string {
	names := make([]string, 0, len(bindings.services))
	for name := range bindings.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LookupAs retrieves a binding and asserts its type.
func LookupAs[T any](bindings *Bindings, name string) (T, bool) {
	var zero T
	service, ok := bindings.Lookup(name)
	if !ok {
		return zero, false
	}
	typed, ok := service.(T)
	return typed, ok
}

// RuntimeBinder exposes runtime services to the resource layer. One is registered with every HandlingContext.
type RuntimeBinder struct {
	Config *Config
	Logger *logrus.Entry
}

var _ Binder = &RuntimeBinder{}

func NewRuntimeBinder(config *Config) *RuntimeBinder {
	return &RuntimeBinder{
		Config: config,
		Logger: pfxlog.Logger().WithField("basePath", config.BasePath),
	}
}

func (binder *RuntimeBinder) Bind(bindings *Bindings) {
	bindings.Provide(ConfigService, binder.Config)
	bindings.Provide(LoggerService, binder.Logger)
}
