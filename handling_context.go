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
	stderrors "errors"
	"fmt"
	"io"

	"github.com/michaelquigley/pfxlog"
	"github.com/pkg/errors"
)

// HandlingContext is the assembled set of resource package roots, feature types and binder instances an Engine is
// built from. It is read-only once BuildHandlingContext returns and is shared by every dispatch.
type HandlingContext struct {
	config           *Config
	resourcePackages []string
	features         []*Type
	binders          []Binder
}

// BuildHandlingContext resolves the plugins named by config against resolver. Lists are processed in order and the
// first failure aborts the build; no partially populated context is ever returned. runtime is registered ahead of
// all configured binders and may not be nil.
func BuildHandlingContext(config *Config, resolver ClassResolver, runtime Binder) (*HandlingContext, error) {
	if len(config.ResourcePackages) == 0 {
		return nil, configError(ConfigResources, "at least one resource package name must be specified")
	}
	if runtime == nil {
		return nil, errors.New("a runtime binder is required")
	}

	hc := &HandlingContext{
		config:           config,
		resourcePackages: append([]string(nil), config.ResourcePackages...),
		binders:          []Binder{runtime},
	}

	for _, name := range config.Features {
		featureType, err := resolve(resolver, name)
		if err != nil {
			return nil, err
		}
		hc.features = append(hc.features, featureType)
	}

	for _, name := range config.Binders {
		binderType, err := resolve(resolver, name)
		if err != nil {
			return nil, err
		}

		binder, err := instantiateBinder(binderType, name)
		if err != nil {
			return nil, err
		}
		hc.binders = append(hc.binders, binder)
	}

	pfxlog.Logger().Debugf("handling context built with resources %v, %d feature(s), %d binder(s)",
		hc.resourcePackages, len(hc.features), len(hc.binders))

	return hc, nil
}

func resolve(resolver ClassResolver, name string) (*Type, error) {
	t, err := resolver.Resolve(name)
	if err != nil {
		var pluginErr *PluginError
		if errors.As(err, &pluginErr) {
			return nil, pluginErr
		}
		return nil, &PluginError{Kind: ClassNotFound, Identifier: name, Err: err}
	}
	if t == nil {
		return nil, &PluginError{Kind: ClassNotFound, Identifier: name, Err: ErrClassNotFound}
	}
	return t, nil
}

func instantiateBinder(t *Type, name string) (Binder, error) {
	instance, err := t.Instantiate()
	if err != nil {
		kind := InstantiationFailed
		if errors.Is(err, ErrAccessDenied) {
			kind = AccessDenied
		}
		return nil, &PluginError{Kind: kind, Identifier: name, Err: err}
	}

	binder, ok := instance.(Binder)
	if !ok {
		return nil, &PluginError{
			Kind:       InstantiationFailed,
			Identifier: name,
			Err:        fmt.Errorf("type %T does not implement xengine.Binder", instance),
		}
	}

	return binder, nil
}

// Config returns the configuration the context was built from.
func (hc *HandlingContext) Config() *Config {
	return hc.config
}

// ResourcePackages returns the package roots to scan, in configuration order.
func (hc *HandlingContext) ResourcePackages() []string {
	return append([]string(nil), hc.resourcePackages...)
}

// Features returns the registered feature types. Instantiating them is the Engine's job.
func (hc *HandlingContext) Features() []*Type {
	return append([]*Type(nil), hc.features...)
}

// Binders returns the registered binder instances, the runtime binder first.
func (hc *HandlingContext) Binders() []Binder {
	return append([]Binder(nil), hc.binders...)
}

// Bindings applies every binder in order to a fresh Bindings.
func (hc *HandlingContext) Bindings() *Bindings {
	bindings := NewBindings()
	for _, binder := range hc.binders {
		binder.Bind(bindings)
	}
	return bindings
}

// Close releases binders that hold resources. Binders implementing io.Closer are closed in reverse order.
func (hc *HandlingContext) Close() error {
	var errs []error
	for i := len(hc.binders) - 1; i >= 0; i-- {
		if closer, ok := hc.binders[i].(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return stderrors.Join(errs...)
}
