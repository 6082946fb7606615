/*
	Copyright NetFoundry, Inc.

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
	"fmt"
	"sync"

	"github.com/michaelquigley/pfxlog"
	"github.com/pkg/errors"
)

// Constructor is a zero-argument constructor for a plugin type. It may return an error wrapping ErrAccessDenied
// when the type must not be instantiated by this process.
type Constructor func() (interface{}, error)

// Type is a plugin type that can be named in configuration. Features are handed to the Engine as a *Type and are
// instantiated by the Engine; binders are instantiated while the HandlingContext is built.
type Type struct {
	Name string
	// New is nil for types without a usable zero-argument constructor.
	New Constructor
}

// Instantiate calls the type's constructor, converting panics into errors.
func (t *Type) Instantiate() (instance interface{}, err error) {
	if t.New == nil {
		return nil, errors.Errorf("type [%s] has no zero-argument constructor", t.Name)
	}

	defer func() {
		if panicVal := recover(); panicVal != nil {
			instance = nil
			err = errors.Errorf("constructor for [%s] panicked: %v", t.Name, panicVal)
		}
	}()

	return t.New()
}

// ClassResolver resolves a plugin identifier to a Type.
type ClassResolver interface {
	Resolve(name string) (*Type, error)
}

// Registry describes a registry of name to Type registrations
type Registry interface {
	ClassResolver
	Add(t *Type) error
	Get(name string) *Type
}

// RegistryMap is a basic Registry implementation backed by a simple mapping of name (string) to Type instances
type RegistryMap struct {
	lock  sync.RWMutex
	types map[string]*Type
}

var _ Registry = &RegistryMap{}

// NewRegistryMap creates a new RegistryMap
func NewRegistryMap() *RegistryMap {
	return &RegistryMap{
		types: map[string]*Type{},
	}
}

// Add adds a type to the registry. Errors if a previous type with the same name is registered.
func (registry *RegistryMap) Add(t *Type) error {
	if t == nil || t.Name == "" {
		return errors.New("a plugin type must have a name")
	}

	pfxlog.Logger().Debugf("adding xengine plugin type: %v", t.Name)

	registry.lock.Lock()
	defer registry.lock.Unlock()

	if _, ok := registry.types[t.Name]; ok {
		return fmt.Errorf("plugin type [%s] already registered", t.Name)
	}

	registry.types[t.Name] = t

	return nil
}

// Get retrieves a type by name or nil if no type with that name is registered
func (registry *RegistryMap) Get(name string) *Type {
	registry.lock.RLock()
	defer registry.lock.RUnlock()
	return registry.types[name]
}

// Resolve retrieves a type by name, returning a ClassNotFound PluginError if it is not registered
func (registry *RegistryMap) Resolve(name string) (*Type, error) {
	if t := registry.Get(name); t != nil {
		return t, nil
	}
	return nil, &PluginError{Kind: ClassNotFound, Identifier: name, Err: ErrClassNotFound}
}

// DefaultRegistry is the process level table populated by plugin packages from their init functions.
var DefaultRegistry = NewRegistryMap()

// Register adds a type to DefaultRegistry.
func Register(name string, constructor Constructor) error {
	return DefaultRegistry.Add(&Type{Name: name, New: constructor})
}

// MustRegister adds a type to DefaultRegistry and panics on a duplicate name. Intended for init functions.
func MustRegister(name string, constructor Constructor) {
	if err := Register(name, constructor); err != nil {
		panic(err)
	}
}
