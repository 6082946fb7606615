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
	"fmt"
	"sync"

	"github.com/michaelquigley/pfxlog"
	"github.com/openziti/xengine"
)

// Handler produces the response for one matched Call.
type Handler func(call *Call) (*xengine.Response, error)

// Resource is one endpoint. An empty Method matches every method.
type Resource struct {
	Method string
	Path   string
	Handle Handler
}

var packages = struct {
	sync.RWMutex
	resources map[string][]Resource
}{
	resources: map[string][]Resource{},
}

// RegisterPackage adds resources under a package name. Registering the same name twice appends.
func RegisterPackage(name string, resources ...Resource) error {
	for i, r := range resources {
		if r.Handle == nil {
			return fmt.Errorf("resource at index [%d] of package [%s] has no handler", i, name)
		}
		if _, err := compile(r.Path); err != nil {
			return fmt.Errorf("resource at index [%d] of package [%s]: %v", i, name, err)
		}
	}

	packages.Lock()
	defer packages.Unlock()

	pfxlog.Logger().Debugf("registering %d resource(s) for package [%s]", len(resources), name)
	packages.resources[name] = append(packages.resources[name], resources...)
	return nil
}

// MustRegisterPackage is RegisterPackage for init functions.
func MustRegisterPackage(name string, resources ...Resource) {
	if err := RegisterPackage(name, resources...); err != nil {
		panic(err)
	}
}

// LookupPackage returns the resources registered under name.
func LookupPackage(name string) ([]Resource, bool) {
	packages.RLock()
	defer packages.RUnlock()
	resources, ok := packages.resources[name]
	return append([]Resource(nil), resources...), ok
}
