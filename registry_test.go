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
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func Test_RegistryMap(t *testing.T) {

	t.Run("an added type resolves by name", func(t *testing.T) {
		req := require.New(t)
		registry := NewRegistryMap()
		added := &Type{Name: "a", New: func() (interface{}, error) { return "a", nil }}

		req.NoError(registry.Add(added))

		resolved, err := registry.Resolve("a")
		req.NoError(err)
		req.Same(added, resolved)
		req.Same(added, registry.Get("a"))
	})

	t.Run("a duplicate name is rejected", func(t *testing.T) {
		req := require.New(t)
		registry := NewRegistryMap()

		req.NoError(registry.Add(&Type{Name: "a"}))
		req.Error(registry.Add(&Type{Name: "a"}))
	})

	t.Run("a type without a name is rejected", func(t *testing.T) {
		req := require.New(t)
		registry := NewRegistryMap()

		req.Error(registry.Add(&Type{}))
		req.Error(registry.Add(nil))
	})

	t.Run("an unknown name resolves to a ClassNotFound PluginError", func(t *testing.T) {
		req := require.New(t)
		registry := NewRegistryMap()

		resolved, err := registry.Resolve("missing")

		req.Nil(resolved)
		req.Nil(registry.Get("missing"))
		var pluginErr *PluginError
		req.True(errors.As(err, &pluginErr))
		req.Equal(ClassNotFound, pluginErr.Kind)
		req.Equal("missing", pluginErr.Identifier)
		req.True(errors.Is(err, ErrClassNotFound))
	})
}

func Test_TypeInstantiate(t *testing.T) {

	t.Run("the constructor result is returned", func(t *testing.T) {
		req := require.New(t)

		instance, err := (&Type{Name: "a", New: func() (interface{}, error) { return 42, nil }}).Instantiate()

		req.NoError(err)
		req.Equal(42, instance)
	})

	t.Run("a type without a constructor cannot be instantiated", func(t *testing.T) {
		instance, err := (&Type{Name: "a"}).Instantiate()

		require.Nil(t, instance)
		require.Error(t, err)
	})

	t.Run("a panicking constructor becomes an error", func(t *testing.T) {
		req := require.New(t)

		instance, err := (&Type{Name: "a", New: func() (interface{}, error) { panic("boom") }}).Instantiate()

		req.Nil(instance)
		req.Error(err)
		req.Contains(err.Error(), "boom")
	})
}
