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
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func Test_ParseConfig(t *testing.T) {

	t.Run("a minimal document takes every default", func(t *testing.T) {
		req := require.New(t)

		config, err := ParseConfig(map[string]interface{}{
			ConfigResources: []interface{}{"com.example.api"},
		})

		req.NoError(err)
		req.Equal(DefaultHost, config.Host)
		req.Equal(DefaultPort, config.Port)
		req.Equal(DefaultBasePath, config.BasePath)
		req.Equal([]string{"com.example.api"}, config.ResourcePackages)
		req.Empty(config.Features)
		req.Empty(config.Binders)
		req.Zero(config.ReceiveBufferSize)
		req.Zero(config.MaxBodySize)
		req.True(config.Compression)
		req.False(config.H2C)
		req.Nil(config.Identity)
		req.Equal(DefaultHttpReadTimeout, config.Options.ReadTimeout)
		req.Equal(DefaultHttpWriteTimeout, config.Options.WriteTimeout)
		req.Equal(DefaultHttpIdleTimeout, config.Options.IdleTimeout)
		req.Equal(DefaultShutdownTimeout, config.Options.ShutdownTimeout)
		req.Equal("0.0.0.0:80", config.Address())
	})

	t.Run("every key is read", func(t *testing.T) {
		req := require.New(t)

		config, err := ParseConfig(map[string]interface{}{
			ConfigHost:              "127.0.0.1",
			ConfigPort:              8080,
			ConfigBasePath:          "svc",
			ConfigResources:         []string{"a", "b"},
			ConfigFeatures:          []interface{}{"f1"},
			ConfigBinders:           []interface{}{"b1", "b2"},
			ConfigReceiveBufferSize: 65536,
			ConfigMaxBodySize:       int64(1024),
			ConfigCompression:       false,
			ConfigH2C:               true,
			ConfigOptions: map[string]interface{}{
				"read_timeout":     "1s",
				"write_timeout":    "2s",
				"idle_timeout":     "3s",
				"shutdown_timeout": "4s",
			},
		})

		req.NoError(err)
		req.Equal("127.0.0.1", config.Host)
		req.Equal(8080, config.Port)
		req.Equal("/svc/", config.BasePath)
		req.Equal([]string{"a", "b"}, config.ResourcePackages)
		req.Equal([]string{"f1"}, config.Features)
		req.Equal([]string{"b1", "b2"}, config.Binders)
		req.Equal(65536, config.ReceiveBufferSize)
		req.Equal(int64(1024), config.MaxBodySize)
		req.False(config.Compression)
		req.True(config.H2C)
		req.Equal(time.Second, config.Options.ReadTimeout)
		req.Equal(2*time.Second, config.Options.WriteTimeout)
		req.Equal(3*time.Second, config.Options.IdleTimeout)
		req.Equal(4*time.Second, config.Options.ShutdownTimeout)
		req.Equal("127.0.0.1:8080", config.Address())
	})

	t.Run("a missing resources key is a configuration error", func(t *testing.T) {
		req := require.New(t)

		config, err := ParseConfig(map[string]interface{}{
			ConfigPort: 8080,
		})

		req.Nil(config)
		var configErr *ConfigurationError
		req.True(errors.As(err, &configErr))
		req.Equal(ConfigResources, configErr.Key)
	})

	t.Run("an empty resources list is a configuration error", func(t *testing.T) {
		req := require.New(t)

		config, err := ParseConfig(map[string]interface{}{
			ConfigResources: []interface{}{},
		})

		req.Nil(config)
		var configErr *ConfigurationError
		req.True(errors.As(err, &configErr))
		req.Equal(ConfigResources, configErr.Key)
	})

	t.Run("empty resources is reported before other invalid keys", func(t *testing.T) {
		req := require.New(t)

		_, err := ParseConfig(map[string]interface{}{
			ConfigPort:      "not a port",
			ConfigResources: []interface{}{},
		})

		var configErr *ConfigurationError
		req.True(errors.As(err, &configErr))
		req.Equal(ConfigResources, configErr.Key)
	})

	t.Run("a base path with and without a trailing slash normalizes the same", func(t *testing.T) {
		req := require.New(t)

		withoutSlash, err := ParseConfig(map[string]interface{}{ConfigBasePath: "/api", ConfigResources: []string{"a"}})
		req.NoError(err)
		withSlash, err := ParseConfig(map[string]interface{}{ConfigBasePath: "/api/", ConfigResources: []string{"a"}})
		req.NoError(err)

		req.Equal("/api/", withoutSlash.BasePath)
		req.Equal(withoutSlash.BasePath, withSlash.BasePath)
	})

	t.Run("integral float64 ports from json documents are accepted", func(t *testing.T) {
		req := require.New(t)

		config, err := ParseConfig(map[string]interface{}{ConfigPort: float64(9090), ConfigResources: []string{"a"}})

		req.NoError(err)
		req.Equal(9090, config.Port)
	})

	t.Run("a fractional port is rejected", func(t *testing.T) {
		req := require.New(t)

		_, err := ParseConfig(map[string]interface{}{ConfigPort: 90.5, ConfigResources: []string{"a"}})

		req.Error(err)
	})

	t.Run("ports outside 1-65535 are rejected", func(t *testing.T) {
		for _, port := range []int{0, -1, 65536} {
			_, err := ParseConfig(map[string]interface{}{ConfigPort: port, ConfigResources: []string{"a"}})

			var configErr *ConfigurationError
			require.True(t, errors.As(err, &configErr), "port %d", port)
			require.Equal(t, ConfigPort, configErr.Key)
		}
	})

	t.Run("a non string host is rejected", func(t *testing.T) {
		_, err := ParseConfig(map[string]interface{}{ConfigHost: 10, ConfigResources: []string{"a"}})
		require.Error(t, err)
	})

	t.Run("a resources entry that is not a string is rejected", func(t *testing.T) {
		_, err := ParseConfig(map[string]interface{}{ConfigResources: []interface{}{"a", 1}})
		require.Error(t, err)
	})

	t.Run("a negative receive buffer size is rejected", func(t *testing.T) {
		_, err := ParseConfig(map[string]interface{}{ConfigReceiveBufferSize: -1, ConfigResources: []string{"a"}})

		var configErr *ConfigurationError
		require.True(t, errors.As(err, &configErr))
		require.Equal(t, ConfigReceiveBufferSize, configErr.Key)
	})

	t.Run("a non boolean compression flag is rejected", func(t *testing.T) {
		_, err := ParseConfig(map[string]interface{}{ConfigCompression: "yes", ConfigResources: []string{"a"}})
		require.Error(t, err)
	})

	t.Run("an unparsable timeout is rejected", func(t *testing.T) {
		_, err := ParseConfig(map[string]interface{}{
			ConfigResources: []string{"a"},
			ConfigOptions:   map[string]interface{}{"read_timeout": "soon"},
		})

		var configErr *ConfigurationError
		require.True(t, errors.As(err, &configErr))
		require.Equal(t, "options.read_timeout", configErr.Key)
	})

	t.Run("a zero timeout is rejected", func(t *testing.T) {
		_, err := ParseConfig(map[string]interface{}{
			ConfigResources: []string{"a"},
			ConfigOptions:   map[string]interface{}{"write_timeout": "0s"},
		})
		require.Error(t, err)
	})

	t.Run("an identity section that is not a map is rejected", func(t *testing.T) {
		_, err := ParseConfig(map[string]interface{}{ConfigIdentity: "cert.pem", ConfigResources: []string{"a"}})

		var configErr *ConfigurationError
		require.True(t, errors.As(err, &configErr))
		require.Equal(t, ConfigIdentity, configErr.Key)
	})
}

func Test_NormalizeBasePath(t *testing.T) {
	cases := map[string]string{
		"":         "/",
		"/":        "/",
		"api":      "/api/",
		"/api":     "/api/",
		"/api/":    "/api/",
		"a/b":      "/a/b/",
		"/a/b/c/":  "/a/b/c/",
		"/with/v1": "/with/v1/",
	}

	for input, expected := range cases {
		t.Run("normalizing "+input+" is idempotent", func(t *testing.T) {
			req := require.New(t)
			once := NormalizeBasePath(input)
			req.Equal(expected, once)
			req.Equal(once, NormalizeBasePath(once))
		})
	}
}
