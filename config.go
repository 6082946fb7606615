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
	"fmt"
	"math"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/openziti/identity"
)

const (
	ConfigHost              = "host"
	ConfigPort              = "port"
	ConfigBasePath          = "base_path"
	ConfigResources         = "resources"
	ConfigFeatures          = "features"
	ConfigBinders           = "binders"
	ConfigReceiveBufferSize = "receive_buffer_size"
	ConfigMaxBodySize       = "max_body_size"
	ConfigCompression       = "compression"
	ConfigH2C               = "h2c"
	ConfigOptions           = "options"
	ConfigIdentity          = "identity"

	DefaultHost     = "0.0.0.0"
	DefaultPort     = 80
	DefaultBasePath = "/"

	DefaultHttpWriteTimeout = time.Second * 10
	DefaultHttpReadTimeout  = time.Second * 5
	DefaultHttpIdleTimeout  = time.Second * 5
	DefaultShutdownTimeout  = time.Second * 15
)

// Config is the immutable set of startup parameters for a Controller. It is produced once by ParseConfig and must
// not be modified afterwards; HandlingContext and Server keep references to it.
type Config struct {
	Host              string
	Port              int
	BasePath          string
	ResourcePackages  []string
	Features          []string
	Binders           []string
	ReceiveBufferSize int
	MaxBodySize       int64
	Compression       bool
	H2C               bool
	Options           TimeoutOptions

	// Identity is set when an identity section is present, the listener then serves TLS.
	Identity *identity.Config
}

// ParseConfig builds a Config from a key/value document. Missing optional keys take their defaults. A missing or
// empty resources list is reported before anything else is inspected, so no caller can get as far as binding a
// listener with one.
func ParseConfig(configMap map[string]interface{}) (*Config, error) {
	config := &Config{
		Host:        DefaultHost,
		Port:        DefaultPort,
		BasePath:    DefaultBasePath,
		Compression: true,
	}
	config.Options.Default()

	resources, err := stringList(configMap, ConfigResources)
	if err != nil {
		return nil, err
	}
	if len(resources) == 0 {
		return nil, configError(ConfigResources, "at least one resource package name must be specified")
	}
	config.ResourcePackages = resources

	if config.Features, err = stringList(configMap, ConfigFeatures); err != nil {
		return nil, err
	}

	if config.Binders, err = stringList(configMap, ConfigBinders); err != nil {
		return nil, err
	}

	if hostVal, ok := configMap[ConfigHost]; ok {
		if host, ok := hostVal.(string); ok {
			config.Host = host
		} else {
			return nil, configError(ConfigHost, "must be a string")
		}
	}

	if portVal, ok := configMap[ConfigPort]; ok {
		port, err := intValue(ConfigPort, portVal)
		if err != nil {
			return nil, err
		}
		config.Port = int(port)
	}

	if basePathVal, ok := configMap[ConfigBasePath]; ok {
		if basePath, ok := basePathVal.(string); ok {
			config.BasePath = NormalizeBasePath(basePath)
		} else {
			return nil, configError(ConfigBasePath, "must be a string")
		}
	}

	if sizeVal, ok := configMap[ConfigReceiveBufferSize]; ok {
		size, err := intValue(ConfigReceiveBufferSize, sizeVal)
		if err != nil {
			return nil, err
		}
		config.ReceiveBufferSize = int(size)
	}

	if sizeVal, ok := configMap[ConfigMaxBodySize]; ok {
		if config.MaxBodySize, err = intValue(ConfigMaxBodySize, sizeVal); err != nil {
			return nil, err
		}
	}

	if config.Compression, err = boolValue(configMap, ConfigCompression, config.Compression); err != nil {
		return nil, err
	}

	if config.H2C, err = boolValue(configMap, ConfigH2C, config.H2C); err != nil {
		return nil, err
	}

	if optionsVal, ok := configMap[ConfigOptions]; ok {
		if optionsMap, ok := optionsVal.(map[string]interface{}); ok {
			if err := config.Options.Parse(optionsMap); err != nil {
				return nil, err
			}
		} else {
			return nil, configError(ConfigOptions, "must be a map")
		}
	}

	if identityVal, ok := configMap[ConfigIdentity]; ok {
		identityMap, ok := toInterfaceMap(identityVal)
		if !ok {
			return nil, configError(ConfigIdentity, "must be a map")
		}
		if config.Identity, err = parseIdentityConfig(identityMap, ConfigIdentity); err != nil {
			return nil, configError(ConfigIdentity, "%v", err)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks ranges that cannot be expressed while parsing.
func (config *Config) Validate() error {
	if len(config.ResourcePackages) == 0 {
		return configError(ConfigResources, "at least one resource package name must be specified")
	}

	if config.Port < 1 || config.Port > 65535 {
		return configError(ConfigPort, "invalid port [%d], must 1-65535", config.Port)
	}

	if config.ReceiveBufferSize < 0 {
		return configError(ConfigReceiveBufferSize, "must not be negative, got [%d]", config.ReceiveBufferSize)
	}

	if config.MaxBodySize < 0 {
		return configError(ConfigMaxBodySize, "must not be negative, got [%d]", config.MaxBodySize)
	}

	if !strings.HasPrefix(config.BasePath, "/") || !strings.HasSuffix(config.BasePath, "/") {
		return configError(ConfigBasePath, "[%s] is not normalized", config.BasePath)
	}

	return config.Options.Validate()
}

// Address is the host:port the listener binds.
func (config *Config) Address() string {
	return net.JoinHostPort(config.Host, strconv.Itoa(config.Port))
}

// NormalizeBasePath makes sure a path prefix starts and ends with a separator. Applying it twice is the same as
// applying it once.
func NormalizeBasePath(basePath string) string {
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	if !strings.HasSuffix(basePath, "/") {
		basePath += "/"
	}
	return basePath
}

// TimeoutOptions represents http timeout options
type TimeoutOptions struct {
	ReadTimeout     time.Duration
	IdleTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Default defaults all HTTP timeout options
func (timeoutOptions *TimeoutOptions) Default() {
	timeoutOptions.WriteTimeout = DefaultHttpWriteTimeout
	timeoutOptions.ReadTimeout = DefaultHttpReadTimeout
	timeoutOptions.IdleTimeout = DefaultHttpIdleTimeout
	timeoutOptions.ShutdownTimeout = DefaultShutdownTimeout
}

// Parse parses the options section
func (timeoutOptions *TimeoutOptions) Parse(options map[string]interface{}) error {
	targets := []struct {
		key   string
		value *time.Duration
	}{
		{"read_timeout", &timeoutOptions.ReadTimeout},
		{"idle_timeout", &timeoutOptions.IdleTimeout},
		{"write_timeout", &timeoutOptions.WriteTimeout},
		{"shutdown_timeout", &timeoutOptions.ShutdownTimeout},
	}

	for _, target := range targets {
		interfaceVal, ok := options[target.key]
		if !ok {
			continue
		}
		key := ConfigOptions + "." + target.key
		durationStr, ok := interfaceVal.(string)
		if !ok {
			return configError(key, "not a string")
		}
		duration, err := time.ParseDuration(durationStr)
		if err != nil {
			return configError(key, "could not parse %s as a duration (e.g. 1m): %v", durationStr, err)
		}
		*target.value = duration
	}

	return nil
}

// Validate validates all settings and return nil or an error
func (timeoutOptions *TimeoutOptions) Validate() error {
	if timeoutOptions.WriteTimeout <= 0 {
		return configError(ConfigOptions+".write_timeout", "value [%s] too low, must be positive", timeoutOptions.WriteTimeout)
	}

	if timeoutOptions.ReadTimeout <= 0 {
		return configError(ConfigOptions+".read_timeout", "value [%s] too low, must be positive", timeoutOptions.ReadTimeout)
	}

	if timeoutOptions.IdleTimeout <= 0 {
		return configError(ConfigOptions+".idle_timeout", "value [%s] too low, must be positive", timeoutOptions.IdleTimeout)
	}

	if timeoutOptions.ShutdownTimeout <= 0 {
		return configError(ConfigOptions+".shutdown_timeout", "value [%s] too low, must be positive", timeoutOptions.ShutdownTimeout)
	}

	return nil
}

func stringList(configMap map[string]interface{}, key string) ([]string, error) {
	val, ok := configMap[key]
	if !ok || val == nil {
		return nil, nil
	}

	switch list := val.(type) {
	case []string:
		return append([]string(nil), list...), nil
	case []interface{}:
		result := make([]string, 0, len(list))
		for i, entry := range list {
			str, ok := entry.(string)
			if !ok {
				return nil, configError(key, "entry at index [%d] is not a string", i)
			}
			result = append(result, str)
		}
		return result, nil
	}

	return nil, configError(key, "must be a list of strings")
}

func intValue(key string, val interface{}) (int64, error) {
	switch n := val.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, configError(key, "value [%d] out of range", n)
		}
		return int64(n), nil
	case float64:
		if n != math.Trunc(n) || n > math.MaxInt64 || n < math.MinInt64 {
			return 0, configError(key, "value [%v] is not an integer", n)
		}
		return int64(n), nil
	}
	return 0, configError(key, "must be an integer, got %T", val)
}

func boolValue(configMap map[string]interface{}, key string, def bool) (bool, error) {
	val, ok := configMap[key]
	if !ok {
		return def, nil
	}
	b, ok := val.(bool)
	if !ok {
		return def, configError(key, "must be a boolean")
	}
	return b, nil
}

// toInterfaceMap converts the string keyed maps produced by yaml.v3 and encoding/json into the interface keyed
// maps the identity package expects.
func toInterfaceMap(val interface{}) (map[interface{}]interface{}, bool) {
	switch m := val.(type) {
	case map[interface{}]interface{}:
		return m, true
	case map[string]interface{}:
		result := make(map[interface{}]interface{}, len(m))
		for k, v := range m {
			if nested, ok := toInterfaceMap(v); ok {
				v = nested
			}
			result[k] = v
		}
		return result, true
	}
	return nil, false
}

func parseIdentityConfig(identityMap map[interface{}]interface{}, pathContext string) (*identity.Config, error) {
	idConfig, err := identity.NewConfigFromMap(identityMap)
	if err != nil {
		return nil, fmt.Errorf("error parsing identity: %v", err)
	}

	if err = idConfig.ValidateWithPathContext(pathContext); err != nil {
		return nil, fmt.Errorf("error parsing identity: %v", err)
	}

	return idConfig, nil
}
