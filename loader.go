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
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR} and ${VAR:-default}
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// LoadDocumentFile reads a YAML or JSON configuration document from disk. The result is the raw key/value
// document handed to Controller.Start, it has not been validated.
func LoadDocumentFile(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", path)
	}
	return parseDocument(data)
}

// LoadDocument reads a YAML or JSON configuration document.
func LoadDocument(r io.Reader) (map[string]interface{}, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config")
	}
	return parseDocument(data)
}

// LoadConfigFile reads and parses a configuration document into a Config.
func LoadConfigFile(path string) (*Config, error) {
	document, err := LoadDocumentFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(document)
}

func parseDocument(data []byte) (map[string]interface{}, error) {
	document := map[string]interface{}{}
	if err := yaml.Unmarshal([]byte(substituteEnvVars(string(data))), &document); err != nil {
		return nil, errors.Wrap(err, "failed to parse config")
	}
	return document, nil
}

// substituteEnvVars replaces ${VAR} and ${VAR:-default} with environment values, $$ escapes a literal $
func substituteEnvVars(content string) string {
	content = strings.ReplaceAll(content, "$$", "\x00ESCAPED_DOLLAR\x00")

	result := envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		if value, exists := os.LookupEnv(submatches[1]); exists {
			return value
		}
		if len(submatches) >= 3 {
			return submatches[2]
		}
		return ""
	})

	return strings.ReplaceAll(result, "\x00ESCAPED_DOLLAR\x00", "$")
}
