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
	"strings"

	"github.com/pkg/errors"
)

type segment struct {
	literal string
	param   string
}

type template struct {
	raw      string
	segments []segment
}

func compile(path string) (*template, error) {
	if !strings.HasPrefix(path, "/") {
		return nil, errors.Errorf("path [%s] must start with /", path)
	}

	t := &template{raw: path}
	for _, part := range split(path) {
		if strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}") {
			name := part[1 : len(part)-1]
			if name == "" {
				return nil, errors.Errorf("path [%s] has an unnamed parameter", path)
			}
			t.segments = append(t.segments, segment{param: name})
		} else {
			t.segments = append(t.segments, segment{literal: part})
		}
	}
	return t, nil
}

// match returns the parameter values when path fits the template.
func (t *template) match(path string) (map[string]string, bool) {
	parts := split(path)
	if len(parts) != len(t.segments) {
		return nil, false
	}

	params := map[string]string{}
	for i, seg := range t.segments {
		if seg.param != "" {
			params[seg.param] = parts[i]
		} else if seg.literal != parts[i] {
			return nil, false
		}
	}
	return params, true
}

func split(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func (t *template) literals() int {
	count := 0
	for _, seg := range t.segments {
		if seg.param == "" {
			count++
		}
	}
	return count
}
