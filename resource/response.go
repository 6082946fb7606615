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
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/openziti/xengine"
	"github.com/pkg/errors"
)

// Text builds a text/plain response.
func Text(status int, body string) *xengine.Response {
	header := http.Header{}
	header.Set("Content-Type", "text/plain; charset=utf-8")
	return &xengine.Response{
		Status: status,
		Header: header,
		Body:   strings.NewReader(body),
	}
}

// JSON builds an application/json response from v.
func JSON(status int, v interface{}) (*xengine.Response, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "could not encode response")
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	return &xengine.Response{
		Status: status,
		Header: header,
		Body:   bytes.NewReader(body),
	}, nil
}
