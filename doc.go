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

/*
Package xengine hosts a pluggable request-handling engine behind an HTTP listener configured from a map of values.

Basics

A Controller is started once with a raw configuration map, usually produced by LoadDocumentFile from a YAML or JSON
file. The map is parsed into a Config, which names resource packages, features and binders. Features and binders are
resolved by name through a ClassResolver (DefaultRegistry unless another is given) and assembled, fail-fast and in
declaration order, into a HandlingContext. A RuntimeBinder exposing the Config and a logger is always bound first.

An EngineFactory turns the HandlingContext into an Engine. The Engine is mounted under the configured base path by a
Router, and requests it claims are converted by a Dispatcher into a Request whose URI is relative to the base path.
Requests outside the base path are left for the default http.Handler, which may be supplied with
WithDefaultHttpHandler. Without one they receive an empty 404.

Binding the listener happens asynchronously. The outcome of a start attempt is reported exactly once through a
Completion: success when the listener is bound, failure for configuration errors, plugin errors and bind errors.

The resource package contains an Engine implementation that serves registered resource packages with path templates,
runs features as filters and exposes binder services to handlers.
*/
package xengine
