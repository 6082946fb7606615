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
Package resource is a small xengine.Engine that serves resources registered under package names.

Resource packages are scan roots: a package name listed in the `resources` configuration key is looked up in a
process level table filled by RegisterPackage, usually from an init function. Each Resource is a method and a path
template relative to the configured base path, where a `{name}` segment matches any single path segment.

Features named in configuration must construct a Filter. Filters wrap resource invocation in configuration order,
the first listed being outermost. Binders are applied to one xengine.Bindings when the Engine is built and the
result is available to every Call.
*/
package resource
