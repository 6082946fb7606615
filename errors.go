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

	"github.com/pkg/errors"
)

var (
	// ErrAccessDenied may be returned (or wrapped) by a Constructor to signal that the type exists but may not be
	// instantiated by this process.
	ErrAccessDenied = errors.New("access denied")

	// ErrClassNotFound is the cause carried by a PluginError of kind ClassNotFound.
	ErrClassNotFound = errors.New("plugin type not registered")

	// ErrAlreadyStarted is delivered through a Completion when Start is called on a Controller that has left Idle.
	ErrAlreadyStarted = errors.New("controller already started")

	// ErrStopped is delivered through a Completion when Stop ran before the listener was bound.
	ErrStopped = errors.New("controller stopped")
)

// ConfigurationError is a fatal, pre-bind failure to produce a Config from a raw configuration document.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Key == "" {
		return "invalid configuration: " + e.Reason
	}
	return fmt.Sprintf("invalid configuration value for [%s]: %s", e.Key, e.Reason)
}

func configError(key, format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Key: key, Reason: fmt.Sprintf(format, args...)}
}

// PluginErrorKind classifies a PluginError.
type PluginErrorKind int

const (
	ClassNotFound PluginErrorKind = iota
	InstantiationFailed
	AccessDenied
)

func (k PluginErrorKind) String() string {
	switch k {
	case ClassNotFound:
		return "ClassNotFound"
	case InstantiationFailed:
		return "InstantiationFailed"
	case AccessDenied:
		return "AccessDenied"
	}
	return fmt.Sprintf("PluginErrorKind(%d)", int(k))
}

// PluginError is a fatal, pre-bind failure to resolve or instantiate a declared feature or binder.
type PluginError struct {
	Kind       PluginErrorKind
	Identifier string
	Err        error
}

func (e *PluginError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("plugin [%s]: %s", e.Identifier, e.Kind)
	}
	return fmt.Sprintf("plugin [%s]: %s: %v", e.Identifier, e.Kind, e.Err)
}

func (e *PluginError) Unwrap() error {
	return e.Err
}

// Cause satisfies github.com/pkg/errors causer.
func (e *PluginError) Cause() error {
	return e.Err
}

// BindError is reported through a Completion when the listener could not bind its address.
type BindError struct {
	Address string
	Err     error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("could not bind [%s]: %v", e.Address, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

// Cause satisfies github.com/pkg/errors causer.
func (e *BindError) Cause() error {
	return e.Err
}
