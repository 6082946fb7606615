/*
	Copyright NetFoundry, Inc.

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
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/michaelquigley/pfxlog"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// State is a Controller lifecycle state. Transitions only move forward.
type State int32

const (
	Idle State = iota
	Configuring
	BuildingRegistry
	Binding
	Running
	Failed
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Configuring:
		return "Configuring"
	case BuildingRegistry:
		return "BuildingRegistry"
	case Binding:
		return "Binding"
	case Running:
		return "Running"
	case Failed:
		return "Failed"
	case Stopped:
		return "Stopped"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Controller starts one listener from a raw configuration document. A Controller is single use: Start may be called
// once, and a retry means a new Controller.
type Controller struct {
	DefaultHttpHandlerProviderImpl

	resolver      ClassResolver
	engineFactory EngineFactory
	registerer    prometheus.Registerer
	newBindPoint  func(config *Config) (BindPoint, error)

	state   atomic.Int32
	lock    sync.Mutex
	metrics *Metrics

	config          *Config
	handlingContext *HandlingContext
	server          *Server
	listener        net.Listener
}

type ControllerOption func(controller *Controller)

// WithRegisterer sets where metrics are registered, prometheus.DefaultRegisterer by default. A nil registerer
// disables registration.
func WithRegisterer(registerer prometheus.Registerer) ControllerOption {
	return func(controller *Controller) {
		controller.registerer = registerer
	}
}

// WithDefaultHttpHandler sets the handler that receives requests outside the base path.
func WithDefaultHttpHandler(handler http.Handler) ControllerOption {
	return func(controller *Controller) {
		controller.SetDefaultHttpHandler(handler)
	}
}

func NewController(resolver ClassResolver, engineFactory EngineFactory, options ...ControllerOption) *Controller {
	controller := &Controller{
		resolver:      resolver,
		engineFactory: engineFactory,
		registerer:    prometheus.DefaultRegisterer,
		newBindPoint:  NewBindPoint,
	}

	for _, option := range options {
		option(controller)
	}

	return controller
}

// State returns the current lifecycle state.
func (controller *Controller) State() State {
	return State(controller.state.Load())
}

// Start runs configuration and plugin assembly on the calling goroutine, then binds asynchronously. completion is
// completed exactly once: with nil when the listener is bound and served, otherwise with a *ConfigurationError,
// *PluginError, *BindError, ErrStopped or other startup error. Configuration and plugin failures never reach the
// bind step. A nil completion is allowed, the outcome is then only logged.
func (controller *Controller) Start(rawConfig map[string]interface{}, completion *Completion) {
	if completion == nil {
		completion = NewCompletion()
	}

	if !controller.state.CompareAndSwap(int32(Idle), int32(Configuring)) {
		completion.Fail(ErrAlreadyStarted)
		return
	}

	metrics, err := NewMetrics(controller.registerer)
	if err != nil {
		pfxlog.Logger().Warnf("metrics disabled: %v", err)
		metrics, _ = NewMetrics(nil)
	}
	controller.metrics = metrics

	config, err := ParseConfig(rawConfig)
	if err != nil {
		controller.fail(completion, err)
		return
	}

	if !controller.transition(Configuring, BuildingRegistry) {
		controller.fail(completion, errors.Wrap(ErrStopped, "configuration aborted"))
		return
	}

	hc, err := BuildHandlingContext(config, controller.resolver, NewRuntimeBinder(config))
	if err != nil {
		controller.fail(completion, err)
		return
	}

	server, err := controller.buildServer(config, hc)
	if err != nil {
		_ = hc.Close()
		controller.fail(completion, err)
		return
	}

	// Stop holds the lock while it swaps state, so it either sees the stored server or makes the transition fail
	controller.lock.Lock()
	if !controller.transition(BuildingRegistry, Binding) {
		controller.lock.Unlock()
		_ = server.Shutdown(context.Background())
		if err := hc.Close(); err != nil {
			pfxlog.Logger().Warnf("error closing handling context: %v", err)
		}
		controller.fail(completion, errors.Wrap(ErrStopped, "plugin assembly aborted"))
		return
	}
	controller.config = config
	controller.handlingContext = hc
	controller.server = server
	controller.lock.Unlock()

	go controller.bindAndServe(server, completion)
}

func (controller *Controller) buildServer(config *Config, hc *HandlingContext) (*Server, error) {
	engine, err := controller.engineFactory(hc)
	if err != nil {
		return nil, errors.Wrap(err, "could not create engine")
	}
	if engine == nil {
		return nil, errors.New("engine factory returned no engine")
	}

	router, err := NewRouter(config.BasePath, NewDispatcher(config, engine))
	if err != nil {
		return nil, err
	}

	bindPoint, err := controller.newBindPoint(config)
	if err != nil {
		return nil, err
	}

	server := NewServer(config, router, bindPoint, controller.metrics)
	server.SetParent(controller)

	return server, nil
}

func (controller *Controller) bindAndServe(server *Server, completion *Completion) {
	// binding under the lock keeps Stop from returning while a listener is being opened
	controller.lock.Lock()
	if controller.State() != Binding {
		controller.lock.Unlock()
		controller.release()
		controller.fail(completion, errors.Wrap(ErrStopped, "bind aborted"))
		return
	}

	listener, err := server.Listen(context.Background())
	if err != nil {
		controller.lock.Unlock()
		controller.release()
		controller.fail(completion, err)
		return
	}

	controller.transition(Binding, Running)
	controller.listener = listener
	controller.lock.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil {
			pfxlog.Logger().Errorf("server on %s stopped: %v", server.Address(), err)
		}
	}()

	controller.metrics.startupOutcome(nil)
	controller.completeOnce(completion, nil)
}

func (controller *Controller) transition(from, to State) bool {
	if !controller.state.CompareAndSwap(int32(from), int32(to)) {
		pfxlog.Logger().Debugf("lifecycle transition %s -> %s skipped, state is %s", from, to, controller.State())
		return false
	}
	return true
}

func (controller *Controller) fail(completion *Completion, err error) {
	for {
		current := controller.state.Load()
		if State(current) == Stopped || controller.state.CompareAndSwap(current, int32(Failed)) {
			break
		}
	}
	controller.metrics.startupOutcome(err)
	if errors.Is(err, ErrStopped) {
		pfxlog.Logger().Infof("startup abandoned: %v", err)
	} else {
		pfxlog.Logger().Errorf("startup failed: %v", err)
	}
	controller.completeOnce(completion, err)
}

func (controller *Controller) completeOnce(completion *Completion, err error) {
	var completed bool
	if err == nil {
		completed = completion.Succeed()
	} else {
		completed = completion.Fail(err)
	}
	if !completed {
		pfxlog.Logger().Warnf("startup completion already delivered, dropping outcome: %v", err)
	}
}

// release tears down everything built by Start.
func (controller *Controller) release() {
	controller.lock.Lock()
	hc := controller.handlingContext
	server := controller.server
	controller.handlingContext = nil
	controller.server = nil
	controller.lock.Unlock()

	if server != nil {
		_ = server.Shutdown(context.Background())
	}
	if hc != nil {
		if err := hc.Close(); err != nil {
			pfxlog.Logger().Warnf("error closing handling context: %v", err)
		}
	}
}

// Stop shuts the server down gracefully and releases the HandlingContext. Without a deadline on ctx the
// configured shutdown timeout applies.
func (controller *Controller) Stop(ctx context.Context) error {
	controller.lock.Lock()
	previous := State(controller.state.Swap(int32(Stopped)))
	server := controller.server
	hc := controller.handlingContext
	listener := controller.listener
	config := controller.config
	controller.server = nil
	controller.handlingContext = nil
	controller.listener = nil
	controller.lock.Unlock()

	if previous == Idle || previous == Stopped {
		return nil
	}

	var err error
	if server != nil {
		if _, ok := ctx.Deadline(); !ok && config != nil {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, config.Options.ShutdownTimeout)
			defer cancel()
		}
		err = server.Shutdown(ctx)
	}

	// Serve may not have tracked the listener yet when Shutdown ran
	if listener != nil {
		_ = listener.Close()
	}

	if hc != nil {
		if closeErr := hc.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}

	return err
}

// Address returns the address the listener is bound to, or "" before Start succeeded.
func (controller *Controller) Address() string {
	if controller.State() != Running {
		return ""
	}

	controller.lock.Lock()
	defer controller.lock.Unlock()
	if controller.server == nil {
		return ""
	}
	return controller.server.Address()
}

// Config returns the parsed configuration once Start got past configuration.
func (controller *Controller) Config() *Config {
	controller.lock.Lock()
	defer controller.lock.Unlock()
	return controller.config
}

// HandlingContext returns the context built by Start, or nil.
func (controller *Controller) HandlingContext() *HandlingContext {
	controller.lock.Lock()
	defer controller.lock.Unlock()
	return controller.handlingContext
}

// Run starts the controller and waits for the startup outcome.
func (controller *Controller) Run(ctx context.Context, rawConfig map[string]interface{}) error {
	completion := NewCompletion()
	controller.Start(rawConfig, completion)
	return completion.Wait(ctx)
}
