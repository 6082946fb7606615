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
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors for one Controller. Collectors already registered with the same registerer, for
// example by an earlier Controller in the same process, are reused.
type Metrics struct {
	requests  *prometheus.CounterVec
	durations *prometheus.HistogramVec
	startups  *prometheus.CounterVec
}

func NewMetrics(registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "xengine",
				Name:      "requests_total",
				Help:      "Total number of requests received, by whether the route claimed them",
			},
			[]string{"claimed", "method", "code"},
		),
		durations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "xengine",
				Name:      "request_duration_seconds",
				Help:      "Request handling latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"claimed"},
		),
		startups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "xengine",
				Name:      "startups_total",
				Help:      "Start attempts by outcome",
			},
			[]string{"outcome"},
		),
	}

	if registerer == nil {
		return m, nil
	}

	var err error
	if m.requests, err = register(registerer, m.requests); err != nil {
		return nil, err
	}
	if m.durations, err = register(registerer, m.durations); err != nil {
		return nil, err
	}
	if m.startups, err = register(registerer, m.startups); err != nil {
		return nil, err
	}

	return m, nil
}

func register[T prometheus.Collector](registerer prometheus.Registerer, collector T) (T, error) {
	if err := registerer.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return collector, errors.Wrap(err, "could not register xengine metrics")
	}
	return collector, nil
}

func (m *Metrics) startupOutcome(err error) {
	outcome := "started"
	if err != nil {
		var configErr *ConfigurationError
		var pluginErr *PluginError
		var bindErr *BindError
		switch {
		case errors.Is(err, ErrStopped):
			outcome = "stopped"
		case errors.As(err, &configErr):
			outcome = "configuration_error"
		case errors.As(err, &pluginErr):
			outcome = "plugin_error"
		case errors.As(err, &bindErr):
			outcome = "bind_error"
		default:
			outcome = "failed"
		}
	}
	m.startups.WithLabelValues(outcome).Inc()
}

// wrapHandler records every request, using router to label whether it was claimed.
func (m *Metrics) wrapHandler(router *Router, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		start := time.Now()
		claimed := strconv.FormatBool(router.Claims(request.URL.Path))
		recorder := &statusRecorder{ResponseWriter: writer, status: http.StatusOK}

		defer func() {
			m.requests.WithLabelValues(claimed, request.Method, strconv.Itoa(recorder.status)).Inc()
			m.durations.WithLabelValues(claimed).Observe(time.Since(start).Seconds())
		}()

		handler.ServeHTTP(recorder, request)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
