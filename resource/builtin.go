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
	"net/http"
	"time"

	"github.com/michaelquigley/pfxlog"
	"github.com/openziti/xengine"
	"github.com/sirupsen/logrus"
)

const (
	StatusPackage        = "xengine.status"
	RequestLogFilterType = "resource.RequestLogFilter"
	UptimeBinderType     = "resource.UptimeBinder"
	StartTimeService     = "resource.startTime"
)

func init() {
	MustRegisterPackage(StatusPackage, Resource{
		Method: http.MethodGet,
		Path:   "/status",
		Handle: status,
	})

	xengine.MustRegister(RequestLogFilterType, func() (interface{}, error) {
		return &RequestLogFilter{}, nil
	})

	xengine.MustRegister(UptimeBinderType, func() (interface{}, error) {
		return &UptimeBinder{started: time.Now()}, nil
	})
}

type statusBody struct {
	Status    string   `json:"status"`
	BasePath  string   `json:"basePath,omitempty"`
	Resources []string `json:"resources,omitempty"`
	Uptime    string   `json:"uptime,omitempty"`
}

func status(call *Call) (*xengine.Response, error) {
	body := statusBody{Status: "ok"}

	if config, ok := xengine.LookupAs[*xengine.Config](call.Bindings, xengine.ConfigService); ok {
		body.BasePath = config.BasePath
		body.Resources = config.ResourcePackages
	}

	if started, ok := xengine.LookupAs[time.Time](call.Bindings, StartTimeService); ok {
		body.Uptime = time.Since(started).Truncate(time.Second).String()
	}

	return JSON(http.StatusOK, body)
}

// RequestLogFilter logs every resource call with its outcome and duration.
type RequestLogFilter struct{}

func (filter *RequestLogFilter) Filter(call *Call, next Handler) (*xengine.Response, error) {
	logger, ok := xengine.LookupAs[*logrus.Entry](call.Bindings, xengine.LoggerService)
	if !ok {
		logger = pfxlog.Logger().Entry
	}

	start := time.Now()
	response, err := next(call)

	logger = logger.WithFields(logrus.Fields{
		"method":    call.Method,
		"path":      call.URI.Path,
		"requestId": call.RequestId,
		"duration":  time.Since(start),
	})

	if err != nil {
		logger.WithError(err).Warn("resource call failed")
	} else if response != nil {
		logger.WithField("status", response.Status).Info("resource call")
	}

	return response, err
}

// UptimeBinder binds the time it was constructed under StartTimeService.
type UptimeBinder struct {
	started time.Time
}

func (binder *UptimeBinder) Bind(bindings *xengine.Bindings) {
	bindings.Provide(StartTimeService, binder.started)
}
