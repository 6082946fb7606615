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

package main

import (
	"context"
	"net/http"
	"sync"

	"github.com/michaelquigley/pfxlog"
	"github.com/openziti/xengine"
	"github.com/pkg/errors"
)

// supervisor owns the running Controller. Controllers are single use, so a restart builds a new one and falls back
// to the last good document when the new one does not start.
type supervisor struct {
	configPath string
	unclaimed  http.Handler
	factory    func(unclaimed http.Handler) *xengine.Controller

	lock     sync.Mutex
	current  *xengine.Controller
	lastGood map[string]interface{}
}

func newSupervisor(configPath string, unclaimed http.Handler) *supervisor {
	return &supervisor{
		configPath: configPath,
		unclaimed:  unclaimed,
		factory:    newController,
	}
}

func (s *supervisor) start(ctx context.Context) error {
	document, err := xengine.LoadDocumentFile(s.configPath)
	if err != nil {
		return err
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	return s.startLocked(ctx, document)
}

func (s *supervisor) startLocked(ctx context.Context, document map[string]interface{}) error {
	controller := s.factory(s.unclaimed)
	if err := controller.Run(ctx, document); err != nil {
		_ = controller.Stop(context.Background())
		return err
	}

	s.current = controller
	s.lastGood = document
	pfxlog.Logger().Infof("started on %s", controller.Address())
	return nil
}

// restart replaces the running controller with one built from the current file contents.
func (s *supervisor) restart(ctx context.Context) {
	log := pfxlog.Logger()

	document, err := xengine.LoadDocumentFile(s.configPath)
	if err != nil {
		log.Errorf("configuration change ignored: %v", err)
		return
	}

	// reject documents that cannot start before giving up the port
	if _, err := xengine.ParseConfig(document); err != nil {
		log.Errorf("configuration change ignored: %v", err)
		return
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if s.current != nil {
		if err := s.current.Stop(ctx); err != nil {
			log.Warnf("error stopping previous controller: %v", err)
		}
		s.current = nil
	}

	if err := s.startLocked(ctx, document); err != nil {
		log.Errorf("restart failed, reverting to previous configuration: %v", err)
		if s.lastGood == nil {
			return
		}
		if err := s.startLocked(ctx, s.lastGood); err != nil {
			log.Errorf("could not revert to previous configuration: %v", err)
		}
	}
}

func (s *supervisor) stop(ctx context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.current == nil {
		return errors.New("not running")
	}
	err := s.current.Stop(ctx)
	s.current = nil
	return err
}
