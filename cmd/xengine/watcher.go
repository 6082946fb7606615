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
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/michaelquigley/pfxlog"
)

const debounceDelay = 250 * time.Millisecond

// configWatcher calls onChange after the configuration file was written or replaced. Editors often write a file in
// several steps, so events are debounced.
type configWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onChange func(ctx context.Context)
}

func newConfigWatcher(path string, onChange func(ctx context.Context)) (*configWatcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// watch the directory, the file itself may be replaced by rename
	if err := fsWatcher.Add(filepath.Dir(absPath)); err != nil {
		_ = fsWatcher.Close()
		return nil, err
	}

	return &configWatcher{
		path:     absPath,
		watcher:  fsWatcher,
		onChange: onChange,
	}, nil
}

func (w *configWatcher) run(ctx context.Context) {
	log := pfxlog.Logger()
	log.Infof("watching %s for changes", w.path)

	var debounceCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			debounceCh = time.After(debounceDelay)

		case <-debounceCh:
			debounceCh = nil
			log.Infof("configuration %s changed, restarting", w.path)
			w.onChange(ctx)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warnf("config watcher error: %v", err)
		}
	}
}

func (w *configWatcher) close() {
	_ = w.watcher.Close()
}
