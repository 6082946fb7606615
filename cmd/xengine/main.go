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

// Command xengine serves the resource engine behind an xengine Controller configured from a YAML or JSON file.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/michaelquigley/pfxlog"
	"github.com/openziti/xengine"
	"github.com/openziti/xengine/resource"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

type cliFlags struct {
	configPath string
	logLevel   string
	watch      bool
}

func main() {
	flags := parseFlags()

	level, err := logrus.ParseLevel(flags.logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	pfxlog.GlobalInit(level, pfxlog.DefaultOptions().SetTrimPrefix("github.com/openziti/"))
	log := pfxlog.Logger()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	supervisor := newSupervisor(flags.configPath, unclaimedHandler())

	if err := supervisor.start(ctx); err != nil {
		log.Errorf("could not start: %v", err)
		os.Exit(1)
	}

	if flags.watch {
		watcher, err := newConfigWatcher(flags.configPath, supervisor.restart)
		if err != nil {
			log.Errorf("could not watch %s: %v", flags.configPath, err)
			os.Exit(1)
		}
		go watcher.run(ctx)
		defer watcher.close()
	}

	<-ctx.Done()
	log.Info("shutting down")

	if err := supervisor.stop(context.Background()); err != nil {
		log.Warnf("error during shutdown: %v", err)
	}
}

func parseFlags() cliFlags {
	configPath := flag.String("config", getEnvOrDefault("XENGINE_CONFIG", "xengine.yml"), "Path to configuration file")
	logLevel := flag.String("log-level", getEnvOrDefault("XENGINE_LOG_LEVEL", "info"), "Log level (trace, debug, info, warn, error)")
	watch := flag.Bool("watch", false, "Restart when the configuration file changes")
	flag.Parse()

	return cliFlags{
		configPath: *configPath,
		logLevel:   *logLevel,
		watch:      *watch,
	}
}

func getEnvOrDefault(key, def string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return def
}

// unclaimedHandler serves /metrics for requests outside the base path.
func unclaimedHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func newController(unclaimed http.Handler) *xengine.Controller {
	return xengine.NewController(xengine.DefaultRegistry, resource.EngineFactory,
		xengine.WithDefaultHttpHandler(unclaimed))
}
