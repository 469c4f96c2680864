// Copyright 2023 FabEdge Team
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package inspector

import (
	"context"
	"net/http"
	"sync"
	"time"

	debpkg "github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	"github.com/go-logr/logr"
	"k8s.io/klog/v2/klogr"

	"github.com/fabedge/iptsave/pkg/apiserver"
	"github.com/fabedge/iptsave/pkg/common/constants"
	"github.com/fabedge/iptsave/pkg/iptsave"
	"github.com/fabedge/iptsave/pkg/metrics"
	"github.com/fabedge/iptsave/pkg/source"
)

// Inspector reads rules from a source, parses them and keeps the last
// successful result.
type Inspector struct {
	Config

	parser  *iptsave.Parser
	source  source.Source
	metrics *metrics.Registry
	log     logr.Logger

	mu    sync.RWMutex
	lines []iptsave.ParsedLine
	ready bool

	events   chan struct{}
	debounce func(func())
}

func (cfg Config) Inspector() (*Inspector, error) {
	src, err := cfg.newSource()
	if err != nil {
		return nil, err
	}

	return NewWithSource(cfg, src), nil
}

func NewWithSource(cfg Config, src source.Source) *Inspector {
	return &Inspector{
		Config:  cfg,
		parser:  cfg.newParser(),
		source:  src,
		metrics: metrics.New(),
		log:     klogr.New().WithName("inspector"),

		events:   make(chan struct{}, 1),
		debounce: debpkg.New(cfg.DebounceDuration),
	}
}

func (i *Inspector) Metrics() *metrics.Registry {
	return i.metrics
}

// Get returns the last successful result
func (i *Inspector) Get() ([]iptsave.ParsedLine, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	return i.lines, i.ready
}

func (i *Inspector) set(lines []iptsave.ParsedLine) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.lines, i.ready = lines, true
}

// Run reads and parses the source once. A failed run keeps the last result.
func (i *Inspector) Run(ctx context.Context) ([]iptsave.ParsedLine, error) {
	start := time.Now()

	var parsed []iptsave.ParsedLine
	lines, err := i.source.Lines(ctx)
	if err == nil {
		parsed, err = i.parser.ParseLines(lines)
	}
	i.metrics.ObserveParse(parsed, err, time.Since(start))

	if err != nil {
		i.log.Error(err, "failed to parse rules", "source", i.Config.Source)
		return nil, err
	}

	i.set(parsed)
	i.log.V(3).Info("rules parsed", "source", i.Config.Source, "lines", len(parsed), "duration", time.Since(start))

	return parsed, nil
}

func (i *Inspector) notify() {
	i.debounce(func() {
		select {
		case i.events <- struct{}{}:
		default:
		}
	})
}

// Serve parses the source once, then again on every file change or sync
// period, and serves the results over HTTP until ctx is done.
func (i *Inspector) Serve(ctx context.Context) error {
	server, err := apiserver.New(apiserver.Config{
		Addr:    i.ListenAddress,
		Parser:  i.parser,
		Store:   i,
		Metrics: i.metrics,
		Tables:  i.Tables,
		Chains:  i.Chains,
		Log:     klogr.New().WithName("apiserver"),
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		i.log.V(3).Info("api server is starting", "address", i.ListenAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	if i.Watch {
		go func() {
			err := watchFile(ctx, i.File, func(event fsnotify.Event) {
				i.log.V(3).Info("dump file may have changed", "event", event.String())
				i.notify()
			})
			if err != nil {
				i.log.Error(err, "failed to watch dump file", "file", i.File)
			}
		}()
	}

	if i.SyncPeriod > 0 {
		go i.sync(ctx)
	}

	i.events <- struct{}{}
	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		case err := <-errCh:
			return err
		case <-i.events:
			// failures are logged and counted by Run
			_, _ = i.Run(ctx)
		}
	}
}

func (i *Inspector) sync(ctx context.Context) {
	tick := time.NewTicker(i.SyncPeriod)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			i.notify()
		}
	}
}
