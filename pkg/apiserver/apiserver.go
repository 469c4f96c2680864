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

package apiserver

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-logr/logr"

	"github.com/fabedge/iptsave/pkg/iptsave"
	"github.com/fabedge/iptsave/pkg/metrics"
	"github.com/fabedge/iptsave/pkg/source"
	"github.com/fabedge/iptsave/pkg/util/iptables"
)

const (
	URLParse   = "/api/parse"
	URLLines   = "/api/lines"
	URLRestore = "/api/restore"
	URLMetrics = "/metrics"
	URLHealthz = "/healthz"
)

// Store gives access to the result of the last successful run
type Store interface {
	Get() ([]iptsave.ParsedLine, bool)
}

type Config struct {
	Addr    string
	Parser  *iptsave.Parser
	Store   Store
	Metrics *metrics.Registry
	// Tables and Chains filter the restore text
	Tables []string
	Chains []string
	Log    logr.Logger
}

type errorMessage struct {
	Message string `json:"message"`
}

func New(cfg Config) (*http.Server, error) {
	if cfg.Parser == nil {
		return nil, fmt.Errorf("parser is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Get(URLHealthz, cfg.health)
	r.Post(URLParse, cfg.parse)
	r.Get(URLLines, cfg.getLines)
	r.Get(URLRestore, cfg.getRestore)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, URLMetrics, cfg.Metrics.Handler())
	}

	return &http.Server{
		Addr:    cfg.Addr,
		Handler: r,
	}, nil
}

func (cfg Config) health(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte("ok"))
}

func (cfg Config) parse(w http.ResponseWriter, r *http.Request) {
	content, err := ioutil.ReadAll(r.Body)
	if err != nil {
		cfg.response(w, http.StatusBadRequest, fmt.Sprintf("failed to read request body: %s", err))
		return
	}

	lines, err := cfg.Parser.ParseLines(source.SplitLines(string(content)))
	if err != nil {
		cfg.response(w, http.StatusBadRequest, err.Error())
		return
	}

	cfg.writeJSON(w, lines)
}

func (cfg Config) getLines(w http.ResponseWriter, r *http.Request) {
	lines, ok := cfg.Store.Get()
	if !ok {
		cfg.response(w, http.StatusNotFound, "no rules parsed yet")
		return
	}

	cfg.writeJSON(w, lines)
}

func (cfg Config) getRestore(w http.ResponseWriter, r *http.Request) {
	lines, ok := cfg.Store.Get()
	if !ok {
		cfg.response(w, http.StatusNotFound, "no rules parsed yet")
		return
	}

	w.Header().Add("Content-Type", "text/plain; charset=utf-8")
	if _, err := w.Write([]byte(iptables.Render(lines, cfg.Tables, cfg.Chains))); err != nil {
		cfg.Log.Error(err, "failed to write http response")
	}
}

func (cfg Config) writeJSON(w http.ResponseWriter, v interface{}) {
	content, err := json.Marshal(v)
	if err != nil {
		cfg.response(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Add("Content-Type", "application/json")
	if _, err = w.Write(content); err != nil {
		cfg.Log.Error(err, "failed to write http response")
	}
}

func (cfg Config) response(w http.ResponseWriter, statusCode int, msg string) {
	content, _ := json.Marshal(errorMessage{Message: msg})

	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, err := w.Write(content); err != nil {
		cfg.Log.Error(err, "failed to write http response")
	}
}
