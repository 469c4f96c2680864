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

package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fabedge/iptsave/pkg/common/about"
	"github.com/fabedge/iptsave/pkg/iptsave"
)

const namespace = "iptsave"

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Registry holds the metrics of parse runs. Each Registry owns its own
// prometheus registry so that several may live in one process.
type Registry struct {
	registry *prometheus.Registry

	ParseRuns     *prometheus.CounterVec
	ParseErrors   *prometheus.CounterVec
	ParseDuration prometheus.Histogram
	Lines         *prometheus.CounterVec
	LastRules     prometheus.Gauge
	LastSuccess   prometheus.Gauge
	BuildInfo     *prometheus.GaugeVec
}

func New() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	r := &Registry{
		registry: reg,
		ParseRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_runs_total",
			Help:      "Number of parse runs by result",
		}, []string{"result"}),
		ParseErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_errors_total",
			Help:      "Number of failed parse runs by reason",
		}, []string{"reason"}),
		ParseDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "parse_duration_seconds",
			Help:      "Time spent reading and parsing a dump",
			Buckets:   prometheus.DefBuckets,
		}),
		Lines: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_total",
			Help:      "Number of parsed lines by line type",
		}, []string{"type"}),
		LastRules: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_rules",
			Help:      "Number of rules in the last successful parse",
		}),
		LastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful parse",
		}),
		BuildInfo: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Version of the running binary, always 1",
		}, []string{"version", "git_commit"}),
	}

	info := about.Get()
	r.BuildInfo.WithLabelValues(info.Version, info.GitCommit).Set(1)

	return r
}

// ObserveParse records one parse run. lines is ignored when err is not nil.
func (r *Registry) ObserveParse(lines []iptsave.ParsedLine, err error, duration time.Duration) {
	r.ParseDuration.Observe(duration.Seconds())

	if err != nil {
		r.ParseRuns.WithLabelValues(ResultFailure).Inc()
		r.ParseErrors.WithLabelValues(Reason(err)).Inc()
		return
	}

	r.ParseRuns.WithLabelValues(ResultSuccess).Inc()

	rules := 0
	for _, line := range lines {
		r.Lines.WithLabelValues(string(line.Type)).Inc()
		if line.Type == iptsave.LineTypeCommand {
			rules++
		}
	}
	r.LastRules.Set(float64(rules))
	r.LastSuccess.SetToCurrentTime()
}

// Reason maps err to a low cardinality label value
func Reason(err error) string {
	switch {
	case errors.Is(err, iptsave.ErrMalformedChainLine):
		return "malformed_chain_line"
	case errors.Is(err, iptsave.ErrUnhandledFlag):
		return "unhandled_flag"
	case errors.Is(err, iptsave.ErrMissingArgument):
		return "missing_argument"
	default:
		var perr *iptsave.ParseError
		if errors.As(err, &perr) {
			return "match"
		}
		return "source"
	}
}

func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
