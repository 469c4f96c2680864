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
	"fmt"
	"net"
	"time"

	"github.com/spf13/pflag"
	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/klog/v2/klogr"

	"github.com/fabedge/iptsave/pkg/common/constants"
	"github.com/fabedge/iptsave/pkg/iptsave"
	"github.com/fabedge/iptsave/pkg/output"
	"github.com/fabedge/iptsave/pkg/source"
	"github.com/fabedge/iptsave/pkg/util/iptables"
	"github.com/fabedge/iptsave/pkg/util/rule"
)

const (
	SourceFile    = "file"
	SourceCommand = "command"
	SourceChains  = "chains"
)

type Config struct {
	Source   string
	File     string
	Protocol string
	Tables   []string
	Chains   []string
	Output   string

	NoBuiltinMatches bool

	Serve            bool
	ListenAddress    string
	Watch            bool
	SyncPeriod       time.Duration
	DebounceDuration time.Duration

	SaveRetries    uint
	SaveRetryDelay time.Duration
}

func (cfg *Config) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&cfg.Source, "source", SourceFile, "Where rules come from: file, command (iptables-save) or chains (iptables -S)")
	fs.StringVar(&cfg.File, "file", source.Stdin, "The iptables-save dump to parse, - means stdin")
	fs.StringVar(&cfg.Protocol, "protocol", string(iptables.ProtocolIPv4), "The protocol of rules to save: ipv4 or ipv6")
	fs.StringSliceVar(&cfg.Tables, "table", nil, "Only save and render these tables, comma separated")
	fs.StringSliceVar(&cfg.Chains, "chain", nil, "Only list and render these chains, comma separated")
	fs.StringVar(&cfg.Output, "output", output.FormatJSON, "Output format: json, yaml, table, dump or restore")
	fs.BoolVar(&cfg.NoBuiltinMatches, "no-builtin-matches", false, "Parse every match extension with the generic parser")

	fs.BoolVar(&cfg.Serve, "serve", false, "Keep running and serve parsed rules over HTTP")
	fs.StringVar(&cfg.ListenAddress, "listen-address", constants.DefaultListenAddress, "The address the HTTP API listens on")
	fs.BoolVar(&cfg.Watch, "watch", false, "Parse the file again when it changes, serve mode only")
	fs.DurationVar(&cfg.SyncPeriod, "sync-period", 0, "The period to parse rules again in serve mode, 0 disables it")
	fs.DurationVar(&cfg.DebounceDuration, "debounce", time.Second, "The debounce delay to avoid parsing on every file event")

	fs.UintVar(&cfg.SaveRetries, "save-retries", 3, "How many times to run iptables-save before giving up")
	fs.DurationVar(&cfg.SaveRetryDelay, "save-retry-delay", time.Second, "The delay between iptables-save runs")
}

func (cfg *Config) Validate() error {
	if !sets.NewString(SourceFile, SourceCommand, SourceChains).Has(cfg.Source) {
		return fmt.Errorf("unknown source: %s", cfg.Source)
	}

	if cfg.Source == SourceFile && cfg.File == "" {
		return fmt.Errorf("file is required")
	}

	if _, err := iptables.SaveCommand(iptables.Protocol(cfg.Protocol)); err != nil {
		return err
	}

	if !sets.NewString(output.Formats()...).Has(cfg.Output) {
		return fmt.Errorf("unknown output format: %s", cfg.Output)
	}

	if cfg.DebounceDuration < 0 {
		return fmt.Errorf("debounce can not be negative")
	}

	if cfg.SyncPeriod != 0 && cfg.SyncPeriod < time.Second {
		return fmt.Errorf("the least sync period value is 1 second")
	}

	if cfg.SaveRetries == 0 {
		return fmt.Errorf("save retries must be at least 1")
	}

	if !cfg.Serve {
		if cfg.Watch {
			return fmt.Errorf("watch is only supported in serve mode")
		}
		return nil
	}

	if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		return fmt.Errorf("invalid listen address: %s", err)
	}

	if cfg.Source == SourceFile && cfg.File == source.Stdin {
		return fmt.Errorf("stdin can not be read in serve mode")
	}

	if cfg.Watch && cfg.Source != SourceFile {
		return fmt.Errorf("watch is only supported for file source")
	}

	return nil
}

func (cfg Config) newParser() *iptsave.Parser {
	registry := iptsave.DefaultMatchRegistry()
	if cfg.NoBuiltinMatches {
		registry = iptsave.NewMatchRegistry()
	}

	return iptsave.NewParser(
		iptsave.WithMatchRegistry(registry),
		iptsave.WithLogger(klogr.New().WithName("parser")),
	)
}

func (cfg Config) newSource() (source.Source, error) {
	protocol := iptables.Protocol(cfg.Protocol)

	switch cfg.Source {
	case SourceCommand:
		saver, err := iptables.NewSaver(protocol, cfg.Tables,
			iptables.WithRetry(cfg.SaveRetries, cfg.SaveRetryDelay),
		)
		if err != nil {
			return nil, err
		}
		return saver, nil
	case SourceChains:
		lister, err := rule.NewChainLister(protocol, cfg.Tables, cfg.Chains)
		if err != nil {
			return nil, err
		}
		return lister, nil
	default:
		return source.File{Path: cfg.File}, nil
	}
}
