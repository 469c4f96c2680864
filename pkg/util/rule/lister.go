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

package rule

import (
	"context"
	"fmt"
	"strings"

	"github.com/coreos/go-iptables/iptables"
	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/klog/v2/klogr"

	utiliptables "github.com/fabedge/iptsave/pkg/util/iptables"
)

// DefaultTables are listed when no table is asked for
var DefaultTables = []string{utiliptables.TableNat, utiliptables.TableFilter}

// Lister is the part of *iptables.IPTables ChainLister needs
type Lister interface {
	ListChains(table string) ([]string, error)
	List(table, chain string) ([]string, error)
}

// ChainLister rebuilds iptables-save like output chain by chain. Counters are
// not available this way and are always [0:0].
type ChainLister struct {
	ipt    Lister
	tables []string
	chains sets.String
	log    logr.Logger
}

func NewChainLister(protocol utiliptables.Protocol, tables, chains []string) (*ChainLister, error) {
	proto := iptables.ProtocolIPv4
	switch protocol {
	case utiliptables.ProtocolIPv4:
	case utiliptables.ProtocolIPv6:
		proto = iptables.ProtocolIPv6
	default:
		return nil, fmt.Errorf("unknown protocol: %s", protocol)
	}

	ipt, err := iptables.NewWithProtocol(proto)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create iptables handle")
	}

	return NewChainListerWith(ipt, tables, chains), nil
}

func NewChainListerWith(ipt Lister, tables, chains []string) *ChainLister {
	if len(tables) == 0 {
		tables = DefaultTables
	}

	return &ChainLister{
		ipt:    ipt,
		tables: tables,
		chains: sets.NewString(chains...),
		log:    klogr.New().WithName("chainLister"),
	}
}

func (l *ChainLister) Lines(ctx context.Context) ([]string, error) {
	var lines []string
	for _, table := range l.tables {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		tableLines, err := l.listTable(table)
		if err != nil {
			return nil, err
		}
		lines = append(lines, tableLines...)
	}

	return lines, nil
}

func (l *ChainLister) listTable(table string) ([]string, error) {
	chains, err := l.ipt.ListChains(table)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list chains of table %s", table)
	}

	var declarations, rules []string
	for _, chain := range chains {
		if l.chains.Len() > 0 && !l.chains.Has(chain) {
			continue
		}

		specs, err := l.ipt.List(table, chain)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to list rules of chain %s in table %s", chain, table)
		}
		l.log.V(6).Info("chain listed", "table", table, "chain", chain, "rules", len(specs))

		for _, spec := range specs {
			fields := strings.Fields(spec)
			if len(fields) == 0 {
				continue
			}

			switch fields[0] {
			case "-P":
				if len(fields) < 3 {
					continue
				}
				declarations = append(declarations, fmt.Sprintf(":%s %s [0:0]", fields[1], fields[2]))
			case "-N":
				if len(fields) < 2 {
					continue
				}
				declarations = append(declarations, fmt.Sprintf(":%s %s [0:0]", fields[1], utiliptables.PolicyNone))
			default:
				rules = append(rules, spec)
			}
		}
	}

	lines := make([]string, 0, len(declarations)+len(rules)+2)
	lines = append(lines, "*"+table)
	lines = append(lines, declarations...)
	lines = append(lines, rules...)
	lines = append(lines, "COMMIT")

	return lines, nil
}
