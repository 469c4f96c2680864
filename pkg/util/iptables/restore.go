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

package iptables

import (
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/fabedge/iptsave/pkg/iptsave"
)

type IPTablesRuleSet struct {
	table  string
	chains []IPTablesChain
	rules  []IPTablesRule
}

type IPTablesChain struct {
	name    string
	policy  string
	packets uint64
	bytes   uint64
}

type IPTablesRule struct {
	chain string
	rule  []string
}

// Renderer regroups parsed lines by table and generates iptables-restore
// input from them. Comments, blank lines and lines outside of any table
// are not rendered.
type Renderer struct {
	tables   sets.String
	chains   sets.String
	ruleSets []IPTablesRuleSet
}

// NewRenderer creates a Renderer which keeps only the given tables and
// chains. Empty filters keep everything.
func NewRenderer(tables, chains []string) *Renderer {
	return &Renderer{
		tables:   sets.NewString(tables...),
		chains:   sets.NewString(chains...),
		ruleSets: []IPTablesRuleSet{},
	}
}

func (r *Renderer) keep(table, chain string) bool {
	if table == "" {
		return false
	}
	if r.tables.Len() > 0 && !r.tables.Has(table) {
		return false
	}
	return r.chains.Len() == 0 || r.chains.Has(chain)
}

func (r *Renderer) AddLines(lines []iptsave.ParsedLine) {
	for _, line := range lines {
		switch line.Type {
		case iptsave.LineTypeChain:
			chain := line.Chain
			if !r.keep(line.OriginalTableName, chain.Name) {
				continue
			}

			var packets, bytes uint64
			if chain.Packets != nil && chain.Bytes != nil {
				packets, bytes = *chain.Packets, *chain.Bytes
			}
			r.CreateChain(line.OriginalTableName, chain.Name, chain.DefaultPolicy, packets, bytes)
		case iptsave.LineTypeCommand:
			args := line.Command.Arguments
			if !r.keep(line.OriginalTableName, args.ChainName) {
				continue
			}
			r.AppendRule(line.OriginalTableName, args.ChainName, line.Command.RawArguments...)
		}
	}
}

func (r *Renderer) findTable(table string) int {
	for i, ruleSet := range r.ruleSets {
		if ruleSet.table == table {
			return i
		}
	}
	return -1
}

func (r *Renderer) findChain(tableIndex int, chain string) int {
	for i, elem := range r.ruleSets[tableIndex].chains {
		if chain == elem.name {
			return i
		}
	}
	return -1
}

func (r *Renderer) ensureTable(table string) int {
	tableIndex := r.findTable(table)
	if tableIndex == -1 {
		r.ruleSets = append(r.ruleSets, IPTablesRuleSet{table: table, chains: []IPTablesChain{}, rules: []IPTablesRule{}})
		tableIndex = len(r.ruleSets) - 1
	}
	return tableIndex
}

// CreateChain declares chain in table. A chain declared twice keeps the
// first position and the latest policy and counters.
func (r *Renderer) CreateChain(table, chain, policy string, packets, bytes uint64) {
	tableIndex := r.ensureTable(table)
	entry := IPTablesChain{name: chain, policy: policy, packets: packets, bytes: bytes}

	chainIndex := r.findChain(tableIndex, chain)
	if chainIndex == -1 {
		r.ruleSets[tableIndex].chains = append(r.ruleSets[tableIndex].chains, entry)
	} else {
		r.ruleSets[tableIndex].chains[chainIndex] = entry
	}
}

// AppendRule appends a rule, given as the full argument vector including
// "-A chain", declaring table and chain if they are not known yet.
func (r *Renderer) AppendRule(table, chain string, rule ...string) {
	tableIndex := r.ensureTable(table)
	if chain != "" && r.findChain(tableIndex, chain) == -1 {
		r.ruleSets[tableIndex].chains = append(r.ruleSets[tableIndex].chains, IPTablesChain{name: chain})
	}

	r.ruleSets[tableIndex].rules = append(r.ruleSets[tableIndex].rules, IPTablesRule{chain: chain, rule: rule})
}

func (r *Renderer) ClearAllRules() {
	r.ruleSets = []IPTablesRuleSet{}
}

func (r *Renderer) GenerateInputFromRuleSet() string {
	var b strings.Builder
	for _, ruleSet := range r.ruleSets {
		b.WriteString("*" + ruleSet.table + "\n")
		for _, chain := range ruleSet.chains {
			policy := chain.policy
			if policy == iptsave.NoPolicy {
				// builtin chains always carry a policy
				if IsBuiltinChain(ruleSet.table, chain.name) {
					policy = PolicyAccept
				} else {
					policy = PolicyNone
				}
			}
			fmt.Fprintf(&b, ":%s %s [%d:%d]\n", chain.name, policy, chain.packets, chain.bytes)
		}

		for _, ruleEntry := range ruleSet.rules {
			b.WriteString(strings.Join(ruleEntry.rule, " "))
			b.WriteString("\n")
		}

		b.WriteString("COMMIT\n")
	}
	return b.String()
}

// Render generates iptables-restore input from lines
func Render(lines []iptsave.ParsedLine, tables, chains []string) string {
	r := NewRenderer(tables, chains)
	r.AddLines(lines)
	return r.GenerateInputFromRuleSet()
}
