// Copyright 2021 FabEdge Team
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

	"k8s.io/apimachinery/pkg/util/sets"
)

type Protocol string

const (
	ProtocolIPv4 Protocol = "ipv4"
	ProtocolIPv6 Protocol = "ipv6"
)

const (
	IPTablesSaveCommand  = "iptables-save"
	IP6TablesSaveCommand = "ip6tables-save"
)

const (
	TableFilter   = "filter"
	TableNat      = "nat"
	TableMangle   = "mangle"
	TableRaw      = "raw"
	TableSecurity = "security"
)

const (
	PolicyAccept = "ACCEPT"
	// PolicyNone is the policy token of user-defined chains
	PolicyNone = "-"
)

// builtinChains lists the chains each table creates by itself
var builtinChains = map[string]sets.String{
	TableFilter:   sets.NewString("INPUT", "FORWARD", "OUTPUT"),
	TableNat:      sets.NewString("PREROUTING", "INPUT", "OUTPUT", "POSTROUTING"),
	TableMangle:   sets.NewString("PREROUTING", "INPUT", "FORWARD", "OUTPUT", "POSTROUTING"),
	TableRaw:      sets.NewString("PREROUTING", "OUTPUT"),
	TableSecurity: sets.NewString("INPUT", "FORWARD", "OUTPUT"),
}

// Tables returns the tables iptables supports, in iptables-save order
func Tables() []string {
	return []string{TableRaw, TableMangle, TableNat, TableFilter, TableSecurity}
}

func IsBuiltinChain(table, chain string) bool {
	return builtinChains[table].Has(chain)
}

func SaveCommand(protocol Protocol) (string, error) {
	switch protocol {
	case ProtocolIPv4:
		return IPTablesSaveCommand, nil
	case ProtocolIPv6:
		return IP6TablesSaveCommand, nil
	default:
		return "", fmt.Errorf("unknown protocol: %s", protocol)
	}
}
