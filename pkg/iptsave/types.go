// Copyright 2024 FabEdge Team
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

package iptsave

type LineType string

const (
	LineTypeEmpty   LineType = "empty"
	LineTypeCommit  LineType = "commit"
	LineTypeComment LineType = "comment"
	LineTypeTable   LineType = "table"
	LineTypeChain   LineType = "chain"
	LineTypeCommand LineType = "command"
	LineTypeUnknown LineType = "unknown"
)

type InsertType string

const (
	InsertAppend InsertType = "append"
)

// NoPolicy is the DefaultPolicy of a chain saved with the "-" policy token,
// which is what iptables-save writes for user-defined chains.
const NoPolicy = ""

// ParsedLine is the structured form of one line of iptables-save output.
// Only the fields belonging to Type are populated.
type ParsedLine struct {
	Type   LineType `json:"lineType" yaml:"lineType"`
	Number int      `json:"number" yaml:"number"`
	Raw    string   `json:"rawText" yaml:"rawText"`

	Comment string   `json:"comment,omitempty" yaml:"comment,omitempty"`
	Table   *Table   `json:"table,omitempty" yaml:"table,omitempty"`
	Chain   *Chain   `json:"chain,omitempty" yaml:"chain,omitempty"`
	Command *Command `json:"command,omitempty" yaml:"command,omitempty"`

	// OriginalTableName is the table opened by the last "*table" line,
	// unless a COMMIT has been seen since.
	OriginalTableName string `json:"originalTableName,omitempty" yaml:"originalTableName,omitempty"`
}

type Table struct {
	Name string `json:"name" yaml:"name"`
}

type Chain struct {
	Name          string `json:"name" yaml:"name"`
	DefaultPolicy string `json:"defaultPolicy,omitempty" yaml:"defaultPolicy,omitempty"`
	// Packets and Bytes are the [packets:bytes] counters, nil when the line has none
	Packets *uint64 `json:"packets,omitempty" yaml:"packets,omitempty"`
	Bytes   *uint64 `json:"bytes,omitempty" yaml:"bytes,omitempty"`
}

func (c Chain) HasPolicy() bool {
	return c.DefaultPolicy != NoPolicy
}

type Command struct {
	RawArguments []string         `json:"rawArguments" yaml:"rawArguments"`
	Arguments    CommandArguments `json:"arguments" yaml:"arguments"`
}

// CommandArguments holds a parsed rule. Negated values are prefixed with "!".
type CommandArguments struct {
	InsertType InsertType `json:"insertType,omitempty" yaml:"insertType,omitempty"`
	ChainName  string     `json:"chainName,omitempty" yaml:"chainName,omitempty"`

	Protocol     string `json:"protocol,omitempty" yaml:"protocol,omitempty"`
	Source       string `json:"source,omitempty" yaml:"source,omitempty"`
	Destination  string `json:"destination,omitempty" yaml:"destination,omitempty"`
	InInterface  string `json:"inInterface,omitempty" yaml:"inInterface,omitempty"`
	OutInterface string `json:"outInterface,omitempty" yaml:"outInterface,omitempty"`
	Fragment     string `json:"fragment,omitempty" yaml:"fragment,omitempty"`

	PacketCounter  string `json:"packetCounter,omitempty" yaml:"packetCounter,omitempty"`
	PacketPerBytes string `json:"packetPerBytes,omitempty" yaml:"packetPerBytes,omitempty"`

	Jump *Jump `json:"jump,omitempty" yaml:"jump,omitempty"`
	Goto *Goto `json:"goto,omitempty" yaml:"goto,omitempty"`

	Matches Matches `json:"matches" yaml:"matches"`
}

type Jump struct {
	TargetName string `json:"targetName" yaml:"targetName"`
	// Arguments are the target options following the target name, kept verbatim
	Arguments []string `json:"arguments,omitempty" yaml:"arguments,omitempty"`
}

type Goto struct {
	ChainName string `json:"chainName" yaml:"chainName"`
}

// Matches maps a match extension name to its options.
type Matches map[string]MatchOptions

// MatchOptions maps an option name to its value.
type MatchOptions map[string]string
