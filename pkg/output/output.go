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

package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/fabedge/iptsave/pkg/iptsave"
	"github.com/fabedge/iptsave/pkg/util/iptables"
)

const (
	FormatJSON    = "json"
	FormatYAML    = "yaml"
	FormatTable   = "table"
	FormatDump    = "dump"
	FormatRestore = "restore"
)

func Formats() []string {
	return []string{FormatJSON, FormatYAML, FormatTable, FormatDump, FormatRestore}
}

type Formatter interface {
	Format(w io.Writer, lines []iptsave.ParsedLine) error
}

type FormatterFunc func(w io.Writer, lines []iptsave.ParsedLine) error

func (fn FormatterFunc) Format(w io.Writer, lines []iptsave.ParsedLine) error {
	return fn(w, lines)
}

// NewFormatter returns the formatter called name. tables and chains only
// apply to the restore format.
func NewFormatter(name string, tables, chains []string) (Formatter, error) {
	switch name {
	case FormatJSON:
		return FormatterFunc(formatJSON), nil
	case FormatYAML:
		return FormatterFunc(formatYAML), nil
	case FormatTable:
		return FormatterFunc(formatTable), nil
	case FormatDump:
		return FormatterFunc(formatDump), nil
	case FormatRestore:
		return FormatterFunc(func(w io.Writer, lines []iptsave.ParsedLine) error {
			_, err := io.WriteString(w, iptables.Render(lines, tables, chains))
			return err
		}), nil
	default:
		return nil, fmt.Errorf("unknown output format: %s", name)
	}
}

func formatJSON(w io.Writer, lines []iptsave.ParsedLine) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(lines)
}

func formatYAML(w io.Writer, lines []iptsave.ParsedLine) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(lines); err != nil {
		return err
	}
	return encoder.Close()
}

func formatDump(w io.Writer, lines []iptsave.ParsedLine) error {
	printer := spew.ConfigState{
		Indent:                  "  ",
		SortKeys:                true,
		DisablePointerAddresses: true,
		DisableCapacities:       true,
	}
	printer.Fdump(w, lines)
	return nil
}

func formatTable(w io.Writer, lines []iptsave.ParsedLine) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Type", "Table", "Chain", "Detail"})
	table.SetAutoWrapText(false)

	for _, line := range lines {
		table.Append([]string{
			strconv.Itoa(line.Number),
			string(line.Type),
			tableOf(line),
			chainOf(line),
			detailOf(line),
		})
	}
	table.Render()

	return nil
}

func tableOf(line iptsave.ParsedLine) string {
	if line.Table != nil {
		return line.Table.Name
	}
	return line.OriginalTableName
}

func chainOf(line iptsave.ParsedLine) string {
	switch {
	case line.Chain != nil:
		return line.Chain.Name
	case line.Command != nil:
		return line.Command.Arguments.ChainName
	}
	return ""
}

func detailOf(line iptsave.ParsedLine) string {
	switch line.Type {
	case iptsave.LineTypeComment:
		return line.Comment
	case iptsave.LineTypeChain:
		policy := line.Chain.DefaultPolicy
		if !line.Chain.HasPolicy() {
			policy = iptables.PolicyNone
		}
		if line.Chain.Packets != nil && line.Chain.Bytes != nil {
			return fmt.Sprintf("%s [%d:%d]", policy, *line.Chain.Packets, *line.Chain.Bytes)
		}
		return policy
	case iptsave.LineTypeCommand:
		return describeCommand(line.Command.Arguments)
	}
	return ""
}

func describeCommand(args iptsave.CommandArguments) string {
	var parts []string
	add := func(name, value string) {
		if value != "" {
			parts = append(parts, name+"="+value)
		}
	}

	add("proto", args.Protocol)
	add("src", args.Source)
	add("dst", args.Destination)
	add("in", args.InInterface)
	add("out", args.OutInterface)
	add("frag", args.Fragment)

	for _, name := range sets.StringKeySet(args.Matches).List() {
		options := args.Matches[name]
		var kvs []string
		for _, key := range sets.StringKeySet(options).List() {
			kvs = append(kvs, key+":"+options[key])
		}
		parts = append(parts, fmt.Sprintf("%s{%s}", name, strings.Join(kvs, ",")))
	}

	switch {
	case args.Jump != nil:
		parts = append(parts, "-> "+args.Jump.TargetName)
	case args.Goto != nil:
		parts = append(parts, "=> "+args.Goto.ChainName)
	}

	return strings.Join(parts, " ")
}
