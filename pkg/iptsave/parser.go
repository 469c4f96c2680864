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

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-logr/logr"
	"k8s.io/klog/v2/klogr"
)

const policyNone = "-"

var chainLinePattern = regexp.MustCompile(`(?i)^:([a-z0-9_-]+)\s+([a-z0-9_-]+)\s+(?:\[(\d+):(\d+)\])?`)

type Option func(p *Parser)

func WithMatchRegistry(registry *MatchRegistry) Option {
	return func(p *Parser) {
		p.matches = registry
	}
}

func WithLogger(log logr.Logger) Option {
	return func(p *Parser) {
		p.log = log
	}
}

// Parser turns iptables-save output into ParsedLine records. A Parser holds
// no per-parse state, so one instance may serve concurrent ParseLines calls.
type Parser struct {
	matches *MatchRegistry
	log     logr.Logger
}

func NewParser(opts ...Option) *Parser {
	p := &Parser{
		matches: NewMatchRegistry(),
		log:     klogr.New().WithName("iptsave"),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.matches == nil {
		p.matches = NewMatchRegistry()
	}

	return p
}

// ParseLines parses lines with a generic-only parser
func ParseLines(lines []string) ([]ParsedLine, error) {
	return NewParser().ParseLines(lines)
}

// ParseLines classifies lines in order. It returns one record per line, or
// nil and the first error encountered.
func (p *Parser) ParseLines(lines []string) ([]ParsedLine, error) {
	s := session{parser: p}
	parsed := make([]ParsedLine, 0, len(lines))

	for i, raw := range lines {
		p.log.V(5).Info("parsing line", "number", i+1)

		line, err := s.parseLine(i+1, raw)
		if err != nil {
			p.log.V(3).Info("failed to parse line", "number", i+1, "error", err.Error())
			return nil, err
		}
		parsed = append(parsed, line)
	}

	return parsed, nil
}

// session carries the state of one ParseLines call across lines
type session struct {
	parser *Parser
	// table is the name of the open table, empty when none is open
	table string
}

func (s *session) parseLine(number int, raw string) (ParsedLine, error) {
	line := ParsedLine{
		Type:   LineTypeUnknown,
		Number: number,
		Raw:    raw,
	}

	if strings.TrimSpace(raw) == "" {
		line.Type = LineTypeEmpty
		return line, nil
	}

	if strings.EqualFold(raw, "commit") {
		line.Type = LineTypeCommit
		s.table = ""
		return line, nil
	}

	switch raw[0] {
	case '#':
		line.Type = LineTypeComment
		line.Comment = strings.TrimSpace(raw[1:])
		line.OriginalTableName = s.table
	case '*':
		line.Type = LineTypeTable
		line.Table = &Table{Name: strings.TrimSpace(raw[1:])}
		s.table = line.Table.Name
	case ':':
		chain, err := parseChain(raw)
		if err != nil {
			return line, &ParseError{Line: number, RawLine: raw, Err: err}
		}
		line.Type = LineTypeChain
		line.Chain = chain
		line.OriginalTableName = s.table
	default:
		line.Type = LineTypeCommand
		line.OriginalTableName = s.table

		command, err := s.parseCommand(raw)
		if err != nil {
			var perr *ParseError
			if !errors.As(err, &perr) {
				perr = &ParseError{Err: err}
			}
			perr.Line, perr.RawLine = number, raw
			return line, perr
		}
		line.Command = command
	}

	return line, nil
}

func (s *session) parseCommand(raw string) (*Command, error) {
	args := SplitArguments(raw)
	s.parser.log.V(6).Info("parsing rule arguments", "arguments", args)

	parsed, err := ParseArguments(args, s.parser.matches)
	if err != nil {
		return nil, err
	}

	return &Command{
		RawArguments: args,
		Arguments:    parsed,
	}, nil
}

func parseChain(raw string) (*Chain, error) {
	m := chainLinePattern.FindStringSubmatch(raw)
	if m == nil {
		return nil, ErrMalformedChainLine
	}

	chain := &Chain{Name: m[1]}
	if m[2] != policyNone {
		chain.DefaultPolicy = m[2]
	}

	if m[3] != "" {
		packets, perr := strconv.ParseUint(m[3], 10, 64)
		bytes, berr := strconv.ParseUint(m[4], 10, 64)
		if perr == nil && berr == nil {
			chain.Packets, chain.Bytes = &packets, &bytes
		}
	}

	return chain, nil
}
