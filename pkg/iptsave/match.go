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
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"
)

// MatchParser parses the options of one "-m name ..." group. args are the
// tokens after the extension name, up to the next -j/-g/-m flag. Parsed
// options are written into into, which already holds the options of
// earlier groups with the same name.
type MatchParser interface {
	ParseMatch(name string, args []string, into MatchOptions) error
}

type MatchParserFunc func(name string, args []string, into MatchOptions) error

func (fn MatchParserFunc) ParseMatch(name string, args []string, into MatchOptions) error {
	return fn(name, args, into)
}

type MatchRegistration struct {
	Name   string
	Parser MatchParser
}

// MatchRegistry maps match extension names to specialised parsers. It is
// read-only after creation and may be shared by concurrent parses.
type MatchRegistry struct {
	parsers map[string]MatchParser
	generic MatchParser
}

func NewMatchRegistry(registrations ...MatchRegistration) *MatchRegistry {
	r := &MatchRegistry{
		parsers: make(map[string]MatchParser, len(registrations)),
		generic: GenericMatchParser{},
	}

	for _, reg := range registrations {
		r.parsers[reg.Name] = reg.Parser
	}

	return r
}

// DefaultMatchRegistry returns a registry with the built-in specialised parsers
func DefaultMatchRegistry() *MatchRegistry {
	return NewMatchRegistry(
		MatchRegistration{Name: "comment", Parser: CommentMatchParser{}},
	)
}

// Lookup returns the parser registered for name, or the generic parser.
func (r *MatchRegistry) Lookup(name string) MatchParser {
	if p, ok := r.parsers[name]; ok && p != nil {
		return p
	}
	return r.generic
}

func (r *MatchRegistry) Names() []string {
	return sets.StringKeySet(r.parsers).List()
}

// GenericMatchParser treats the options as "[!] --key value" pairs. A token
// seen before any key becomes the key itself, and a key that is never
// followed by a value is not recorded.
type GenericMatchParser struct{}

func (GenericMatchParser) ParseMatch(name string, args []string, into MatchOptions) error {
	parseMatchOptions(args, into, singleValue)
	return nil
}

// valueReader returns the value starting at args[i] and the index after it
type valueReader func(args []string, i int) (string, int)

func singleValue(args []string, i int) (string, int) {
	return args[i], i + 1
}

func parseMatchOptions(args []string, into MatchOptions, readValue valueReader) {
	var (
		key    string
		negate bool
	)

	for i := 0; i < len(args); {
		token := args[i]

		switch {
		case token == negationToken:
			negate = true
			i++
		case strings.HasPrefix(token, "--"):
			key = token[2:]
			i++
		case key == "":
			key = token
			i++
		default:
			var value string
			value, i = readValue(args, i)
			into[key] = negated(value, negate)
			negate = false
		}
	}
}
