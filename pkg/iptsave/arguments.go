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

	"k8s.io/apimachinery/pkg/util/sets"
)

// matchTerminators end the token range of a "-m name ..." group
var matchTerminators = sets.NewString("-j", "--jump", "-g", "--goto", "-m", "--match")

// ParseArguments interprets the argument vector of one rule line. A nil
// registry parses every match extension with GenericMatchParser.
func ParseArguments(args []string, registry *MatchRegistry) (CommandArguments, error) {
	if registry == nil {
		registry = NewMatchRegistry()
	}

	p := argumentParser{
		args:     args,
		registry: registry,
		out:      CommandArguments{Matches: Matches{}},
	}

	if err := p.run(); err != nil {
		return CommandArguments{}, err
	}

	return p.out, nil
}

type argumentParser struct {
	args     []string
	registry *MatchRegistry
	out      CommandArguments
}

func (p *argumentParser) run() error {
	negate := false

	for i := 0; i < len(p.args); {
		if p.args[i] == negationToken {
			negate = true
			i++
			continue
		}

		next, err := p.parseFlag(i, negate)
		if err != nil {
			return err
		}

		i = next
		negate = false
	}

	return nil
}

// parseFlag handles the flag at args[i] and returns the index of the next
// unconsumed token
func (p *argumentParser) parseFlag(i int, negate bool) (int, error) {
	switch p.args[i] {
	case "-A", "--append":
		chain, err := p.value(i)
		if err != nil {
			return 0, err
		}
		p.out.InsertType = InsertAppend
		p.out.ChainName = chain
		return i + 2, nil
	case "-p", "--protocol":
		return p.setValue(i, negate, &p.out.Protocol)
	case "-s", "--source":
		return p.setValue(i, negate, &p.out.Source)
	case "-d", "--destination":
		return p.setValue(i, negate, &p.out.Destination)
	case "-i", "--in-interface":
		return p.setValue(i, negate, &p.out.InInterface)
	case "-o", "--out-interface":
		return p.setValue(i, negate, &p.out.OutInterface)
	case "-f", "--fragment":
		return p.setValue(i, negate, &p.out.Fragment)
	case "-c", "--set-counters":
		// the counters are read one token further than "-c PKTS BYTES" puts them
		p.out.PacketPerBytes = argAt(p.args, i+2)
		p.out.PacketCounter = argAt(p.args, i+3)
		return i + 3, nil
	case "-j", "--jump":
		return parseJump(p.args, i, &p.out)
	case "-g", "--goto":
		return parseGoto(p.args, i, &p.out)
	case "-m", "--match":
		return p.parseMatch(i)
	default:
		return 0, tokenError(ErrUnhandledFlag, p.args[i])
	}
}

func (p *argumentParser) value(i int) (string, error) {
	if i+1 >= len(p.args) {
		return "", tokenError(ErrMissingArgument, p.args[i])
	}
	return p.args[i+1], nil
}

func (p *argumentParser) setValue(i int, negate bool, field *string) (int, error) {
	value, err := p.value(i)
	if err != nil {
		return 0, err
	}

	*field = negated(value, negate)
	return i + 2, nil
}

func (p *argumentParser) parseMatch(i int) (int, error) {
	end := len(p.args)
	for j := i + 1; j < len(p.args); j++ {
		if matchTerminators.Has(p.args[j]) {
			end = j
			break
		}
	}

	if end == i+1 {
		return 0, tokenError(ErrMissingArgument, p.args[i])
	}

	name := p.args[i+1]
	options, ok := p.out.Matches[name]
	if !ok {
		options = MatchOptions{}
		p.out.Matches[name] = options
	}

	if err := p.registry.Lookup(name).ParseMatch(name, p.args[i+2:end], options); err != nil {
		var perr *ParseError
		if errors.As(err, &perr) {
			return 0, perr
		}
		return 0, &ParseError{Token: name, Err: err}
	}

	return end, nil
}
