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
	"fmt"
)

var (
	ErrMalformedChainLine = errors.New("malformed chain line")
	ErrUnhandledFlag      = errors.New("unhandled flag")
	ErrMissingArgument    = errors.New("missing flag argument")
)

// ParseError describes the first failure of a parse. Line and RawLine are
// zero when the error comes from ParseArguments alone.
type ParseError struct {
	Line    int
	RawLine string
	Token   string
	Err     error
}

func (e *ParseError) Error() string {
	msg := e.Err.Error()
	if e.Token != "" {
		msg = fmt.Sprintf("%s %q", msg, e.Token)
	}

	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s: %s", e.Line, msg, e.RawLine)
	}

	return msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func tokenError(err error, token string) *ParseError {
	return &ParseError{Token: token, Err: err}
}
