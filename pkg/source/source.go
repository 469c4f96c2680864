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

package source

import (
	"context"
	"io"
	"io/ioutil"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Stdin is the File path that reads standard input
const Stdin = "-"

// Source supplies the raw lines of an iptables-save dump
type Source interface {
	Lines(ctx context.Context) ([]string, error)
}

type Func func(ctx context.Context) ([]string, error)

func (fn Func) Lines(ctx context.Context) ([]string, error) {
	return fn(ctx)
}

// SplitLines splits a dump into lines. A trailing "\r" is removed from each
// line and a terminating newline does not produce a last empty line.
func SplitLines(data string) []string {
	if data == "" {
		return []string{}
	}

	lines := strings.Split(strings.TrimSuffix(data, "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}

	return lines
}

// ReadLines reads r to the end and splits it with SplitLines
func ReadLines(r io.Reader) ([]string, error) {
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, err
	}

	return SplitLines(string(data)), nil
}

// File reads a dump saved to Path, or standard input when Path is Stdin
type File struct {
	Path  string
	Stdin io.Reader
}

func (f File) Lines(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if f.Path == Stdin {
		stdin := f.Stdin
		if stdin == nil {
			stdin = os.Stdin
		}

		lines, err := ReadLines(stdin)
		return lines, errors.Wrap(err, "failed to read dump from stdin")
	}

	file, err := os.Open(f.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open dump file %s", f.Path)
	}
	defer file.Close()

	lines, err := ReadLines(file)
	return lines, errors.Wrapf(err, "failed to read dump file %s", f.Path)
}
