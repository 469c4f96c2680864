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
	"context"
	"time"

	"github.com/avast/retry-go"
	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"k8s.io/klog/v2/klogr"
	utilexec "k8s.io/utils/exec"

	"github.com/fabedge/iptsave/pkg/source"
)

// Saver captures the live ruleset by running iptables-save or ip6tables-save
type Saver struct {
	command string
	tables  []string
	exec    utilexec.Interface

	attempts uint
	delay    time.Duration
	log      logr.Logger
}

type SaverOption func(s *Saver)

func WithExec(exec utilexec.Interface) SaverOption {
	return func(s *Saver) {
		s.exec = exec
	}
}

func WithRetry(attempts uint, delay time.Duration) SaverOption {
	return func(s *Saver) {
		s.attempts = attempts
		s.delay = delay
	}
}

func WithSaverLogger(log logr.Logger) SaverOption {
	return func(s *Saver) {
		s.log = log
	}
}

// NewSaver creates a Saver for protocol. With tables given, the save command
// runs once per table with "-t TABLE" and the outputs are concatenated.
func NewSaver(protocol Protocol, tables []string, opts ...SaverOption) (*Saver, error) {
	command, err := SaveCommand(protocol)
	if err != nil {
		return nil, err
	}

	s := &Saver{
		command:  command,
		tables:   tables,
		exec:     utilexec.New(),
		attempts: 1,
		log:      klogr.New().WithName("saver"),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.attempts == 0 {
		s.attempts = 1
	}

	return s, nil
}

var _ source.Source = &Saver{}

func (s *Saver) Lines(ctx context.Context) ([]string, error) {
	if len(s.tables) == 0 {
		return s.save(ctx)
	}

	var lines []string
	for _, table := range s.tables {
		tableLines, err := s.save(ctx, "-t", table)
		if err != nil {
			return nil, err
		}
		lines = append(lines, tableLines...)
	}

	return lines, nil
}

func (s *Saver) save(ctx context.Context, args ...string) ([]string, error) {
	var output []byte
	err := retry.Do(
		func() error {
			out, err := s.exec.CommandContext(ctx, s.command, args...).Output()
			if err != nil {
				return err
			}
			output = out
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(s.attempts),
		retry.Delay(s.delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, utilexec.ErrExecutableNotFound)
		}),
		retry.OnRetry(func(n uint, err error) {
			s.log.V(3).Info("failed to save rules, retry", "command", s.command, "args", args, "attempt", n+1, "error", err.Error())
		}),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to run %s %v", s.command, args)
	}

	s.log.V(6).Info("rules saved", "command", s.command, "args", args, "size", len(output))
	return source.SplitLines(string(output)), nil
}
