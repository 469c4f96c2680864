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

import "strings"

const negationToken = "!"

// SplitArguments splits a rule line into its argument vector. Runs of
// whitespace count as one separator, quotes are not interpreted.
func SplitArguments(line string) []string {
	return strings.Fields(line)
}

// argAt returns args[i] or "" if i is out of range
func argAt(args []string, i int) string {
	if i < 0 || i >= len(args) {
		return ""
	}
	return args[i]
}

func negated(value string, negate bool) string {
	if negate {
		return negationToken + value
	}
	return value
}
