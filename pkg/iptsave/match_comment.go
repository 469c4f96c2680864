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

// CommentMatchParser parses "-m comment --comment ..." groups. iptables-save
// quotes comments containing spaces, so a value opening with a double quote
// runs until the token that closes it. An unclosed quote runs to the end of
// the group.
type CommentMatchParser struct{}

func (CommentMatchParser) ParseMatch(name string, args []string, into MatchOptions) error {
	parseMatchOptions(args, into, quotedValue)
	return nil
}

func quotedValue(args []string, i int) (string, int) {
	token := args[i]
	if !strings.HasPrefix(token, `"`) {
		return token, i + 1
	}

	if len(token) > 1 && strings.HasSuffix(token, `"`) {
		return token[1 : len(token)-1], i + 1
	}

	parts := []string{token[1:]}
	for i++; i < len(args); i++ {
		if strings.HasSuffix(args[i], `"`) {
			parts = append(parts, strings.TrimSuffix(args[i], `"`))
			return strings.Join(parts, " "), i + 1
		}
		parts = append(parts, args[i])
	}

	return strings.Join(parts, " "), i
}
