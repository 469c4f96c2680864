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

// parseJump records the target after the -j flag at args[i]. A jump ends
// the rule, so the returned cursor is always len(args).
func parseJump(args []string, i int, out *CommandArguments) (int, error) {
	if i+1 >= len(args) {
		return 0, tokenError(ErrMissingArgument, args[i])
	}

	jump := &Jump{TargetName: args[i+1]}
	if i+2 < len(args) {
		jump.Arguments = append([]string(nil), args[i+2:]...)
	}
	out.Jump = jump

	return len(args), nil
}

// parseGoto is parseJump for -g. Tokens after the chain name are dropped.
func parseGoto(args []string, i int, out *CommandArguments) (int, error) {
	if i+1 >= len(args) {
		return 0, tokenError(ErrMissingArgument, args[i])
	}

	out.Goto = &Goto{ChainName: args[i+1]}

	return len(args), nil
}
