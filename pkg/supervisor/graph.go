// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package supervisor

import (
	"fmt"
	"strings"
)

// Graph renders the transition table in Graphviz DOT format for
// documentation tooling. The output is a pure function of the table:
// states appear in declaration order, edges in table order, so the result
// is stable across calls. Runtime state is not consulted.
func Graph() string {
	var b strings.Builder
	b.WriteString("digraph supervisor {\n")
	b.WriteString("\trankdir=LR;\n")
	for _, s := range States() {
		shape := "ellipse"
		if s.IsTerminal() {
			shape = "doublecircle"
		}
		fmt.Fprintf(&b, "\t%q [shape=%s];\n", s.String(), shape)
	}
	for _, t := range Transitions() {
		fmt.Fprintf(&b, "\t%q -> %q;\n", t.From.String(), t.To.String())
	}
	b.WriteString("}\n")
	return b.String()
}
