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

package graph

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tombee/shepherd/pkg/supervisor"
)

// NewGraphCommand creates the graph command.
func NewGraphCommand() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the supervision state graph in DOT format",
		Long: `Render the supervisor's state transition table as a Graphviz DOT
document for documentation tooling. The output is deterministic and has
no effect on runtime behavior.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dot := supervisor.Graph()
			if outputPath == "" {
				cmd.Print(dot)
				return nil
			}
			if err := os.WriteFile(outputPath, []byte(dot), 0o644); err != nil {
				return fmt.Errorf("failed to write graph: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the graph to a file instead of stdout")
	return cmd
}
