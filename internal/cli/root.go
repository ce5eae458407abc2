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

// Package cli assembles the shepherd command tree.
package cli

import (
	"github.com/spf13/cobra"

	graphcmd "github.com/tombee/shepherd/internal/commands/graph"
	runcmd "github.com/tombee/shepherd/internal/commands/run"
	runscmd "github.com/tombee/shepherd/internal/commands/runs"
	versioncmd "github.com/tombee/shepherd/internal/commands/version"
)

// SetVersion sets the version information (called from main).
func SetVersion(v, c, b string) {
	versioncmd.Set(v, c, b)
}

// NewRootCommand creates the root Cobra command for shepherd.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shepherd",
		Short: "Shepherd - single-process supervision",
		Long: `Shepherd launches one external program as a managed child process,
classifies its lifecycle into an observable state machine, streams its
output, and terminates it gracefully or forcibly. Non-terminating
processes can be kept alive with a rate-limited restart policy.`,
		SilenceUsage:  true, // Don't show usage on errors
		SilenceErrors: true, // We handle errors ourselves for proper exit codes
	}

	cmd.AddCommand(runcmd.NewRunCommand())
	cmd.AddCommand(runscmd.NewRunsCommand())
	cmd.AddCommand(graphcmd.NewGraphCommand())
	cmd.AddCommand(versioncmd.NewVersionCommand())

	return cmd
}
