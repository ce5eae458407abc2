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

package version

import (
	"github.com/spf13/cobra"
)

// Version information (injected via ldflags at build time through Set).
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// Set records the build-time version information.
func Set(v, c, b string) {
	version, commit, buildDate = v, c, b
}

// NewVersionCommand creates the version command.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display version, commit hash, and build date for shepherd.`,
		RunE:  runVersion,
	}
}

func runVersion(cmd *cobra.Command, args []string) error {
	cmd.Printf("shepherd version %s\n", version)
	cmd.Printf("  commit:     %s\n", commit)
	cmd.Printf("  build date: %s\n", buildDate)
	return nil
}
