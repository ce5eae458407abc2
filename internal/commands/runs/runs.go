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

package runs

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/shepherd/internal/config"
	"github.com/tombee/shepherd/internal/history"
)

// NewRunsCommand creates the runs command.
func NewRunsCommand() *cobra.Command {
	var (
		configPath string
		dbPath     string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs from the history store",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := dbPath
			if path == "" {
				cfg, err := config.Load(configPath)
				if err != nil {
					return err
				}
				path = cfg.History.Path
			}
			if path == "" {
				return fmt.Errorf("no history database configured")
			}

			store, err := history.Open(path)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RUN ID\tEXECUTABLE\tOUTCOME\tEXIT\tSTARTED\tDURATION")
			for _, run := range runs {
				exit := "-"
				if run.ExitCode != nil {
					exit = fmt.Sprintf("%d", *run.ExitCode)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					run.ID, run.Executable, run.Outcome, exit,
					run.StartedAt.Local().Format(time.RFC3339),
					run.EndedAt.Sub(run.StartedAt).Round(time.Millisecond))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "shepherd.yaml", "Path to the supervision config file")
	cmd.Flags().StringVar(&dbPath, "db", "", "History database path (overrides the config file)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list (0 for all)")
	return cmd
}
