package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/grovetools/jana/pkg/journal"
	"github.com/grovetools/jana/pkg/service"
)

func NewLogCmd(svc **service.Service) *cobra.Command {
	var (
		op      string
		nodeID  string
		limit   int
		logJSON bool
	)

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the history of confirmed changes",
		Long: `List folder and document changes confirmed by the remote store, newest first.

Examples:
  jana log                      # Last 20 changes
  jana log --node Notes/todo.txt
  jana log --op delete-file --limit 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := (*svc).History(context.Background(), journal.Filter{
				Op:     journal.Op(op),
				NodeID: nodeID,
				Limit:  limit,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if logJSON {
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")
				if entries == nil {
					entries = []journal.Entry{}
				}
				return encoder.Encode(entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No changes recorded")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "WHEN\tOP\tNODE\tUSER\tDETAIL")
			for _, e := range entries {
				detail := e.Label
				if e.MovedPath != "" {
					detail = "-> " + e.MovedPath
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.At.Local().Format("2006-01-02 15:04:05"), e.Op, e.NodeID, e.User, detail)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&op, "op", "", "Only show this operation (add-folder, add-file, delete-folder, delete-file, save)")
	cmd.Flags().StringVar(&nodeID, "node", "", "Only show changes to this node id")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of entries (0 for all)")
	cmd.Flags().BoolVar(&logJSON, "json", false, "Output as JSON")

	return cmd
}
