package cmd

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/grovetools/jana/pkg/service"
)

func NewShowCmd(svc **service.Service) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a node and, for documents, its content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			s := *svc

			sess, err := requireSession(s)
			if err != nil {
				return err
			}
			n, err := s.Open(ctx, sess, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			c, hasContent := s.Selection.Content()
			if raw {
				if !hasContent {
					return nil
				}
				encoded, err := c.Encode()
				if err != nil {
					return err
				}
				fmt.Fprint(out, encoded)
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "ID\t%s\n", n.ID)
			fmt.Fprintf(w, "LABEL\t%s\n", n.Label)
			fmt.Fprintf(w, "KIND\t%s\n", kindTitle(n.Kind))
			fmt.Fprintf(w, "PATH\t%s\n", strings.Join(s.Tree.Path(n.ID), " / "))
			if n.IsContainer() {
				fmt.Fprintf(w, "CHILDREN\t%d\n", len(n.Children))
			}
			if s.Tree.InTrash(n.ID) {
				fmt.Fprintln(w, "IN TRASH\tyes")
			}
			w.Flush()

			if hasContent {
				format := "text"
				if c.IsStructured() {
					format = "json"
				}
				fmt.Fprintf(out, "\n--- content (%s) ---\n%s\n", format, c.Display())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Print only the stored document content")

	return cmd
}
