package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/grovetools/jana/pkg/service"
)

func NewEditCmd(svc **service.Service) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a document in $EDITOR",
		Long: `Open a document in your editor. Every write of the file is saved to the
remote store; closing the editor saves any remaining changes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			s := *svc

			sess, err := requireSession(s)
			if err != nil {
				return err
			}
			saves, err := s.Edit(ctx, sess, args[0])
			if err != nil {
				return err
			}
			if saves == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No changes")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%d saves)\n", args[0], saves)
			return nil
		},
	}

	return cmd
}
