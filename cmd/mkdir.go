package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/grovetools/jana/pkg/service"
)

func NewMkdirCmd(svc **service.Service) *cobra.Command {
	var parentID string

	cmd := &cobra.Command{
		Use:   "mkdir <name>",
		Short: "Create a folder",
		Long: `Create a folder at the root or inside another folder.

Examples:
  jana mkdir Notes                 # Root folder
  jana mkdir Work --parent Notes   # Folder inside Notes`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			s := *svc

			sess, err := requireSession(s)
			if err != nil {
				return err
			}
			if err := s.Gateway.Refresh(ctx, sess); err != nil {
				return err
			}
			n, err := s.Gateway.AddFolder(ctx, sess, parentID, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created folder %s [%s]\n", n.Label, n.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&parentID, "parent", "p", "", "Id of the parent folder (default: root)")

	return cmd
}
