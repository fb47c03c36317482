package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/grovetools/jana/pkg/service"
)

func NewRmCmd(svc **service.Service) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rm <id>",
		Short:   "Move a folder or document to the trash",
		Aliases: []string{"delete"},
		Args:    cobra.ExactArgs(1),
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
			res, err := s.Gateway.DeleteNode(ctx, sess, args[0])
			if err != nil {
				return err
			}
			msg := res.Message
			if msg == "" {
				msg = "Moved to trash"
			}
			if res.MovedPath != "" {
				msg += ": " + res.MovedPath
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}

	return cmd
}
