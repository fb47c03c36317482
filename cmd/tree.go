package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/grovetools/jana/pkg/service"
)

func NewTreeCmd(svc **service.Service) *cobra.Command {
	var (
		format  string
		showIDs bool
	)

	cmd := &cobra.Command{
		Use:     "tree",
		Short:   "Show the workspace tree",
		Aliases: []string{"ls"},
		Long: `Fetch the workspace tree from the remote store and print it.

Examples:
  jana tree                # Indented outline, trash last
  jana tree --ids          # Include node ids
  jana tree --format json  # Tree as JSON
  jana tree --format yaml  # Tree as YAML`,
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
			roots := displayOrder(s.Tree.Roots())

			out := cmd.OutOrStdout()
			switch format {
			case "text":
				printTree(out, roots, showIDs)
			case "json":
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")
				return encoder.Encode(roots)
			case "yaml":
				encoder := yaml.NewEncoder(out)
				encoder.SetIndent(2)
				if err := encoder.Encode(roots); err != nil {
					return err
				}
				return encoder.Close()
			default:
				return fmt.Errorf("unknown format %q (use text, json or yaml)", format)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json, yaml")
	cmd.Flags().BoolVar(&showIDs, "ids", false, "Show node ids")

	return cmd
}
