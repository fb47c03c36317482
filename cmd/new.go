package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/grovetools/jana/pkg/content"
	"github.com/grovetools/jana/pkg/service"
)

func NewNewCmd(svc **service.Service) *cobra.Command {
	var fromStdin bool

	cmd := &cobra.Command{
		Use:   "new <parent-id> <name>",
		Short: "Create a document inside a folder",
		Long: `Create an empty document inside a folder.

Examples:
  jana new Notes todo.txt                     # Empty document
  echo '{"done": false}' | jana new Notes t.json  # With initial content (auto-detected)`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			s := *svc

			// Auto-detect stdin if not explicitly set
			if !cmd.Flags().Changed("stdin") {
				stat, err := os.Stdin.Stat()
				if err == nil && (stat.Mode()&os.ModeCharDevice) == 0 {
					fromStdin = true
				}
			}

			sess, err := requireSession(s)
			if err != nil {
				return err
			}
			if err := s.Gateway.Refresh(ctx, sess); err != nil {
				return err
			}
			n, err := s.Gateway.AddDocument(ctx, sess, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created document %s [%s]\n", n.Label, n.ID)

			if fromStdin {
				body, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				if len(body) == 0 {
					return nil
				}
				if err := s.SelectForWrite(ctx, sess, n.ID); err != nil {
					return err
				}
				if err := s.Save(ctx, sess, content.Decode(string(body))); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "Read initial content from stdin")

	return cmd
}
