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

func NewSaveCmd(svc **service.Service) *cobra.Command {
	var (
		file   string
		asText bool
	)

	cmd := &cobra.Command{
		Use:   "save <id>",
		Short: "Replace the content of a document",
		Long: `Replace the content of a document with the contents of a file or stdin.
Content that parses as JSON is stored as structured content, anything else as text.

Examples:
  jana save Notes/todo.txt --file todo.txt
  echo '{"a": 1}' | jana save Notes/data.json
  echo '42' | jana save Notes/answer.txt --text   # Keep as text`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			s := *svc

			var (
				body []byte
				err  error
			)
			if file != "" {
				body, err = os.ReadFile(file)
			} else {
				body, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return fmt.Errorf("read content: %w", err)
			}

			c := content.Decode(string(body))
			if asText {
				c = content.Text(string(body))
			}

			sess, err := requireSession(s)
			if err != nil {
				return err
			}
			if _, err := s.OpenForWrite(ctx, sess, args[0]); err != nil {
				return err
			}
			if err := s.Save(ctx, sess, c); err != nil {
				return err
			}
			kind := "text"
			if c.IsStructured() {
				kind = "structured"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%s, %d bytes)\n", args[0], kind, len(body))
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Read content from this file instead of stdin")
	cmd.Flags().BoolVar(&asText, "text", false, "Store the content as text even if it parses as JSON")

	return cmd
}
