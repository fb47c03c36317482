package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/grovetools/jana/cmd"
	"github.com/grovetools/jana/cmd/config"
	"github.com/grovetools/jana/pkg/service"
)

var svc *service.Service

func main() {
	rootCmd := &cobra.Command{
		Use:          "jana",
		Short:        "A client for a remote folder/document workspace",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	config.AddGlobalFlags(rootCmd)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// This runs once before any subcommand
		config.InitConfig()
		logger := config.NewLogger()

		var err error
		svc, err = config.InitService(logger)
		if err != nil {
			return err
		}
		logger.WithField("base_url", svc.Config.BaseURL).Debug("Service initialized")
		return nil
	}
	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if svc == nil {
			return nil
		}
		return svc.Close()
	}

	// Add subcommands
	rootCmd.AddCommand(cmd.NewTreeCmd(&svc))
	rootCmd.AddCommand(cmd.NewShowCmd(&svc))
	rootCmd.AddCommand(cmd.NewMkdirCmd(&svc))
	rootCmd.AddCommand(cmd.NewNewCmd(&svc))
	rootCmd.AddCommand(cmd.NewRmCmd(&svc))
	rootCmd.AddCommand(cmd.NewSaveCmd(&svc))
	rootCmd.AddCommand(cmd.NewEditCmd(&svc))
	rootCmd.AddCommand(cmd.NewLoginCmd(&svc))
	rootCmd.AddCommand(cmd.NewLogoutCmd(&svc))
	rootCmd.AddCommand(cmd.NewWhoamiCmd(&svc))
	rootCmd.AddCommand(cmd.NewLogCmd(&svc))
	rootCmd.AddCommand(cmd.NewVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", cmd.Explain(err))
		os.Exit(1)
	}
}
