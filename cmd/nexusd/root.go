package main

import (
	"github.com/spf13/cobra"
)

var configPath string

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nexusd",
		Short: "nexusd runs the multi-model query execution core as a server",
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a TOML or YAML config file")
	cmd.AddCommand(serveCmd())
	cmd.AddCommand(versionCmd())
	cmd.AddCommand(exportCmd())
	cmd.AddCommand(importCmd())
	return cmd
}
