package cmd

import (
	"fmt"
	"os"

	"DiscBox/server"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "discbox",
	Short: "DiscBox is a personal media catalog server.",
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
