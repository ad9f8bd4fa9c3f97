package cmd

import (
	"fmt"
	"log"
	"os"

	"MixGrid/server"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mixgrid_server",
	Short: "MixGrid is a music production timeline service.",
	Run: func(cmd *cobra.Command, args []string) {
		log.Println("Starting MixGrid server...")
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
