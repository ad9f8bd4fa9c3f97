package cmd

import (
	"MixGrid/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动MixGrid服务器",
	Long:  `启动MixGrid音乐制作系统的HTTP服务器，提供REST API和编辑器websocket服务`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
