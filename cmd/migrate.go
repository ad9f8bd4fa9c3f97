package cmd

import (
	"fmt"
	"log"

	"MixGrid/config"
	"MixGrid/db"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "初始化数据库表结构",
	Long:  `连接MySQL并创建MixGrid所需的用户、歌曲和时间轴条目表。`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()

		if err := db.ConnectDB(cfg); err != nil {
			log.Fatalf("无法连接到数据库: %v", err)
		}
		defer db.DB.Close()

		if err := db.InitDB(); err != nil {
			log.Fatalf("数据库初始化失败: %v", err)
		}
		fmt.Println("数据库表结构初始化完成。")
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
