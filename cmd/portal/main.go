// Command portal 拉取 Rice Bowl 活动快照并把它对账到视图上。
//
//	portal serve              # 启动HTTP服务
//	portal board              # 在终端中显示看板
//	portal fetch              # 拉取一次并输出视图JSON
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "portal",
	Short:         "Rice Bowl 活动门户",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "配置文件路径 (默认在 ./config 和 . 中查找 config.yaml)")
	rootCmd.AddCommand(serveCmd, boardCmd, fetchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "portal: %v\n", err)
		os.Exit(1)
	}
}
