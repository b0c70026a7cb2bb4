// Package main 是 docingest 命令行与服务的入口点。
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "docingest",
		Short:         "多租户文档导入与语义检索服务",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "./configs/config.yaml", "配置文件路径")

	root.AddCommand(serveCmd())
	root.AddCommand(ingestCmd())
	root.AddCommand(searchCmd())
	root.AddCommand(documentsCmd())
	root.AddCommand(tokenCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
