package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func documentsCmd() *cobra.Command {
	var tenant string
	cmd := &cobra.Command{
		Use:   "documents",
		Short: "管理租户集合中的文档",
	}
	cmd.PersistentFlags().StringVarP(&tenant, "tenant", "t", "", "租户")
	_ = cmd.MarkPersistentFlagRequired("tenant")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "列出已入库的文档",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			docs, err := a.documents.ListDocuments(cmd.Context(), tenant)
			if err != nil {
				return err
			}
			for _, d := range docs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\tpages=%d\tchunks=%d\n", d.DocID, d.Title, d.PageCount, d.ChunkCount)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "共 %d 个文档\n", len(docs))
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete [doc-id]",
		Short: "删除一个文档的全部分块",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.documents.DeleteDocument(cmd.Context(), tenant, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "已删除", args[0])
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "初始化租户集合",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			name, err := a.documents.InitCollection(cmd.Context(), tenant)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "集合已就绪:", name)
			return nil
		},
	})
	return cmd
}

func openApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return buildApp(cmd.Context(), cfg)
}
