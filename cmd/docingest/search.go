package main

import (
	"encoding/json"
	"fmt"

	"docingest-go/internal/model"
	"docingest-go/pkg/log"

	"github.com/spf13/cobra"
)

func searchCmd() *cobra.Command {
	var (
		tenant    string
		topK      int
		threshold float64
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "在租户集合中执行语义检索",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			defer log.Sync()

			a, err := buildApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			req := model.SearchRequest{Tenant: tenant, Query: args[0], TopK: &topK}
			if cmd.Flags().Changed("threshold") {
				req.ScoreThreshold = &threshold
			}
			res, err := a.search.Search(cmd.Context(), req)
			if err != nil {
				return err
			}

			if asJSON {
				data, err := json.MarshalIndent(res, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			if len(res.Results) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "没有找到结果。")
				return nil
			}
			for i, r := range res.Results {
				fmt.Fprintf(cmd.OutOrStdout(), "[%d] %s p.%d (%.3f)\n", i+1, r.Metadata.Title, r.Metadata.Page, r.Score)
				fmt.Fprintln(cmd.OutOrStdout(), "    "+snippet(r.Text, 160))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&tenant, "tenant", "t", "", "租户")
	cmd.Flags().IntVarP(&topK, "top-k", "n", 5, "返回结果数")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "最低相似度")
	cmd.Flags().BoolVar(&asJSON, "json", false, "以 JSON 输出")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

func snippet(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}
