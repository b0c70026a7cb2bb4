package main

import (
	"errors"
	"fmt"

	"docingest-go/internal/model"
	"docingest-go/pkg/token"

	"github.com/spf13/cobra"
)

func tokenCmd() *cobra.Command {
	var (
		tenant string
		role   string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "为租户签发 API token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Auth.Secret == "" {
				return errors.New("auth.secret 未配置")
			}
			normalized, err := model.NormalizeTenant(tenant)
			if err != nil {
				return err
			}
			m := token.NewJWTManager(cfg.Auth.Secret, cfg.Auth.TokenExpireHours)
			tok, err := m.GenerateToken(normalized, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVarP(&tenant, "tenant", "t", "", "租户")
	cmd.Flags().StringVar(&role, "role", token.RoleTenant, "角色: tenant | admin")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}
