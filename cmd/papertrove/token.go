package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papertrove/papertrove/internal/auth"
)

func buildTokenCmd() *cobra.Command {
	var (
		configPath string
		userID     string
		tenantID   string
		admin      bool
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a JWT for API access",
		Example: `  papertrove token --config papertrove.yaml --user alice --tenant acme
  papertrove token --config papertrove.yaml --user ops --tenant acme --admin`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			service := auth.NewService(cfg.Auth)
			if !service.Enabled() {
				return fmt.Errorf("auth is disabled: set auth.jwt_secret in the config")
			}

			token, err := service.GenerateJWT(&auth.Identity{
				UserID:   userID,
				TenantID: tenantID,
				Admin:    admin,
			})
			if err != nil {
				return fmt.Errorf("generate token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	cmd.Flags().StringVar(&userID, "user", "", "User ID claim")
	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant ID claim")
	cmd.Flags().BoolVar(&admin, "admin", false, "Grant the admin capability")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("tenant")

	return cmd
}
