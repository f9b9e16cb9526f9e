// Package cmd contains all the commands included in the binary file.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRootCommand enables all children commands to read flags from CLI flags,
// environment variables prefixed with MERCATO, or config.yaml (in that order).
func NewRootCommand() *cobra.Command {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("MERCATO")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	configPaths := []string{"/etc/mercato", "$HOME/.mercato", "."}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	_ = viper.ReadInConfig()

	return &cobra.Command{
		Use:   "mercato",
		Short: "A graphql backend-for-frontend for a marketplace storefront",
		Long: `A graphql backend-for-frontend for a marketplace storefront.

Mercato sits between storefront clients and the backing entity stores and
resolves each graphql request through a batched, cached, access-controlled
resolution pipeline.`,
	}
}
