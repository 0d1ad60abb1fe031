package main

import (
	"fmt"
	"io"
	"strings"

	"shopify-uploader/internal/config"

	"github.com/spf13/cobra"
)

func newConfigCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or edit the settings document",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print every setting; secrets are masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.NewSettingsStore(o.configPath).Load()
			if err != nil {
				return err
			}
			printSettings(cmd.OutOrStdout(), settings)
			return nil
		},
	}

	set := &cobra.Command{
		Use:     "set KEY VALUE",
		Short:   "Store one setting",
		Example: "  upload-products config set SHOPIFY_STORE_URL my-store.myshopify.com",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := config.NewSettingsStore(o.configPath)
			settings, err := store.Load()
			if err != nil {
				return err
			}
			key := strings.ToUpper(strings.TrimSpace(args[0]))
			settings.Set(key, args[1])
			if err := store.Save(settings); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s saved to %s\n", key, store.Path())
			return nil
		},
	}

	cmd.AddCommand(show, set)
	return cmd
}

func printSettings(w io.Writer, settings config.Settings) {
	for _, key := range settings.Keys() {
		value, _ := settings.String(key)
		fmt.Fprintf(w, "%s=%s\n", key, maskSecret(key, value))
	}
}

func maskSecret(key, value string) string {
	if value == "" {
		return value
	}
	for _, marker := range []string{"TOKEN", "KEY", "PASSWORD"} {
		if strings.Contains(key, marker) {
			if len(value) <= 4 {
				return "****"
			}
			return "****" + value[len(value)-4:]
		}
	}
	return value
}
