// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/topic-scout/internal/store"
)

var exportCmd = &cobra.Command{
	Use:   "export [topic-id]",
	Short: "Export a topic's merged entities to YAML or JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := store.New(cfg.Research.StorePath)
		if err != nil {
			return err
		}
		defer st.Close()

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			return st.ExportJSON(cmd.Context(), args[0], os.Stdout)
		}
		return st.ExportYAML(cmd.Context(), args[0], os.Stdout)
	},
}

func init() {
	exportCmd.Flags().Bool("json", false, "export as JSON instead of YAML")

	rootCmd.AddCommand(exportCmd)
}
