package main

import (
	"fmt"

	"github.com/aguther/aircraft/internal/config"
	"github.com/aguther/aircraft/internal/procedure"
	"github.com/spf13/cobra"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the preset procedures found in the configured directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		configDir, _ := cmd.Flags().GetString("config-dir")
		if err := config.Load(configDir); err != nil {
			fmt.Printf("Warning: %v\n", err)
		}

		repo := procedure.NewRepository()
		dir := config.GetPresetsConfig().Dir
		if _, err := repo.LoadDir(dir); err != nil {
			return fmt.Errorf("loading presets from %s: %w", dir, err)
		}

		if repo.Len() == 0 {
			fmt.Printf("No presets found in %s\n", dir)
			return nil
		}

		for _, id := range repo.IDs() {
			p, _ := repo.Get(id)
			fmt.Printf("%4d  %-30s %d steps\n", p.ID, p.Name, p.Size())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
