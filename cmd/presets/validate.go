package main

import (
	"fmt"
	"os"

	"github.com/aguther/aircraft/internal/procedure"
	"github.com/spf13/cobra"
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate <file>...",
	Short: "Validate preset definition files without running them",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		failed := 0
		for _, path := range args {
			repo := procedure.NewRepository()
			if err := repo.LoadFile(path); err != nil {
				fmt.Printf("FAIL  %s: %v\n", path, err)
				failed++
				continue
			}
			fmt.Printf("OK    %s\n", path)
		}
		if failed > 0 {
			fmt.Printf("%d of %d files failed validation\n", failed, len(args))
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
