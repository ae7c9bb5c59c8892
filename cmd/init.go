package cmd

import (
	"github.com/spf13/cobra"

	"github.com/tessera-search/tessera/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize tessera configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to configure tessera and generates a .tessera.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard()
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
