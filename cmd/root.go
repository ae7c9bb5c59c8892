package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "tessera",
	Short: "Multimodal document indexing and hybrid search",
	Long: `Tessera watches directories of documents (PDF, DOCX, Markdown,
images), extracts and chunks their content, embeds text and images,
and serves hybrid keyword + semantic + cross-modal search over HTTP
and MCP.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".tessera.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
