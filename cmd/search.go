package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tessera-search/tessera/internal/search"
)

var (
	searchStrategy string
	searchLimit    int
	searchImage    string
	searchExplain  bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the indexed documents from the command line",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		a, err := buildApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		q := search.Query{
			ImagePath: searchImage,
			Options: search.Options{
				Strategy: search.Strategy(searchStrategy),
				TopK:     searchLimit,
				Rerank:   true,
				Explain:  searchExplain,
			},
		}
		if len(args) > 0 {
			q.Text = args[0]
		}

		resp, err := a.engine.Search(context.Background(), q)
		if err != nil {
			return err
		}

		if resp.Degraded {
			fmt.Printf("Note: %s\n\n", resp.Note)
		}
		if len(resp.Results) == 0 {
			fmt.Println("No results.")
			for _, s := range resp.Suggestions {
				fmt.Printf("  hint: %s\n", s)
			}
			return nil
		}

		fmt.Printf("%d results (%s, %dms):\n\n", resp.Total, resp.Strategy, resp.TookMS)
		for i, r := range resp.Results {
			fmt.Printf("%d. [%.3f] %s  doc=%s page=%d\n", i+1, r.Score, r.Kind, r.DocumentID, r.Page)
			if r.Snippet != "" {
				fmt.Printf("   %s\n", r.Snippet)
			} else if r.Content != "" {
				fmt.Printf("   %s\n", r.Content)
			}
			if searchExplain && r.Explanation != "" {
				fmt.Printf("   %s\n", r.Explanation)
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchStrategy, "strategy", "hybrid", "search strategy: keyword, semantic, cross_modal, or hybrid")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "maximum number of results")
	searchCmd.Flags().StringVar(&searchImage, "image", "", "search by image file instead of (or alongside) text")
	searchCmd.Flags().BoolVar(&searchExplain, "explain", false, "show per-result score breakdown")
	rootCmd.AddCommand(searchCmd)
}
