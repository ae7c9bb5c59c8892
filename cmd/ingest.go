package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tessera-search/tessera/internal/ingest"
	"github.com/tessera-search/tessera/internal/progress"
)

var ingestForce bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [paths...]",
	Short: "Index documents once and exit",
	Long: `Walks the given paths (or the configured watch directories) and runs
the full extraction, embedding, and indexing pipeline over every
admitted file. Unchanged files are skipped unless --force is set.`,
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

		roots := args
		if len(roots) == 0 {
			roots = cfg.Watch.Dirs
		}
		if len(roots) == 0 {
			return fmt.Errorf("no paths given and no watch.dirs configured")
		}

		policy := ingest.NewPolicy(cfg.Watch)
		fingerprints, err := ingest.LoadFingerprints(cfg.DataDir)
		if err != nil {
			return err
		}

		files, skipped, err := collectFiles(roots, policy, fingerprints)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			fmt.Fprintf(os.Stderr, "Nothing to index (%d unchanged or excluded)\n", skipped)
			return nil
		}

		reporter := progress.NewReporter()
		reporter.Start(len(files))

		ctx := context.Background()
		var failed int
		for i, path := range files {
			reporter.Update(i, filepath.Base(path))
			doc, err := a.pipe.Run(ctx, path, nil)
			if err != nil {
				failed++
				fmt.Fprintf(os.Stderr, "\nError indexing %s: %v\n", path, err)
				continue
			}
			if info, statErr := os.Stat(path); statErr == nil {
				fingerprints.Remember(path, info)
			}
			if verbose {
				fmt.Fprintf(os.Stderr, "\n%s: %d nodes in %s\n", path, doc.Stats.TotalNodes, doc.Duration)
			}
		}
		reporter.Update(len(files), "done")
		reporter.Finish()

		if err := fingerprints.Save(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: saving fingerprint cache: %v\n", err)
		}

		fmt.Fprintf(os.Stderr, "Indexed %d documents (%d failed, %d skipped)\n",
			len(files)-failed, failed, skipped)
		if failed > 0 {
			return fmt.Errorf("%d documents failed", failed)
		}
		return nil
	},
}

// collectFiles walks the roots and returns admitted files, counting
// skips from policy or unchanged fingerprints.
func collectFiles(roots []string, policy *ingest.Policy, fingerprints *ingest.FingerprintCache) ([]string, int, error) {
	var files []string
	skipped := 0

	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			return nil, 0, fmt.Errorf("stat %s: %w", root, err)
		}

		if !info.IsDir() {
			if admit(root, info, policy, fingerprints) {
				files = append(files, root)
			} else {
				skipped++
			}
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: skipping %s: %v\n", path, err)
				return nil
			}
			if d.IsDir() {
				return nil
			}
			fi, err := d.Info()
			if err != nil {
				return nil
			}
			if admit(path, fi, policy, fingerprints) {
				files = append(files, path)
			} else {
				skipped++
			}
			return nil
		})
		if err != nil {
			return nil, 0, err
		}
	}
	return files, skipped, nil
}

func admit(path string, info fs.FileInfo, policy *ingest.Policy, fingerprints *ingest.FingerprintCache) bool {
	if ok, _ := policy.Admit(path, info.Size()); !ok {
		return false
	}
	if !ingestForce && fingerprints.Unchanged(path, info) {
		return false
	}
	return true
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestForce, "force", false, "reindex files even when unchanged")
	rootCmd.AddCommand(ingestCmd)
}
