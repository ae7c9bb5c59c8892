package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tessera-search/tessera/internal/ingest"
	"github.com/tessera-search/tessera/internal/node"
	"github.com/tessera-search/tessera/internal/server"
)

var (
	servePort    int
	serveNoWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the tessera server: watcher, ingestion queue, and search API",
	Long: `Starts the full tessera service: watches the configured directories,
queues and indexes changed documents, and serves the search API over
HTTP with a WebSocket event stream at /ws/events.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if servePort > 0 {
			cfg.Server.Port = servePort
		}

		a, err := buildApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// Queue dispatch loop.
		queueDone := make(chan struct{})
		go func() {
			defer close(queueDone)
			a.queue.Run(ctx)
		}()

		// Filesystem watcher.
		if !serveNoWatch && len(cfg.Watch.Dirs) > 0 {
			watcher, err := ingest.NewWatcher(cfg.Watch, a.queue.Enqueue)
			if err != nil {
				return fmt.Errorf("starting watcher: %w", err)
			}
			go func() {
				if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
					fmt.Fprintf(os.Stderr, "Warning: watcher stopped: %v\n", err)
				}
			}()
		}

		srv := server.New(server.Config{
			Port:     cfg.Server.Port,
			AllowAll: cfg.Server.AllowAll,
		}, a.queue, a.engine, a.embedder, a.store, a.index, a.extract)

		go func() {
			<-ctx.Done()
			fmt.Fprintln(os.Stderr, "\nShutting down...")
			srv.Shutdown(context.Background())
		}()

		fmt.Fprintf(os.Stderr, "tessera v%s starting on port %d\n", Version, cfg.Server.Port)
		fmt.Fprintf(os.Stderr, "  Data: %s\n", cfg.DataDir)
		fmt.Fprintf(os.Stderr, "  Watching: %v\n", cfg.Watch.Dirs)
		fmt.Fprintf(os.Stderr, "  Indexed nodes: %d text, %d image\n",
			a.store.Count(node.KindText), a.store.Count(node.KindImage))

		err = srv.Start()
		// Wait for the queue to drain in-flight jobs before persisting.
		<-queueDone
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "override the configured HTTP port")
	serveCmd.Flags().BoolVar(&serveNoWatch, "no-watch", false, "disable the filesystem watcher")
	rootCmd.AddCommand(serveCmd)
}
