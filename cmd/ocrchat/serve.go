package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/chriskillpack/ocrchat/chat"
	"github.com/chriskillpack/ocrchat/internal/web"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	sweepInterval   = time.Minute
	shutdownTimeout = 10 * time.Second
)

var serveCMD = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat web front end",
	Long:  "Serve the chat in a browser until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("listen") {
			cfg.Listen, _ = cmd.Flags().GetString("listen")
		}

		ctx := cmd.Context()
		logger := log.Default()
		app, oc, db, err := initApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		if db != nil {
			defer db.Close()
		}

		if check, _ := cmd.Flags().GetBool("check"); check && !oc.IsHealthy(ctx) {
			return fmt.Errorf("%s backend is not responding", oc.Name())
		}

		store := chat.NewStore()
		srv := web.NewServer(app, store, cfg.Listen, logger)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(srv.Start)
		g.Go(func() error {
			return store.Run(gctx, sweepInterval, cfg.SessionIdle)
		})
		g.Go(func() error {
			<-gctx.Done()
			logger.Println("shutting down")

			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(sctx)
		})

		logger.Printf("listening on http://%s, using %s model %s\n", cfg.Listen, oc.Name(), oc.Model())
		return g.Wait()
	},
}

func init() {
	serveCMD.Flags().String("listen", "localhost:8000", "Address the server listens on")
	serveCMD.Flags().Bool("check", false, "Check the backend is reachable before serving")
}
