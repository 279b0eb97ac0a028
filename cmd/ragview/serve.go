package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/suPer8Hu/ragview/internal/httpapi"
	"github.com/suPer8Hu/ragview/internal/httpapi/handlers"
	"github.com/suPer8Hu/ragview/internal/ingest"
)

func init() {
	var (
		addr   string
		async  bool
		resume bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat session as a JSON API for a browser front end",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			if addr == "" {
				addr = a.cfg.HTTPAddr
			}

			hist, err := a.manager(ctx, resume)
			if err != nil {
				return err
			}
			var jobs *ingest.Service
			if async {
				if jobs, err = a.jobs(); err != nil {
					return err
				}
			}

			gin.SetMode(gin.ReleaseMode)
			srv := &http.Server{
				Addr:              addr,
				Handler:           httpapi.NewRouter(handlers.NewHandler(a.gw, hist, jobs, a.settings())),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errc := make(chan error, 1)
			go func() {
				log.Info().Str("addr", addr).Bool("async", async).Msg("http server listening")
				errc <- srv.ListenAndServe()
			}()

			select {
			case err := <-errc:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			log.Info().Msg("shutting down")
			sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from HTTP_ADDR)")
	cmd.Flags().BoolVar(&async, "async", false, "enable queued URL ingestion (needs RabbitMQ)")
	cmd.Flags().BoolVar(&resume, "resume", false, "open the most recent conversation")
	rootCmd.AddCommand(cmd)
}
