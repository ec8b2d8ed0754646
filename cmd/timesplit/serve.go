package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"timesplit/internal/config"
	"timesplit/internal/migrate"
)

var (
	addrFlag   string
	statusFlag bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the timers, rules and split endpoints over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		addr := addrFlag
		if addr == "" {
			addr = cfg.HTTP.Addr
		}
		srv := a.HTTPServer(addr)
		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.ListenAndServe()
		}()
		logger.Info("listening", slog.String("addr", addr))

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-cmd.Context().Done():
			logger.Info("shutting down")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(ctx)
		}
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply MySQL schema migrations (STORE_BACKEND=mysql)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Store.Backend != config.BackendMySQL {
			return fmt.Errorf("migrations only apply to the mysql backend, STORE_BACKEND is %q", cfg.Store.Backend)
		}
		if statusFlag {
			ms, err := migrate.Status(cmd.Context(), cfg.Store.DSN)
			if err != nil {
				return err
			}
			for _, m := range ms {
				state := dimStyle.Render("pending")
				if m.Applied {
					state = splitStyle.Render("applied")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%04d  %-40s %s\n", m.Version, m.File, state)
			}
			return nil
		}
		if err := migrate.Run(cmd.Context(), cfg.Store.DSN, logger); err != nil {
			return err
		}
		logger.Info("migrations applied")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&addrFlag, "addr", "", "Listen address (default: HTTP_ADDR)")
	migrateCmd.Flags().BoolVar(&statusFlag, "status", false, "List migrations and whether they are applied")
}
