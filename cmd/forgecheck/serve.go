package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kuitang/forge-e2e/internal/forgetest"
	"github.com/kuitang/forge-e2e/internal/obs"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the in-process fake forge",
	Long: `Starts the fake forge the checks use when no target is configured, so the
suite can be pointed at it from another process or a remote browser grid.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		publicURL, _ := cmd.Flags().GetString("public-url")
		noProjects, _ := cmd.Flags().GetBool("disable-projects")
		levelName, _ := cmd.Flags().GetString("log-level")

		obs.Init()
		obs.SetLevel(obs.ParseLevel(levelName))
		logger := obs.Pkg("forgecheck")

		f, err := forgetest.New(forgetest.Options{DisableProjects: noProjects})
		if err != nil {
			return err
		}
		where := publicURL
		if where == "" {
			where = "http://" + addr
		}
		f.SetBaseURL(publicURL)

		srv := &http.Server{Addr: addr, Handler: f.Handler(), ReadHeaderTimeout: 10 * time.Second}
		serverErrors := make(chan error, 1)
		go func() {
			fmt.Fprintf(cmd.OutOrStdout(), "Serving fake forge on %s (user %s)\n", where, forgetest.DefaultUser.Name)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(shutdown)

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)
		case sig := <-shutdown:
			logger.Info("shutdown", "signal", sig.String())
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				return fmt.Errorf("graceful shutdown failed: %w", err)
			}
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "127.0.0.1:3000", "listen address")
	serveCmd.Flags().String("public-url", "", "URL the forge reports in html_url (default: the origin of each request)")
	serveCmd.Flags().Bool("disable-projects", false, "hide the projects tab")
}
