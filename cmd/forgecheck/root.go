package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kuitang/forge-e2e/internal/artifacts"
	"github.com/kuitang/forge-e2e/internal/config"
	"github.com/kuitang/forge-e2e/internal/errs"
	"github.com/kuitang/forge-e2e/internal/fixtures"
	"github.com/kuitang/forge-e2e/internal/forgetest"
	"github.com/kuitang/forge-e2e/internal/obs"
	"github.com/kuitang/forge-e2e/internal/pages"
	"github.com/kuitang/forge-e2e/internal/scenario"
)

var rootCmd = &cobra.Command{
	Use:   "forgecheck",
	Short: "Smoke-test a forge through its pages and REST API",
	Long: `forgecheck signs in, creates a project board and creates then deletes a
repository against the forge named by FORGE_BASE_URL (or --base-url). With no
target it starts an in-process forge and checks that instead.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command line and returns the process exit status.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return errs.ExitCode(errs.CodeOf(err))
	}
	return 0
}

func init() {
	f := rootCmd.PersistentFlags()
	f.String("base-url", "", "forge base URL (overrides FORGE_BASE_URL)")
	f.String("browser", "", "chrome or firefox (overrides BROWSER)")
	f.String("grid", "", "remote browser endpoint (overrides SELENIUM_GRID_URL)")
	f.Bool("headless", true, "run a local browser headless (overrides HEADLESS)")
	f.String("fixtures", "", "YAML fixture file (overrides FORGE_FIXTURES)")
	f.String("artifacts-dir", "", "directory for failure artifacts (overrides ARTIFACTS_DIR)")
	f.String("log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")
	f.String("driver", "browser", "page driver: browser (playwright) or html (no JavaScript)")
}

// loadConfig reads the environment, then applies the flags the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.FromEnv()
	flags := cmd.Flags()
	overlay := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	overlay("base-url", &cfg.BaseURL)
	overlay("browser", &cfg.Engine)
	overlay("grid", &cfg.GridURL)
	overlay("fixtures", &cfg.FixturesPath)
	overlay("artifacts-dir", &cfg.ArtifactsDir)
	overlay("log-level", &cfg.LogLevel)
	if flags.Changed("headless") {
		cfg.Headless, _ = flags.GetBool("headless")
	}

	obs.Init()
	obs.SetLevel(obs.ParseLevel(cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		return nil, errs.Wrap(errs.Configuration, "invalid suite configuration", err)
	}
	return cfg, nil
}

// target is a forge to check plus what it takes to shut it down.
type target struct {
	cfg   *config.Config
	env   scenario.Env
	token string
	// local is set when the checks run against the in-process forge.
	local bool
	stop  func()
}

// openTarget builds the scenario environment. Without a live forge it
// starts the in-process one on a loopback port and signs in as its
// default user.
func openTarget(ctx context.Context, cfg *config.Config) (*target, error) {
	fx, err := fixtures.FromConfig(cfg)
	if err != nil {
		return nil, errs.Wrap(errs.Configuration, "load fixtures", err)
	}
	if err := fx.Validate(); err != nil {
		return nil, errs.Wrap(errs.Configuration, "invalid fixtures", err)
	}
	store, err := artifacts.FromConfig(ctx, cfg)
	if err != nil {
		return nil, errs.Wrap(errs.Configuration, "artifact store", err)
	}

	t := &target{cfg: cfg, stop: func() {}}
	baseURL := cfg.BaseURL
	if !cfg.HasLiveTarget() {
		url, stop, err := startLocalForge(forgetest.Options{})
		if err != nil {
			return nil, err
		}
		baseURL = url
		t.local = true
		t.stop = stop
		if fx.Credentials.Token == "" {
			fx.Credentials.Token = forgetest.DefaultUser.Token
		}
	}
	t.token = fx.Credentials.Token
	t.env = scenario.Env{
		BaseURL: baseURL,
		Timing: pages.Timing{
			Timeout:      cfg.ReadyTimeout,
			PollInterval: cfg.PollInterval,
			Settle:       cfg.SettleTimeout,
		},
		Fixtures:  fx,
		Artifacts: store,
		Logger:    obs.Pkg("forgecheck"),
	}
	return t, nil
}

// startLocalForge serves a fake forge on 127.0.0.1 until stop is called.
func startLocalForge(opts forgetest.Options) (string, func(), error) {
	f, err := forgetest.New(opts)
	if err != nil {
		return "", nil, err
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, fmt.Errorf("listen: %w", err)
	}
	url := "http://" + ln.Addr().String()
	f.SetBaseURL(url)

	srv := &http.Server{Handler: f.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			obs.Pkg("forgecheck").Error("local_forge_stopped", "error", err)
		}
	}()
	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
	return url, stop, nil
}
