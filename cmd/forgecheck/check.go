package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/kuitang/forge-e2e/internal/browser"
	"github.com/kuitang/forge-e2e/internal/errs"
	"github.com/kuitang/forge-e2e/internal/forgeapi"
	"github.com/kuitang/forge-e2e/internal/forgetest"
	"github.com/kuitang/forge-e2e/internal/obs"
	"github.com/kuitang/forge-e2e/internal/scenario"
)

// check is one named smoke check.
type check struct {
	name string
	// needsPage is false for checks that only talk to the API.
	needsPage bool
	run       func(ctx context.Context, t *target, d scenario.Driver) error
}

var checks = map[string]check{
	"login": {
		name:      "login",
		needsPage: true,
		run: func(_ context.Context, t *target, d scenario.Driver) error {
			_, err := t.env.SignIn(d)
			return err
		},
	},
	"project": {
		name:      "project",
		needsPage: true,
		run: func(_ context.Context, t *target, d scenario.Driver) error {
			_, err := t.env.CreateProject(d)
			return err
		},
	},
	"api": {
		name: "api",
		run: func(ctx context.Context, t *target, _ scenario.Driver) error {
			if t.token == "" {
				return errs.New(errs.Configuration, "FORGE_API_TOKEN is required for the api check")
			}
			client := forgeapi.NewClient(t.env.BaseURL, forgeapi.Options{
				Token: t.token,
				RPS:   t.cfg.APIRPS,
				Burst: t.cfg.APIBurst,
			})
			return t.env.RepoLifecycle(ctx, client)
		},
	},
}

func newCheckCmd(use, short string, names ...string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChecks(cmd, names)
		},
	}
}

func init() {
	rootCmd.AddCommand(
		newCheckCmd("login", "Sign in with the fixture credentials", "login"),
		newCheckCmd("project", "Create the fixture project board", "project"),
		newCheckCmd("api", "Create and delete the fixture repository through the API", "api"),
		newCheckCmd("all", "Run every check", "login", "project", "api"),
	)
}

func runChecks(cmd *cobra.Command, names []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := obs.WithScenario(cmd.Context(), obs.Scenario{})
	t, err := openTarget(ctx, cfg)
	if err != nil {
		return err
	}
	defer t.stop()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "forgecheck")
	fmt.Fprint(out, cfg.Summary())
	if t.local {
		fmt.Fprintf(out, "  Serving:  %s\n", t.env.BaseURL)
	}
	creds := t.env.Fixtures.Credentials
	fmt.Fprintf(out, "  User:     %s (owner %s)\n", creds.Username, creds.Owner())
	fmt.Fprintln(out)

	driverKind, _ := cmd.Flags().GetString("driver")
	var worst error
	for _, name := range names {
		c := checks[name]
		res := runOne(ctx, t, c, driverKind)
		report(out, res)
		if res.Err != nil && (worst == nil || errs.ExitCode(errs.CodeOf(res.Err)) > errs.ExitCode(errs.CodeOf(worst))) {
			worst = res.Err
		}
	}
	return worst
}

// runOne gives each page check a fresh driver so one failure cannot leak
// state into the next.
func runOne(ctx context.Context, t *target, c check, driverKind string) scenario.Result {
	if !c.needsPage {
		return t.env.Run(ctx, c.name, nil, func(ctx context.Context) error { return c.run(ctx, t, nil) })
	}

	switch driverKind {
	case "html":
		d := forgetest.NewHTMLDriver()
		return t.env.Run(ctx, c.name, d, func(ctx context.Context) error { return c.run(ctx, t, d) })
	case "browser", "":
		sess, err := browser.Acquire(browser.Options{
			Engine:   t.cfg.Engine,
			GridURL:  t.cfg.GridURL,
			Headless: t.cfg.Headless,
			Logger:   obs.Pkg("browser"),
		})
		if err != nil {
			return scenario.Result{Name: c.name, Err: err}
		}
		defer sess.Close()
		ctx = obs.WithScenario(ctx, obs.Scenario{Engine: string(sess.Engine())})
		return t.env.Run(ctx, c.name, sess, func(ctx context.Context) error { return c.run(ctx, t, sess) })
	default:
		return scenario.Result{
			Name: c.name,
			Err:  errs.New(errs.Configuration, fmt.Sprintf("unknown driver %q (want browser or html)", driverKind)),
		}
	}
}

func report(w io.Writer, res scenario.Result) {
	if res.OK() {
		fmt.Fprintf(w, "  PASS  %-8s %s\n", res.Name, res.Duration.Round(time.Millisecond))
		return
	}
	fmt.Fprintf(w, "  FAIL  %-8s [%s] %v\n", res.Name, errs.CodeOf(res.Err), res.Err)
	for _, loc := range res.Artifacts {
		fmt.Fprintf(w, "        artifact: %s\n", loc)
	}
}
