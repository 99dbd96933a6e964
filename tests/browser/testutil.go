// Package browser runs the end-to-end scenarios in a real browser through
// playwright. Tests skip when playwright or its browsers are not installed.
//
// By default the scenarios run against a shared in-process forge. Set
// FORGE_BASE_URL (with FORGE_USERNAME and FORGE_PASSWORD) to run them
// against a live one.
package browser

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/kuitang/forge-e2e/internal/artifacts"
	session "github.com/kuitang/forge-e2e/internal/browser"
	"github.com/kuitang/forge-e2e/internal/config"
	"github.com/kuitang/forge-e2e/internal/errs"
	"github.com/kuitang/forge-e2e/internal/fixtures"
	"github.com/kuitang/forge-e2e/internal/forgetest"
	"github.com/kuitang/forge-e2e/internal/obs"
	"github.com/kuitang/forge-e2e/internal/pages"
	"github.com/kuitang/forge-e2e/internal/scenario"
)

const (
	// CODING AGENT RULE: Always use these timeout constants for browser tests.
	// Never introduce a larger timeout value anywhere in tests/browser.
	browserMaxTimeout = 5 * time.Second
	browserPoll       = 100 * time.Millisecond
	browserSettle     = 2 * time.Second
)

var (
	forgeFixtureMu sync.Mutex
	sharedForge    *forgetest.Forge
	sharedServer   *httptest.Server
)

// BrowserTestEnv is one test's session plus the forge it talks to.
type BrowserTestEnv struct {
	Config  *config.Config
	Forge   *forgetest.Forge // nil against a live target
	BaseURL string
	Session *session.Session
	Site    *pages.Site
	Env     scenario.Env
}

// SetupBrowserTestEnv acquires a browser session for t and binds it to the
// target forge. The session is closed when t ends; if t failed, the page is
// captured to the configured artifact store first.
func SetupBrowserTestEnv(t *testing.T) *BrowserTestEnv {
	t.Helper()

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("suite configuration: %v", err)
	}
	fx, err := fixtures.FromConfig(cfg)
	if err != nil {
		t.Fatalf("fixtures: %v", err)
	}

	env := &BrowserTestEnv{Config: cfg, BaseURL: cfg.BaseURL}
	if !cfg.HasLiveTarget() {
		env.Forge, env.BaseURL = sharedInProcessForge(t)
	}

	sess, err := session.Acquire(session.Options{
		Engine:   cfg.Engine,
		GridURL:  cfg.GridURL,
		Headless: cfg.Headless,
		Timeout:  browserMaxTimeout,
	})
	if err != nil {
		if errs.CodeOf(err) == errs.Configuration {
			t.Fatalf("browser configuration: %v", err)
		}
		t.Skip("Playwright not available:", err)
	}
	env.Session = sess

	store, err := artifacts.FromConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("artifact store: %v", err)
	}
	t.Cleanup(func() {
		if t.Failed() && store != nil {
			ctx := obs.WithScenario(context.Background(), obs.Scenario{Name: t.Name(), Engine: string(sess.Engine())})
			if locs, err := artifacts.Capture(ctx, store, sess, t.Name()); err == nil {
				t.Logf("artifacts: %v", locs)
			}
		}
		if err := sess.Close(); err != nil {
			t.Logf("close session: %v", err)
		}
	})

	env.Env = scenario.Env{
		BaseURL: env.BaseURL,
		Timing: pages.Timing{
			Timeout:      min(cfg.ReadyTimeout, browserMaxTimeout),
			PollInterval: browserPoll,
			Settle:       min(cfg.SettleTimeout, browserSettle),
		},
		Fixtures: fx,
	}
	env.Site, err = pages.NewSite(sess, pages.Options{BaseURL: env.BaseURL, Timing: env.Env.Timing})
	if err != nil {
		t.Fatalf("site: %v", err)
	}
	return env
}

// RequireInProcess skips tests that need to inspect or reconfigure the forge.
func (env *BrowserTestEnv) RequireInProcess(t *testing.T) {
	t.Helper()
	if env.Forge == nil {
		t.Skip("needs the in-process forge")
	}
}

func sharedInProcessForge(t *testing.T) (*forgetest.Forge, string) {
	t.Helper()

	forgeFixtureMu.Lock()
	defer forgeFixtureMu.Unlock()

	if sharedForge != nil {
		return sharedForge, sharedServer.URL
	}
	f, err := forgetest.New(forgetest.Options{})
	if err != nil {
		t.Fatalf("Failed to create forge: %v", err)
	}
	sharedServer = httptest.NewServer(f.Handler())
	f.SetBaseURL(sharedServer.URL)
	sharedForge = f
	return sharedForge, sharedServer.URL
}

func cleanupSharedForge() {
	forgeFixtureMu.Lock()
	defer forgeFixtureMu.Unlock()
	if sharedServer != nil {
		sharedServer.Close()
	}
	sharedForge, sharedServer = nil, nil
}
