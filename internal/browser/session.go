// Package browser acquires playwright sessions and adapts them to the page
// components' Driver protocol.
package browser

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/forge-e2e/internal/errs"
	"github.com/kuitang/forge-e2e/internal/obs"
	"github.com/kuitang/forge-e2e/internal/pages"
)

// Engine is a supported browser engine.
type Engine string

const (
	Chrome  Engine = "chrome"
	Firefox Engine = "firefox"
)

// ParseEngine accepts "chrome" (or "chromium") and "firefox", in any case.
// Empty means chrome.
func ParseEngine(s string) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "chrome", "chromium":
		return Chrome, nil
	case "firefox":
		return Firefox, nil
	default:
		return "", errs.New(errs.Configuration, fmt.Sprintf("unsupported browser engine %q (want chrome or firefox)", s))
	}
}

// ParseGridURL validates a remote grid address. Empty returns nil.
func ParseGridURL(s string) (*url.URL, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	u, err := url.Parse(s)
	if err != nil {
		return nil, errs.Wrap(errs.Configuration, fmt.Sprintf("malformed grid address %q", s), err)
	}
	switch u.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return nil, errs.New(errs.Configuration, fmt.Sprintf("grid address %q must use ws, wss, http or https", s))
	}
	if u.Host == "" {
		return nil, errs.New(errs.Configuration, fmt.Sprintf("grid address %q has no host", s))
	}
	return u, nil
}

// Options select how a session is acquired.
type Options struct {
	Engine   string
	GridURL  string
	Headless bool
	// Timeout bounds launching or connecting. Zero means 30s.
	Timeout time.Duration
	Logger  *slog.Logger
}

// plan is a validated Options.
type plan struct {
	engine  Engine
	grid    *url.URL
	overCDP bool
}

func (o Options) plan() (plan, error) {
	engine, err := ParseEngine(o.Engine)
	if err != nil {
		return plan{}, err
	}
	grid, err := ParseGridURL(o.GridURL)
	if err != nil {
		return plan{}, err
	}
	p := plan{engine: engine, grid: grid}
	if grid != nil && (grid.Scheme == "http" || grid.Scheme == "https") {
		// An http grid speaks CDP, which only chromium understands.
		if engine != Chrome {
			return plan{}, errs.New(errs.Configuration,
				fmt.Sprintf("grid address %s is http; %s needs a ws:// playwright endpoint", grid.Redacted(), engine))
		}
		p.overCDP = true
	}
	return p, nil
}

// Session is one browser page. It implements pages.Driver.
type Session struct {
	engine Engine
	remote bool
	log    *slog.Logger

	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page

	closeOnce sync.Once
	closeErr  error
}

var _ pages.Driver = (*Session)(nil)

// Acquire launches a local engine, or connects to the grid when one is
// configured. Configuration is checked before anything is started. The
// caller must Close the session on every path.
func Acquire(opts Options) (*Session, error) {
	p, err := opts.plan()
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = obs.Pkg("browser")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	s := &Session{engine: p.engine, remote: p.grid != nil, log: logger}
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright driver: %w", err)
	}
	s.pw = pw

	bt := pw.Chromium
	if p.engine == Firefox {
		bt = pw.Firefox
	}
	ms := playwright.Float(float64(timeout.Milliseconds()))

	switch {
	case p.grid == nil:
		s.browser, err = bt.Launch(playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(opts.Headless),
			Timeout:  ms,
		})
	case p.overCDP:
		s.browser, err = bt.ConnectOverCDP(p.grid.String(), playwright.BrowserTypeConnectOverCDPOptions{Timeout: ms})
	default:
		s.browser, err = bt.Connect(p.grid.String(), playwright.BrowserTypeConnectOptions{Timeout: ms})
	}
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("acquire %s session: %w", p.engine, err)
	}

	s.page, err = s.browser.NewPage()
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("open page: %w", err)
	}
	where := "local"
	if s.remote {
		where = p.grid.Redacted()
	}
	logger.Info("session_acquired", "engine", p.engine, "where", where, "headless", opts.Headless)
	return s, nil
}

// Engine reports which engine the session runs.
func (s *Session) Engine() Engine { return s.engine }

// Close releases the page, the browser and the playwright driver. It may be
// called more than once and on a partly built session.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		var errList []error
		if s.page != nil {
			if err := s.page.Close(); err != nil {
				errList = append(errList, fmt.Errorf("close page: %w", err))
			}
		}
		if s.browser != nil {
			if err := s.browser.Close(); err != nil {
				errList = append(errList, fmt.Errorf("close browser: %w", err))
			}
		}
		if s.pw != nil {
			if err := s.pw.Stop(); err != nil {
				errList = append(errList, fmt.Errorf("stop playwright: %w", err))
			}
		}
		s.closeErr = errors.Join(errList...)
		if s.log == nil {
			return
		}
		s.log.Debug("session_closed", "engine", s.engine, "error", s.closeErr)
	})
	return s.closeErr
}

// Screenshot captures the full page as PNG.
func (s *Session) Screenshot() ([]byte, error) {
	return s.page.Screenshot(playwright.PageScreenshotOptions{FullPage: playwright.Bool(true)})
}

// HTML returns the current document's markup.
func (s *Session) HTML() (string, error) {
	return s.page.Content()
}

func (s *Session) Navigate(u string) error {
	_, err := s.page.Goto(u, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	return err
}

func (s *Session) Title() (string, error) { return s.page.Title() }

func (s *Session) CurrentURL() string { return s.page.URL() }

func (s *Session) SetImplicitWait(d time.Duration) {
	s.page.SetDefaultTimeout(float64(d.Milliseconds()))
}

func (s *Session) Count(loc pages.Locator) (int, error) {
	return s.page.Locator(Selector(loc)).Count()
}

func (s *Session) Texts(loc pages.Locator) ([]string, error) {
	return s.page.Locator(Selector(loc)).AllInnerTexts()
}

func (s *Session) Text(loc pages.Locator) (string, error) {
	return s.element(loc).InnerText()
}

func (s *Session) InputValue(loc pages.Locator) (string, error) {
	return s.element(loc).InputValue()
}

func (s *Session) Attribute(loc pages.Locator, name string) (string, error) {
	return s.element(loc).GetAttribute(name)
}

func (s *Session) Fill(loc pages.Locator, value string) error {
	return s.element(loc).Fill(value)
}

func (s *Session) Click(loc pages.Locator) error {
	return s.element(loc).Click()
}

func (s *Session) SelectText(loc pages.Locator) error {
	return s.element(loc).SelectText()
}

func (s *Session) element(loc pages.Locator) playwright.Locator {
	return s.page.Locator(Selector(loc)).Nth(loc.Index)
}

// Selector renders a locator in playwright's selector syntax. Text locators
// match the full visible text exactly.
func Selector(loc pages.Locator) string {
	switch loc.Strategy {
	case pages.ByXPath:
		return "xpath=" + loc.Selector
	case pages.ByText:
		return "text=" + strconv.Quote(loc.Selector)
	case pages.ByID:
		return "id=" + loc.Selector
	default:
		return "css=" + loc.Selector
	}
}
