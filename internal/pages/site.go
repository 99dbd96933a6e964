package pages

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/kuitang/forge-e2e/internal/errs"
	"github.com/kuitang/forge-e2e/internal/logutil"
	"github.com/kuitang/forge-e2e/internal/obs"
	"github.com/kuitang/forge-e2e/internal/urlutil"
)

// Markers are the title substrings the ready predicates look for.
type Markers struct {
	LoginTitle      string
	HomeTitle       string
	ProjectsTitle   string
	NewProjectTitle string
}

// DefaultMarkers returns the English titles the forge renders.
func DefaultMarkers() Markers {
	return Markers{
		LoginTitle:      "Sign In",
		HomeTitle:       "Dashboard",
		ProjectsTitle:   "Projects",
		NewProjectTitle: "New Project",
	}
}

// Options configure a Site. Zero fields take defaults.
type Options struct {
	BaseURL string
	Timing  Timing
	Markers Markers
	Logger  *slog.Logger
}

// Site binds a Driver to one forge instance. It is the entry point to the
// navigation graph and must not be shared between concurrent scenarios.
type Site struct {
	driver  Driver
	baseURL string
	timing  Timing
	markers Markers
	log     *slog.Logger
}

// NewSite validates opts and returns a Site.
func NewSite(d Driver, opts Options) (*Site, error) {
	if d == nil {
		return nil, errs.New(errs.Configuration, "pages: nil driver")
	}
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, errs.New(errs.Configuration, "pages: base URL is required")
	}
	if opts.Timing == (Timing{}) {
		opts.Timing = DefaultTiming()
	}
	if err := opts.Timing.Validate(); err != nil {
		return nil, err
	}
	defaults := DefaultMarkers()
	if opts.Markers.LoginTitle == "" {
		opts.Markers.LoginTitle = defaults.LoginTitle
	}
	if opts.Markers.HomeTitle == "" {
		opts.Markers.HomeTitle = defaults.HomeTitle
	}
	if opts.Markers.ProjectsTitle == "" {
		opts.Markers.ProjectsTitle = defaults.ProjectsTitle
	}
	if opts.Markers.NewProjectTitle == "" {
		opts.Markers.NewProjectTitle = defaults.NewProjectTitle
	}
	if opts.Logger == nil {
		opts.Logger = obs.Pkg("pages")
	}
	return &Site{
		driver:  d,
		baseURL: opts.BaseURL,
		timing:  opts.Timing,
		markers: opts.Markers,
		log:     opts.Logger,
	}, nil
}

// Timing returns the site's wait configuration.
func (s *Site) Timing() Timing { return s.timing }

// OpenLogin loads the login page. Like every Open method it returns a
// component only once the page is ready, and nil with the error otherwise.
func (s *Site) OpenLogin() (*Login, error) {
	l := newLogin(s)
	if err := l.load(); err != nil {
		return nil, err
	}
	return l, nil
}

// OpenHome loads the dashboard. It only becomes ready for a signed-in session.
func (s *Site) OpenHome() (*Home, error) {
	h := newHome(s)
	if err := h.load(); err != nil {
		return nil, err
	}
	return h, nil
}

// OpenProfile loads the profile page of a user or organization.
func (s *Site) OpenProfile(owner string) (*Profile, error) {
	p := newProfile(s, owner)
	if err := p.load(); err != nil {
		return nil, err
	}
	return p, nil
}

// OpenProjectList loads the project list of owner.
func (s *Site) OpenProjectList(owner string) (*ProjectList, error) {
	p := newProjectList(s, owner)
	if err := p.load(); err != nil {
		return nil, err
	}
	return p, nil
}

// OpenNewProject loads the new-project form of owner.
func (s *Site) OpenNewProject(owner string) (*NewProject, error) {
	p := newNewProject(s, owner)
	if err := p.load(); err != nil {
		return nil, err
	}
	return p, nil
}

// page is the part every component shares: where it lives, how long element
// actions may wait, and the readiness gate.
type page struct {
	site         *Site
	name         string
	path         string
	implicitWait time.Duration
	ready        Predicate
	gate         readiness
}

// load navigates to the component's address, then waits for readiness.
func (p *page) load() error {
	url := urlutil.BuildAbsolute(p.site.baseURL, p.path)
	p.site.log.Debug("page_load", "page", p.name, "url", url)
	p.gate.reset()
	p.site.driver.SetImplicitWait(p.implicitWait)
	if err := p.site.driver.Navigate(url); err != nil {
		p.gate.state = Failed
		p.gate.err = errs.Wrap(errs.Readiness, fmt.Sprintf("%s page: navigate to %s", p.name, url), err)
		return p.gate.err
	}
	return p.WaitUntilReady()
}

// enter waits for readiness after an action already brought the browser here.
func (p *page) enter() error {
	p.site.driver.SetImplicitWait(p.implicitWait)
	return p.WaitUntilReady()
}

// WaitUntilReady blocks until the ready predicate holds. On a ready
// component it returns immediately; on a failed one it returns the
// original ReadinessError.
func (p *page) WaitUntilReady() error {
	start := time.Now()
	wasReady := p.gate.state == Ready
	err := p.gate.await(p.name, p.ready, p.site.timing)
	switch {
	case err != nil:
		p.site.log.Warn("page_not_ready", "page", p.name, "url", p.site.driver.CurrentURL(), "error", err)
	case !wasReady:
		p.site.log.Debug("page_ready", "page", p.name, "dur_ms", time.Since(start).Milliseconds())
	}
	return err
}

// Reload navigates to the component's address again and waits for it.
func (p *page) Reload() error {
	return p.load()
}

// State reports the component's readiness state.
func (p *page) State() State { return p.gate.state }

// Name is the component's name as used in logs and errors.
func (p *page) Name() string { return p.name }

// Title reads the current page title.
func (p *page) Title() (string, error) {
	return p.site.driver.Title()
}

// URL reads the current address.
func (p *page) URL() string {
	return p.site.driver.CurrentURL()
}

func (p *page) requireReady() error {
	return p.gate.require(p.name)
}

func (p *page) fill(field string, loc Locator, value string) error {
	p.site.log.Debug("fill", "page", p.name, "field", field, "locator", loc.String(),
		"value", logutil.RedactValue(loc.Selector, logutil.TruncateForLog(value, 64)))
	if err := p.site.driver.Fill(loc, value); err != nil {
		return elementErr(p.name, "fill "+field, loc, err)
	}
	return nil
}

func (p *page) click(what string, loc Locator) error {
	p.site.log.Debug("click", "page", p.name, "target", what, "locator", loc.String())
	if err := p.site.driver.Click(loc); err != nil {
		return elementErr(p.name, "click "+what, loc, err)
	}
	return nil
}

func (p *page) text(what string, loc Locator) (string, error) {
	v, err := p.site.driver.Text(loc)
	if err != nil {
		return "", elementErr(p.name, "read "+what, loc, err)
	}
	return strings.TrimSpace(v), nil
}

// present reports whether loc currently matches at least one element.
func (p *page) present(loc Locator) (bool, error) {
	n, err := p.site.driver.Count(loc)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// counter reads an integer badge such as the project count.
func (p *page) counter(what string, loc Locator) (int, error) {
	raw, err := p.text(what, loc)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errs.Wrap(errs.ElementNotFound, fmt.Sprintf("%s page: %s at %s is not a number: %q", p.name, what, loc, raw), err)
	}
	return n, nil
}

// selectExact opens a dropdown and clicks the option whose visible text is
// exactly name. There is no case folding or partial matching.
func (p *page) selectExact(what string, toggle, options Locator, name string) error {
	if err := p.click(what+" dropdown", toggle); err != nil {
		return err
	}
	texts, err := p.site.driver.Texts(options)
	if err != nil {
		return elementErr(p.name, "list "+what+" options", options, err)
	}
	for i, t := range texts {
		if strings.TrimSpace(t) == name {
			return p.click(fmt.Sprintf("%s option %q", what, name), options.Nth(i))
		}
	}
	// Close the menu again so the page is left as it was found.
	if err := p.site.driver.Click(toggle); err != nil {
		p.site.log.Debug("dropdown_close_failed", "page", p.name, "locator", toggle.String(), "error", err)
	}
	trimmed := make([]string, len(texts))
	for i, t := range texts {
		trimmed[i] = strings.TrimSpace(t)
	}
	return errs.New(errs.ElementNotFound,
		fmt.Sprintf("%s page: no %s option with text %q at %s (options: %q)", p.name, what, name, options, trimmed))
}

// probe polls branches until one holds and returns its index, or -1 when
// the settle window passes with none holding.
func (p *page) probe(branches ...Predicate) int {
	hit := -1
	_ = WaitUntilReady(func() (bool, error) {
		for i, b := range branches {
			ok, err := b()
			if err == nil && ok {
				hit = i
				return true, nil
			}
		}
		return false, nil
	}, p.site.timing.Settle, p.site.timing.PollInterval)
	return hit
}

func (p *page) titleContains(marker string) Predicate {
	return func() (bool, error) {
		title, err := p.site.driver.Title()
		if err != nil {
			return false, err
		}
		return strings.Contains(title, marker), nil
	}
}

func elementErr(pageName, action string, loc Locator, cause error) error {
	return errs.Wrap(errs.ElementNotFound, fmt.Sprintf("%s page: %s (%s)", pageName, action, loc), cause)
}
