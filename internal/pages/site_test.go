package pages

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuitang/forge-e2e/internal/errs"
)

// stubDriver answers from canned values and records actions.
type stubDriver struct {
	title    string
	titleErr error
	url      string
	counts   map[string]int
	texts    map[string][]string
	attrs    map[string]string
	values   map[string]string
	clicks   []string
	fills    map[string]string
	navs     []string
	wait     time.Duration
	navErr   error
	onClick  func(loc Locator)
}

func newStub() *stubDriver {
	return &stubDriver{
		counts: map[string]int{},
		texts:  map[string][]string{},
		attrs:  map[string]string{},
		values: map[string]string{},
		fills:  map[string]string{},
	}
}

func (s *stubDriver) Navigate(url string) error {
	s.navs = append(s.navs, url)
	s.url = url
	return s.navErr
}
func (s *stubDriver) Title() (string, error)          { return s.title, s.titleErr }
func (s *stubDriver) CurrentURL() string              { return s.url }
func (s *stubDriver) SetImplicitWait(d time.Duration) { s.wait = d }
func (s *stubDriver) Count(loc Locator) (int, error)  { return s.counts[loc.Selector], nil }
func (s *stubDriver) Texts(loc Locator) ([]string, error) {
	return s.texts[loc.Selector], nil
}
func (s *stubDriver) Text(loc Locator) (string, error) {
	texts := s.texts[loc.Selector]
	if loc.Index >= len(texts) {
		return "", errors.New("no such element")
	}
	return texts[loc.Index], nil
}
func (s *stubDriver) InputValue(loc Locator) (string, error) { return s.values[loc.Selector], nil }
func (s *stubDriver) Attribute(loc Locator, name string) (string, error) {
	return s.attrs[loc.Selector+"@"+name], nil
}
func (s *stubDriver) Fill(loc Locator, value string) error {
	s.fills[loc.Selector] = value
	return nil
}
func (s *stubDriver) Click(loc Locator) error {
	s.clicks = append(s.clicks, loc.String())
	if s.onClick != nil {
		s.onClick(loc)
	}
	return nil
}
func (s *stubDriver) SelectText(Locator) error { return nil }

func fastTiming() Timing {
	return Timing{Timeout: 60 * time.Millisecond, PollInterval: 5 * time.Millisecond, Settle: 30 * time.Millisecond}
}

func newStubSite(t *testing.T, d Driver) *Site {
	t.Helper()
	s, err := NewSite(d, Options{BaseURL: "http://forge.test/", Timing: fastTiming()})
	require.NoError(t, err)
	return s
}

func TestNewSite_Validation(t *testing.T) {
	_, err := NewSite(nil, Options{BaseURL: "http://x"})
	assert.Equal(t, errs.Configuration, errs.CodeOf(err))

	_, err = NewSite(newStub(), Options{})
	assert.Equal(t, errs.Configuration, errs.CodeOf(err))

	_, err = NewSite(newStub(), Options{BaseURL: "http://x", Timing: Timing{Timeout: time.Second, PollInterval: 2 * time.Second, Settle: time.Second}})
	assert.Equal(t, errs.Configuration, errs.CodeOf(err))

	s, err := NewSite(newStub(), Options{BaseURL: "http://x"})
	require.NoError(t, err)
	assert.Equal(t, DefaultTiming(), s.Timing())
	assert.Equal(t, DefaultMarkers(), s.markers)
}

func TestOpenLogin_NavigatesAndSetsImplicitWait(t *testing.T) {
	d := newStub()
	d.title = "Sign In - Forge"
	l, err := newStubSite(t, d).OpenLogin()
	require.NoError(t, err)
	assert.Equal(t, Ready, l.State())
	assert.Equal(t, []string{"http://forge.test/user/login"}, d.navs)
	assert.Equal(t, 5*time.Second, d.wait)
}

func TestOpenLogin_TimesOutWithReadinessError(t *testing.T) {
	d := newStub()
	d.title = "Dashboard - Forge"
	site := newStubSite(t, d)
	l, err := site.OpenLogin()
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Readiness))
	assert.Nil(t, l, "a component escapes only once ready")

	// Edges refuse to run on a failed component.
	failed := newLogin(site)
	require.Error(t, failed.load())
	assert.Equal(t, Failed, failed.State())
	_, err = failed.Submit("u", "p")
	assert.True(t, errs.Is(err, errs.Readiness))
	assert.Empty(t, d.fills)
}

func TestOpenLogin_NavigateFailure(t *testing.T) {
	d := newStub()
	d.navErr = errors.New("connection refused")
	_, err := newStubSite(t, d).OpenLogin()
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Readiness))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestSelectExact_ListsOptionsOnMiss(t *testing.T) {
	d := newStub()
	d.title = "New Project - Forge"
	d.texts[newProjectTemplate.options.Selector] = []string{" None ", "Basic Kanban"}

	p, err := newStubSite(t, d).OpenNewProject("maias")
	require.NoError(t, err)

	err = p.SelectTemplate("none")
	require.Error(t, err)
	assert.Equal(t, errs.ElementNotFound, errs.CodeOf(err))
	assert.Contains(t, err.Error(), `"None"`)
	assert.Contains(t, err.Error(), `"Basic Kanban"`)

	d.clicks = nil
	require.NoError(t, p.SelectTemplate("None"))
	require.Len(t, d.clicks, 2)
	assert.Equal(t, newProjectTemplate.toggle.String(), d.clicks[0])
	assert.Equal(t, newProjectTemplate.options.Nth(0).String(), d.clicks[1])
}

func TestProfile_EmptyMatchSetFailsLoudly(t *testing.T) {
	d := newStub()
	d.title = "maias - Forge"
	p, err := newStubSite(t, d).OpenProfile("maias")
	require.NoError(t, err)

	_, err = p.OpenProjects()
	require.Error(t, err)
	assert.Equal(t, errs.NoMatchingElement, errs.CodeOf(err))
	assert.Empty(t, d.clicks, "nothing may be clicked when no tab matched")
}

func TestCounter_RejectsNonNumeric(t *testing.T) {
	d := newStub()
	d.title = "Projects - Forge"
	d.texts[projectsCounter.Selector] = []string{"many"}
	list, err := newStubSite(t, d).OpenProjectList("maias")
	require.NoError(t, err)
	_, err = list.ProjectCount()
	require.Error(t, err)
	assert.Equal(t, errs.ElementNotFound, errs.CodeOf(err))
}

func TestProjectList_NotReadyOnNewProjectTitle(t *testing.T) {
	d := newStub()
	d.title = "New Project - Forge"
	_, err := newStubSite(t, d).OpenProjectList("maias")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Readiness))
}

func TestOwnerPathsAreEscaped(t *testing.T) {
	d := newStub()
	d.title = "New Project - Forge"
	_, err := newStubSite(t, d).OpenNewProject("a b")
	require.NoError(t, err)
	require.Len(t, d.navs, 1)
	assert.True(t, strings.HasSuffix(d.navs[0], "/a%20b/-/projects/new"), d.navs[0])
	assert.Equal(t, 10*time.Second, d.wait)
}

func TestOpeners_ReturnNilUntilReady(t *testing.T) {
	d := newStub()
	d.title = "Sign In - Forge"
	site := newStubSite(t, d)

	home, err := site.OpenHome()
	assert.Nil(t, home)
	assert.True(t, errs.Is(err, errs.Readiness))

	profile, err := site.OpenProfile("maias")
	assert.Nil(t, profile)
	assert.True(t, errs.Is(err, errs.Readiness))

	list, err := site.OpenProjectList("maias")
	assert.Nil(t, list)
	assert.True(t, errs.Is(err, errs.Readiness))

	form, err := site.OpenNewProject("maias")
	assert.Nil(t, form)
	assert.True(t, errs.Is(err, errs.Readiness))
}

func TestProfile_NotReadyWhileStillOnDashboard(t *testing.T) {
	d := newStub()
	d.title = "maias - Dashboard - Forge"
	d.attrs[homeProfileItem.Selector+"@href"] = "/maias"
	home, err := newStubSite(t, d).OpenHome()
	require.NoError(t, err)

	// The profile click does not navigate, so the dashboard stays up.
	profile, err := home.OpenProfile()
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Readiness))
	assert.Nil(t, profile)

	d.onClick = func(loc Locator) {
		if loc == homeProfileItem {
			d.url = "http://forge.test/maias"
			d.title = "maias - Forge"
		}
	}
	profile, err = home.OpenProfile()
	require.NoError(t, err)
	assert.Equal(t, Ready, profile.State())
	assert.Equal(t, "maias", profile.Owner())
}

func TestNewProject_QueriesRequireReady(t *testing.T) {
	d := newStub()
	d.title = "Projects - Forge"
	d.texts[newProjectTemplate.options.Selector] = []string{"None"}
	d.texts[newProjectTemplate.selected.Selector] = []string{"None"}
	form := newNewProject(newStubSite(t, d), "maias")
	require.Error(t, form.load())

	queries := map[string]func() error{
		"SelectedTemplate":          func() error { _, err := form.SelectedTemplate(); return err },
		"SelectedCardPreview":       func() error { _, err := form.SelectedCardPreview(); return err },
		"TemplateOptions":           func() error { _, err := form.TemplateOptions(); return err },
		"CardPreviewOptions":        func() error { _, err := form.CardPreviewOptions(); return err },
		"CurrentDescriptionContent": func() error { _, err := form.CurrentDescriptionContent(); return err },
		"ProjectCount":              func() error { _, err := form.ProjectCount(); return err },
		"ValidationMessage":         func() error { _, err := form.ValidationMessage(); return err },
	}
	for name, q := range queries {
		err := q()
		assert.True(t, errs.Is(err, errs.Readiness), "%s: %v", name, err)
	}
}
