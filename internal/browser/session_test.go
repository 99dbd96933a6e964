package browser

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/kuitang/forge-e2e/internal/errs"
	"github.com/kuitang/forge-e2e/internal/forgetest"
	"github.com/kuitang/forge-e2e/internal/pages"
)

func TestParseEngine(t *testing.T) {
	for in, want := range map[string]Engine{
		"":          Chrome,
		"chrome":    Chrome,
		" Chrome ":  Chrome,
		"chromium":  Chrome,
		"FIREFOX":   Firefox,
		"firefox\n": Firefox,
	} {
		got, err := ParseEngine(in)
		require.NoError(t, err, "%q", in)
		assert.Equal(t, want, got, "%q", in)
	}
	for _, in := range []string{"safari", "edge", "chrome-beta", "fire fox"} {
		_, err := ParseEngine(in)
		require.Error(t, err, "%q", in)
		assert.Equal(t, errs.Configuration, errs.CodeOf(err))
	}
}

func testParseEngine_UnknownIsConfiguration(t *rapid.T) {
	s := rapid.StringMatching(`[a-z]{1,12}`).
		Filter(func(s string) bool { return s != "chrome" && s != "chromium" && s != "firefox" }).
		Draw(t, "engine")
	if _, err := ParseEngine(s); !errs.Is(err, errs.Configuration) {
		t.Fatalf("ParseEngine(%q) = %v, want configuration error", s, err)
	}
}

func TestParseEngine_UnknownIsConfiguration(t *testing.T) {
	rapid.Check(t, testParseEngine_UnknownIsConfiguration)
}

func TestParseGridURL(t *testing.T) {
	u, err := ParseGridURL("")
	require.NoError(t, err)
	assert.Nil(t, u)

	for _, ok := range []string{"ws://grid:4444/playwright", "wss://grid.example.com", "http://grid:4444", "https://user:pw@grid"} {
		u, err := ParseGridURL(ok)
		require.NoError(t, err, ok)
		assert.NotEmpty(t, u.Host)
	}
	for _, bad := range []string{"grid:4444", "ftp://grid", "ws://", "http://%zz", "/relative/path"} {
		_, err := ParseGridURL(bad)
		require.Error(t, err, bad)
		assert.Equal(t, errs.Configuration, errs.CodeOf(err), bad)
	}
}

func TestOptionsPlan(t *testing.T) {
	p, err := Options{Engine: "firefox", GridURL: "ws://grid:3000/"}.plan()
	require.NoError(t, err)
	assert.Equal(t, Firefox, p.engine)
	assert.False(t, p.overCDP)

	p, err = Options{Engine: "chrome", GridURL: "http://grid:4444"}.plan()
	require.NoError(t, err)
	assert.True(t, p.overCDP)

	_, err = Options{Engine: "firefox", GridURL: "http://grid:4444"}.plan()
	assert.Equal(t, errs.Configuration, errs.CodeOf(err))
}

func TestAcquire_ConfigurationErrorsStartNothing(t *testing.T) {
	_, err := Acquire(Options{Engine: "netscape"})
	assert.Equal(t, errs.Configuration, errs.CodeOf(err))

	_, err = Acquire(Options{Engine: "chrome", GridURL: "mailto:grid"})
	assert.Equal(t, errs.Configuration, errs.CodeOf(err))
}

func TestSelector(t *testing.T) {
	assert.Equal(t, "css=a.item", Selector(pages.CSS("a.item")))
	assert.Equal(t, "css=a.item", Selector(pages.CSS("a.item").Nth(2)))
	assert.Equal(t, "xpath=//form", Selector(pages.XPath("//form")))
	assert.Equal(t, `text="Sign In"`, Selector(pages.Text("Sign In")))
	assert.Equal(t, `text="say \"hi\""`, Selector(pages.Text(`say "hi"`)))
	assert.Equal(t, "id=user_name", Selector(pages.ID("user_name")))
}

func TestClose_ZeroSessionIsSafe(t *testing.T) {
	var s Session
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}

// TestLiveSession drives the page graph through a real browser. It skips
// when playwright or its browsers are not installed.
func TestLiveSession(t *testing.T) {
	if testing.Short() {
		t.Skip("launches a browser")
	}
	srv := forgetest.Start(t, forgetest.Options{})

	s, err := Acquire(Options{Engine: os.Getenv("BROWSER"), GridURL: os.Getenv("SELENIUM_GRID_URL"), Headless: true})
	if errs.Is(err, errs.Configuration) {
		t.Fatalf("bad browser configuration: %v", err)
	}
	if err != nil {
		t.Skip("Playwright not available:", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	site, err := pages.NewSite(s, pages.Options{BaseURL: srv.URL, Timing: pages.Timing{
		Timeout:      5 * time.Second,
		PollInterval: 100 * time.Millisecond,
		Settle:       2 * time.Second,
	}})
	require.NoError(t, err)

	l, err := site.OpenLogin()
	require.NoError(t, err)
	out, err := l.Submit(forgetest.DefaultUser.Name, "wrong")
	require.NoError(t, err)
	assert.Equal(t, pages.LoginRejected, out.Result)

	rejected, _ := out.Rejected()
	home, err := rejected.SubmitValid(forgetest.DefaultUser.Name, forgetest.DefaultUser.Password)
	require.NoError(t, err)
	profile, err := home.OpenProfile()
	require.NoError(t, err)
	list, err := profile.OpenProjects()
	require.NoError(t, err)
	form, err := list.NewProject()
	require.NoError(t, err)

	require.NoError(t, form.SetDescription("bold me"))
	require.NoError(t, form.ApplyBoldToSelection())
	content, err := form.CurrentDescriptionContent()
	require.NoError(t, err)
	assert.Equal(t, "**bold me**", content)

	require.NoError(t, form.SelectCardPreview("Images and Text"))
	card, err := form.SelectedCardPreview()
	require.NoError(t, err)
	assert.Equal(t, "Images and Text", card)

	png, err := s.Screenshot()
	require.NoError(t, err)
	assert.NotEmpty(t, png)
	html, err := s.HTML()
	require.NoError(t, err)
	assert.Contains(t, html, "New Project")
}
