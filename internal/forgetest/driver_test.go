package forgetest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuitang/forge-e2e/internal/pages"
)

func signedInDriver(t *testing.T, srv *Server) *HTMLDriver {
	t.Helper()
	d := NewHTMLDriver()
	require.NoError(t, d.Navigate(srv.URL+"/user/login"))
	require.NoError(t, d.Fill(pages.ID("user_name"), DefaultUser.Name))
	require.NoError(t, d.Fill(pages.ID("password"), DefaultUser.Password))
	require.NoError(t, d.Click(pages.CSS("form.ui.form button.ui.primary.button")))
	title, err := d.Title()
	require.NoError(t, err)
	require.Equal(t, DefaultUser.Name+" - Dashboard - Forge", title)
	return d
}

func TestHTMLDriver_BlankBeforeNavigate(t *testing.T) {
	d := NewHTMLDriver()
	title, err := d.Title()
	require.NoError(t, err)
	assert.Empty(t, title)
	assert.Equal(t, "about:blank", d.CurrentURL())
	_, err = d.Count(pages.CSS("a"))
	assert.Error(t, err)
}

func TestHTMLDriver_RequiredFieldBlocksSubmit(t *testing.T) {
	srv := Start(t, Options{})
	d := NewHTMLDriver()
	require.NoError(t, d.Navigate(srv.URL+"/user/login"))
	require.NoError(t, d.Fill(pages.ID("user_name"), "maias"))
	require.NoError(t, d.Click(pages.CSS("form.ui.form button.ui.primary.button")))

	n, err := d.Count(pages.CSS(".flash-error"))
	require.NoError(t, err)
	assert.Zero(t, n, "an empty required password must keep the form from posting")
	assert.Equal(t, srv.URL+"/user/login", d.CurrentURL())
}

func TestHTMLDriver_DropdownSelection(t *testing.T) {
	srv := Start(t, Options{})
	d := signedInDriver(t, srv)
	require.NoError(t, d.Navigate(srv.URL+"/maias/-/projects/new"))

	root := ".ui.selection.dropdown:has(input[name='card_type'])"
	options := pages.CSS(root + " .menu .item")

	err := d.Click(options.Nth(1))
	require.Error(t, err, "items of a closed dropdown are not clickable")
	assert.Contains(t, err.Error(), "not visible")

	require.NoError(t, d.Click(pages.CSS(root)))
	require.NoError(t, d.Click(options.Nth(1)))

	label, err := d.Text(pages.CSS(root + " > .text"))
	require.NoError(t, err)
	assert.Equal(t, "Images and Text", label)
	v, err := d.InputValue(pages.CSS("input[name='card_type']"))
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	// The menu closed again after the choice.
	assert.Error(t, d.Click(options.Nth(0)))
}

func TestHTMLDriver_BoldWrapsSelection(t *testing.T) {
	srv := Start(t, Options{})
	d := signedInDriver(t, srv)
	require.NoError(t, d.Navigate(srv.URL+"/maias/-/projects/new"))

	editor := pages.CSS("textarea[name='content']")
	require.NoError(t, d.Fill(editor, "héllo"))
	require.NoError(t, d.SelectText(editor))
	require.NoError(t, d.Click(pages.CSS(".markdown-toolbar md-bold")))

	v, err := d.InputValue(editor)
	require.NoError(t, err)
	assert.Equal(t, "**héllo**", v)

	// Without a selection the markers go at the end.
	require.NoError(t, d.Fill(editor, "x"))
	require.NoError(t, d.Click(pages.CSS(".markdown-toolbar md-bold")))
	v, err = d.InputValue(editor)
	require.NoError(t, err)
	assert.Equal(t, "x****", v)
}

func TestHTMLDriver_LocatorStrategies(t *testing.T) {
	srv := Start(t, Options{})
	d := NewHTMLDriver()
	require.NoError(t, d.Navigate(srv.URL+"/maias"))

	n, err := d.Count(pages.Text("Overview"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = d.Count(pages.XPath("//a"))
	assert.Error(t, err)

	_, err = d.Count(pages.CSS("a[href"))
	assert.Error(t, err)

	_, err = d.Text(pages.CSS("a.item").Nth(99))
	assert.Error(t, err)

	href, err := d.Attribute(pages.CSS("a.item[href$='/-/projects']"), "href")
	require.NoError(t, err)
	assert.Equal(t, "/maias/-/projects", href)
	missing, err := d.Attribute(pages.CSS("a.item[href$='/-/projects']"), "data-nope")
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestHTMLDriver_FollowsLinksAndKeepsSession(t *testing.T) {
	srv := Start(t, Options{})
	d := signedInDriver(t, srv)

	require.NoError(t, d.Click(pages.CSS("#navbar .ui.dropdown.jump.item:has(.user-menu)")))
	require.NoError(t, d.Click(pages.CSS("#navbar .user-menu > a.item")))
	assert.Equal(t, srv.URL+"/maias", d.CurrentURL())

	require.NoError(t, d.Click(pages.CSS("a.item[href$='/-/projects']")))
	title, err := d.Title()
	require.NoError(t, err)
	assert.Equal(t, "Projects - Forge", title)

	n, err := d.Count(pages.CSS("a.ui.primary.button[href$='/-/projects/new']"))
	require.NoError(t, err)
	assert.Equal(t, 1, n, "the owner sees the New Project button")

	html, err := d.HTML()
	require.NoError(t, err)
	assert.Contains(t, html, "milestone-list")
}

func TestHTMLDriver_ImplicitWaitIsRecorded(t *testing.T) {
	d := NewHTMLDriver()
	d.SetImplicitWait(3 * time.Second)
	assert.Equal(t, 3*time.Second, d.ImplicitWait())
}
