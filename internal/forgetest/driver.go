package forgetest

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/kuitang/forge-e2e/internal/obs"
	"github.com/kuitang/forge-e2e/internal/pages"
)

// HTMLDriver runs page components over plain HTTP and goquery. It emulates
// the few behaviors the forge's scripts provide: dropdown toggling and
// option selection, the bold toolbar button, required fields blocking a
// submit, link navigation and form posts. It does not run JavaScript.
type HTMLDriver struct {
	client *http.Client
	doc    *goquery.Document
	url    *url.URL
	wait   time.Duration
	log    *slog.Logger

	// text selection inside an input or textarea, in runes
	selected *goquery.Selection
	selStart int
	selEnd   int
}

var _ pages.Driver = (*HTMLDriver)(nil)

// NewHTMLDriver returns a driver with an empty cookie jar.
func NewHTMLDriver() *HTMLDriver {
	jar, _ := cookiejar.New(nil)
	logger := obs.Pkg("htmldriver")
	return &HTMLDriver{
		client: &http.Client{
			Jar:       jar,
			Transport: &obs.Transport{Logger: logger},
			Timeout:   10 * time.Second,
		},
		log: logger,
	}
}

// ImplicitWait returns the element wait budget last set by a page.
func (d *HTMLDriver) ImplicitWait() time.Duration { return d.wait }

func (d *HTMLDriver) SetImplicitWait(w time.Duration) { d.wait = w }

func (d *HTMLDriver) Navigate(rawURL string) error {
	target, err := d.resolveURL(rawURL)
	if err != nil {
		return err
	}
	resp, err := d.client.Get(target.String())
	if err != nil {
		return fmt.Errorf("navigate %s: %w", target, err)
	}
	return d.load(resp)
}

func (d *HTMLDriver) Title() (string, error) {
	if d.doc == nil {
		return "", nil
	}
	return strings.TrimSpace(d.doc.Find("head > title").First().Text()), nil
}

func (d *HTMLDriver) CurrentURL() string {
	if d.url == nil {
		return "about:blank"
	}
	return d.url.String()
}

// HTML returns the current document's markup.
func (d *HTMLDriver) HTML() (string, error) {
	if d.doc == nil {
		return "", nil
	}
	return goquery.OuterHtml(d.doc.Selection)
}

func (d *HTMLDriver) Count(loc pages.Locator) (int, error) {
	all, err := d.resolve(loc)
	if err != nil {
		return 0, err
	}
	return all.Length(), nil
}

func (d *HTMLDriver) Texts(loc pages.Locator) ([]string, error) {
	all, err := d.resolve(loc)
	if err != nil {
		return nil, err
	}
	return all.Map(func(_ int, s *goquery.Selection) string { return s.Text() }), nil
}

func (d *HTMLDriver) Text(loc pages.Locator) (string, error) {
	el, err := d.nth(loc)
	if err != nil {
		return "", err
	}
	return el.Text(), nil
}

func (d *HTMLDriver) InputValue(loc pages.Locator) (string, error) {
	el, err := d.nth(loc)
	if err != nil {
		return "", err
	}
	v, ok := inputValue(el)
	if !ok {
		return "", fmt.Errorf("%s is a <%s>, not an input", loc, goquery.NodeName(el))
	}
	return v, nil
}

func (d *HTMLDriver) Attribute(loc pages.Locator, name string) (string, error) {
	el, err := d.nth(loc)
	if err != nil {
		return "", err
	}
	return el.AttrOr(name, ""), nil
}

func (d *HTMLDriver) Fill(loc pages.Locator, value string) error {
	el, err := d.nth(loc)
	if err != nil {
		return err
	}
	switch goquery.NodeName(el) {
	case "input":
		el.SetAttr("value", value)
	case "textarea":
		el.SetText(value)
	default:
		return fmt.Errorf("%s is a <%s>, which cannot be filled", loc, goquery.NodeName(el))
	}
	if d.selected != nil && d.selected.IsSelection(el) {
		d.selected = nil
	}
	return nil
}

func (d *HTMLDriver) SelectText(loc pages.Locator) error {
	el, err := d.nth(loc)
	if err != nil {
		return err
	}
	v, ok := inputValue(el)
	if !ok {
		return fmt.Errorf("%s is a <%s>, which has no text selection", loc, goquery.NodeName(el))
	}
	d.selected = el
	d.selStart, d.selEnd = 0, len([]rune(v))
	return nil
}

func (d *HTMLDriver) Click(loc pages.Locator) error {
	el, err := d.nth(loc)
	if err != nil {
		return err
	}
	if hiddenInClosedDropdown(el) {
		return fmt.Errorf("%s is not visible", loc)
	}

	switch {
	case el.Is(".ui.dropdown .menu .item[data-value]"):
		dd := el.Closest(".ui.dropdown")
		dd.Find("input[type=hidden]").First().SetAttr("value", el.AttrOr("data-value", ""))
		dd.ChildrenFiltered(".text").SetText(strings.TrimSpace(el.Text()))
		dd.RemoveClass("active")
		return nil
	case el.Closest("a[href]").Length() > 0:
		return d.Navigate(el.Closest("a[href]").AttrOr("href", ""))
	case el.Closest("button").Length() > 0:
		btn := el.Closest("button")
		if btn.AttrOr("type", "submit") != "submit" {
			return nil
		}
		return d.submit(btn.Closest("form"))
	case el.Is("input[type=submit]"):
		return d.submit(el.Closest("form"))
	case goquery.NodeName(el) == "md-bold":
		return d.bold(el)
	case el.Closest(".ui.dropdown").Length() > 0:
		dd := el.Closest(".ui.dropdown")
		if dd.HasClass("active") {
			dd.RemoveClass("active")
		} else {
			dd.AddClass("active")
		}
		return nil
	}
	return nil
}

// hiddenInClosedDropdown reports whether el sits in the menu of a dropdown
// that is not open.
func hiddenInClosedDropdown(el *goquery.Selection) bool {
	if el.Is(".ui.dropdown") {
		return false
	}
	dd := el.Closest(".ui.dropdown")
	if dd.Length() == 0 || dd.HasClass("active") {
		return false
	}
	return el.Is(".menu") || el.ParentsUntilSelection(dd).Filter(".menu").Length() > 0
}

func (d *HTMLDriver) bold(btn *goquery.Selection) error {
	ta := btn.Closest("form").Find("textarea[name=content]").First()
	if ta.Length() == 0 {
		return fmt.Errorf("bold button has no editor")
	}
	v := []rune(ta.Text())
	start, end := len(v), len(v)
	if d.selected != nil && d.selected.IsSelection(ta) {
		start, end = min(d.selStart, len(v)), min(d.selEnd, len(v))
	}
	var b strings.Builder
	b.WriteString(string(v[:start]))
	b.WriteString("**")
	b.WriteString(string(v[start:end]))
	b.WriteString("**")
	b.WriteString(string(v[end:]))
	ta.SetText(b.String())
	d.selected, d.selStart, d.selEnd = ta, start+2, end+2
	return nil
}

func (d *HTMLDriver) submit(form *goquery.Selection) error {
	if form.Length() == 0 {
		return nil
	}
	values := url.Values{}
	blocked := ""
	form.Find("input[name], textarea[name], select[name]").Each(func(_ int, el *goquery.Selection) {
		if _, disabled := el.Attr("disabled"); disabled {
			return
		}
		name := el.AttrOr("name", "")
		typ := strings.ToLower(el.AttrOr("type", "text"))
		if (typ == "checkbox" || typ == "radio") && !hasAttr(el, "checked") {
			return
		}
		if typ == "submit" || typ == "button" {
			return
		}
		v, _ := inputValue(el)
		if hasAttr(el, "required") && v == "" && blocked == "" {
			blocked = name
		}
		values.Add(name, v)
	})
	if blocked != "" {
		d.log.Debug("submit_blocked", "field", blocked, "url", d.CurrentURL())
		return nil
	}

	action, err := d.resolveURL(form.AttrOr("action", d.CurrentURL()))
	if err != nil {
		return err
	}
	var resp *http.Response
	if strings.EqualFold(form.AttrOr("method", "get"), "post") {
		resp, err = d.client.PostForm(action.String(), values)
	} else {
		action.RawQuery = values.Encode()
		resp, err = d.client.Get(action.String())
	}
	if err != nil {
		return fmt.Errorf("submit %s: %w", action, err)
	}
	return d.load(resp)
}

func (d *HTMLDriver) load(resp *http.Response) error {
	defer resp.Body.Close()
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return fmt.Errorf("parse %s: %w", resp.Request.URL, err)
	}
	d.doc = doc
	d.url = resp.Request.URL
	d.selected = nil
	return nil
}

func (d *HTMLDriver) resolveURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("bad url %q: %w", raw, err)
	}
	if d.url != nil {
		u = d.url.ResolveReference(u)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("relative url %q with no current page", raw)
	}
	return u, nil
}

// resolve returns every match of loc.
func (d *HTMLDriver) resolve(loc pages.Locator) (*goquery.Selection, error) {
	if d.doc == nil {
		return nil, fmt.Errorf("no page loaded")
	}
	switch loc.Strategy {
	case pages.ByCSS:
		m, err := cascadia.Compile(loc.Selector)
		if err != nil {
			return nil, fmt.Errorf("bad selector %q: %w", loc.Selector, err)
		}
		return d.doc.FindMatcher(m), nil
	case pages.ByID:
		return d.doc.Find("[id=" + strconv.Quote(loc.Selector) + "]"), nil
	case pages.ByText:
		want := strings.TrimSpace(loc.Selector)
		matches := func(_ int, s *goquery.Selection) bool {
			return strings.TrimSpace(s.Text()) == want
		}
		// Deepest elements only, like a browser's text engine.
		return d.doc.Find("body *").FilterFunction(func(i int, s *goquery.Selection) bool {
			return matches(i, s) && s.Children().FilterFunction(matches).Length() == 0
		}), nil
	default:
		return nil, fmt.Errorf("locator strategy %q is not supported without a browser", loc.Strategy)
	}
}

// nth returns the match at loc.Index.
func (d *HTMLDriver) nth(loc pages.Locator) (*goquery.Selection, error) {
	all, err := d.resolve(loc)
	if err != nil {
		return nil, err
	}
	if loc.Index < 0 || loc.Index >= all.Length() {
		return nil, fmt.Errorf("no element matches %s (%d found)", loc, all.Length())
	}
	return all.Eq(loc.Index), nil
}

func inputValue(el *goquery.Selection) (string, bool) {
	switch goquery.NodeName(el) {
	case "input":
		return el.AttrOr("value", ""), true
	case "textarea":
		return el.Text(), true
	case "select":
		opt := el.Find("option[selected]").First()
		if opt.Length() == 0 {
			opt = el.Find("option").First()
		}
		return opt.AttrOr("value", strings.TrimSpace(opt.Text())), true
	default:
		return "", false
	}
}

func hasAttr(el *goquery.Selection, name string) bool {
	_, ok := el.Attr(name)
	return ok
}
