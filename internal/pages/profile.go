package pages

import (
	"fmt"
	"strings"
	"time"

	"github.com/kuitang/forge-e2e/internal/errs"
	"github.com/kuitang/forge-e2e/internal/urlutil"
)

var profileProjectsTab = CSS("a.item[href$='/-/projects']")

// Profile is a user's or organization's overview page.
type Profile struct {
	page
	owner string
}

func newProfile(s *Site, owner string) *Profile {
	p := &Profile{
		page: page{
			site:         s,
			name:         "profile",
			path:         urlutil.OwnerPath(owner),
			implicitWait: 5 * time.Second,
		},
		owner: owner,
	}
	onPage := p.titleContains(owner)
	p.ready = func() (bool, error) {
		// The dashboard title carries the user name too.
		if !p.atOwnerPath() {
			return false, nil
		}
		return onPage()
	}
	return p
}

func (p *Profile) atOwnerPath() bool {
	path := strings.TrimRight(urlutil.PathOf(p.site.driver.CurrentURL()), "/")
	return strings.EqualFold(path, "/"+p.owner)
}

// Owner is the user or organization the page belongs to.
func (p *Profile) Owner() string { return p.owner }

// OpenProjects waits for a projects tab and follows the first one. No tab
// within the readiness timeout is a NoMatchingElement failure.
func (p *Profile) OpenProjects() (*ProjectList, error) {
	if err := p.requireReady(); err != nil {
		return nil, err
	}
	err := WaitUntilReady(func() (bool, error) {
		return p.present(profileProjectsTab)
	}, p.site.timing.Timeout, p.site.timing.PollInterval)
	if err != nil {
		return nil, errs.Wrap(errs.NoMatchingElement,
			fmt.Sprintf("profile page: no projects tab matched %s", profileProjectsTab), err)
	}

	tab := profileProjectsTab.Nth(0)
	href, err := p.site.driver.Attribute(tab, "href")
	if err != nil {
		return nil, elementErr(p.name, "read projects link", tab, err)
	}
	owner := urlutil.FirstSegment(href)
	if owner == "" {
		owner = p.owner
	}
	if err := p.click("projects tab", tab); err != nil {
		return nil, err
	}
	list := newProjectList(p.site, owner)
	if err := list.enter(); err != nil {
		return nil, err
	}
	return list, nil
}
